package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

const (
	usersCollection    = "utilisateur"
	dossiersCollection = "dossier_medical"
	intakesCollection  = "suivi_patient"
)

// ConnectMongo opens the client and returns the stores of database dbName.
// ownerFields lists the accepted dossier owner fields; new dossiers are
// written with the first one.
func ConnectMongo(ctx context.Context, uri, dbName string, ownerFields []string, transactions bool) (*Stores, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStores(client, client.Database(dbName), ownerFields, transactions), nil
}

func NewMongoStores(client *mongo.Client, db *mongo.Database, ownerFields []string, transactions bool) *Stores {
	dossiers := &MongoDossiers{coll: db.Collection(dossiersCollection), ownerFields: ownerFields, now: time.Now}
	return &Stores{
		Accounts: &MongoAccounts{coll: db.Collection(usersCollection)},
		Dossiers: dossiers,
		Intakes:  &MongoIntakes{coll: db.Collection(intakesCollection)},
		Tx:       &MongoTransactor{client: client, enabled: transactions},
		Migrate: func(ctx context.Context) error {
			return migrateMongo(ctx, db, ownerFields)
		},
		Close: client.Disconnect,
	}
}

func migrateMongo(ctx context.Context, db *mongo.Database, ownerFields []string) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("index %s.email: %w", usersCollection, err)
	}

	if len(ownerFields) > 0 {
		owner := ownerFields[0]
		// Partial so legacy documents using another owner field do not collide on null.
		_, err = db.Collection(dossiersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: owner, Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{owner: bson.M{"$exists": true}}),
		})
		if err != nil {
			return fmt.Errorf("index %s.%s: %w", dossiersCollection, owner, err)
		}
	}

	_, err = db.Collection(intakesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "id_dossier_medical", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("index %s: %w", intakesCollection, err)
	}
	return nil
}

// idFilter matches an _id stored either as a hex string or as an ObjectID.
func idFilter(id string) bson.M {
	ids := bson.A{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		ids = append(ids, oid)
	}
	return bson.M{"_id": bson.M{"$in": ids}}
}

// =========== Accounts ===========

type MongoAccounts struct {
	coll *mongo.Collection
}

func (r *MongoAccounts) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var a models.Account
	err := r.coll.FindOne(ctx, filter).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MongoAccounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoAccounts) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, idFilter(id))
}

func (r *MongoAccounts) Insert(ctx context.Context, a *models.Account) error {
	a.ID = primitive.NewObjectID().Hex()
	_, err := r.coll.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		a.ID = ""
		return fmt.Errorf("%w: email %s already exists", models.ErrConflict, a.Email)
	}
	return err
}

func (r *MongoAccounts) Update(ctx context.Context, a *models.Account) error {
	res, err := r.coll.ReplaceOne(ctx, idFilter(a.ID), a)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: email %s already exists", models.ErrConflict, a.Email)
		}
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account %s: %w", a.ID, models.ErrNotFound)
	}
	return nil
}

func (r *MongoAccounts) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, idFilter(id))
	return err
}

// =========== Dossiers ===========

type MongoDossiers struct {
	coll        *mongo.Collection
	ownerFields []string
	now         func() time.Time
}

func (r *MongoDossiers) ownerFilter(ownerID string) bson.M {
	or := make(bson.A, 0, len(r.ownerFields))
	for _, f := range r.ownerFields {
		or = append(or, bson.M{f: ownerID})
	}
	return bson.M{"$or": or}
}

func (r *MongoDossiers) findOne(ctx context.Context, filter bson.M) (*models.Dossier, error) {
	var doc bson.M
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.toDossier(doc), nil
}

func (r *MongoDossiers) FindByID(ctx context.Context, id string) (*models.Dossier, error) {
	return r.findOne(ctx, idFilter(id))
}

func (r *MongoDossiers) FindByOwner(ctx context.Context, ownerID string) (*models.Dossier, error) {
	if len(r.ownerFields) == 0 {
		return nil, models.ErrProvisioning
	}
	return r.findOne(ctx, r.ownerFilter(ownerID))
}

func (r *MongoDossiers) EnsureForOwner(ctx context.Context, ownerID string) (*models.Dossier, bool, error) {
	if len(r.ownerFields) == 0 {
		return nil, false, fmt.Errorf("%w: no dossier owner field configured", models.ErrProvisioning)
	}
	if d, err := r.FindByOwner(ctx, ownerID); err != nil || d != nil {
		return d, false, err
	}

	newID := primitive.NewObjectID().Hex()
	owner := r.ownerFields[0]
	update := bson.M{"$setOnInsert": bson.M{
		"_id":            newID,
		owner:            ownerID,
		"groupe_sanguin": nil,
		"date_creation":  r.now(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc bson.M
	err := r.coll.FindOneAndUpdate(ctx, bson.M{owner: ownerID}, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an upsert race; the winner's dossier is there now.
		d, ferr := r.FindByOwner(ctx, ownerID)
		return d, false, ferr
	}
	if err != nil {
		return nil, false, err
	}
	d := r.toDossier(doc)
	return d, d.ID == newID, nil
}

func (r *MongoDossiers) SetGroupeSanguin(ctx context.Context, id, groupe string) error {
	res, err := r.coll.UpdateOne(ctx, idFilter(id), bson.M{"$set": bson.M{"groupe_sanguin": groupe}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("dossier %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *MongoDossiers) toDossier(doc bson.M) *models.Dossier {
	d := &models.Dossier{ID: stringID(doc["_id"])}
	for _, f := range r.ownerFields {
		if v, ok := doc[f]; ok && v != nil {
			d.OwnerID = stringID(v)
			break
		}
	}
	if g, ok := doc["groupe_sanguin"].(string); ok {
		d.GroupeSanguin = &g
	}
	switch t := doc["date_creation"].(type) {
	case primitive.DateTime:
		d.DateCreation = t.Time()
	case time.Time:
		d.DateCreation = t
	}
	return d
}

func stringID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// =========== Intakes ===========

type MongoIntakes struct {
	coll *mongo.Collection
}

func (r *MongoIntakes) InsertIntake(ctx context.Context, in *models.Intake) error {
	in.ID = primitive.NewObjectID().Hex()
	_, err := r.coll.InsertOne(ctx, in)
	return err
}

// =========== Transactions ===========

// MongoTransactor uses session transactions when enabled. They need a
// replica set; on a standalone server leave them disabled and fn runs
// without one.
type MongoTransactor struct {
	client  *mongo.Client
	enabled bool
}

// Atomic reports whether session transactions are in use.
func (t *MongoTransactor) Atomic() bool { return t.enabled }

func (t *MongoTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.enabled {
		return fn(ctx)
	}
	sess, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

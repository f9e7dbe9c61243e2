package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const pgUniqueViolation = "23505"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type txKey struct{}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

type pgDB struct{ pool *pgxpool.Pool }

func (d pgDB) conn(ctx context.Context) queryable {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return d.pool
}

func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// ConnectPostgres opens the pool and returns its stores. The dossier owner
// column is resolved lazily against information_schema, so the schema may
// be migrated after connecting.
func ConnectPostgres(ctx context.Context, databaseURL string, maxConns, minConns int32, ownerFields []string) (*Stores, error) {
	pool, err := NewPool(ctx, databaseURL, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	return NewPostgresStores(pool, ownerFields), nil
}

func NewPostgresStores(pool *pgxpool.Pool, ownerFields []string) *Stores {
	db := pgDB{pool: pool}
	return &Stores{
		Accounts: &PostgresAccounts{db: db},
		Dossiers: &PostgresDossiers{db: db, candidates: ownerFields},
		Intakes:  &PostgresIntakes{db: db},
		Tx:       &PostgresTransactor{pool: pool},
		Migrate: func(ctx context.Context) error {
			if _, err := pool.Exec(ctx, schemaSQL); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			return nil
		},
		Close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}
}

// parseID converts a textual id to the BIGSERIAL key. ok is false for ids
// that cannot exist in this store.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func formatID(n int64) string { return strconv.FormatInt(n, 10) }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// =========== Accounts ===========

type PostgresAccounts struct{ db pgDB }

const accountCols = `id, email, mdp, securite_sociale, id_utilisateur_medecin, role,
	prenom, nom, date_naissance, sexe, telephone, adresse_postale`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		a       models.Account
		id      int64
		medecin *int64
		sexe    int16
	)
	err := row.Scan(&id, &a.Email, &a.Password, &a.SecuriteSociale, &medecin, &a.Role,
		&a.Prenom, &a.Nom, &a.DateNaissance, &sexe, &a.Telephone, &a.AdressePostale)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ID = formatID(id)
	a.Sexe = int(sexe)
	if medecin != nil {
		s := formatID(*medecin)
		a.MedecinID = &s
	}
	return &a, nil
}

func medecinParam(a *models.Account) *int64 {
	if a.MedecinID == nil {
		return nil
	}
	if n, ok := parseID(*a.MedecinID); ok {
		return &n
	}
	return nil
}

func (r *PostgresAccounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.db.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM utilisateur WHERE email = $1`, email))
}

func (r *PostgresAccounts) FindByID(ctx context.Context, id string) (*models.Account, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	return scanAccount(r.db.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM utilisateur WHERE id = $1`, n))
}

func (r *PostgresAccounts) Insert(ctx context.Context, a *models.Account) error {
	var id int64
	err := r.db.conn(ctx).QueryRow(ctx, `
		INSERT INTO utilisateur (email, mdp, securite_sociale, id_utilisateur_medecin, role,
			prenom, nom, date_naissance, sexe, telephone, adresse_postale)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id`,
		a.Email, a.Password, a.SecuriteSociale, medecinParam(a), a.Role,
		a.Prenom, a.Nom, a.DateNaissance, int16(a.Sexe), a.Telephone, a.AdressePostale,
	).Scan(&id)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s already exists", models.ErrConflict, a.Email)
	}
	if err != nil {
		return err
	}
	a.ID = formatID(id)
	return nil
}

func (r *PostgresAccounts) Update(ctx context.Context, a *models.Account) error {
	n, ok := parseID(a.ID)
	if !ok {
		return fmt.Errorf("account %q: %w", a.ID, models.ErrNotFound)
	}
	tag, err := r.db.conn(ctx).Exec(ctx, `
		UPDATE utilisateur SET email = $2, mdp = $3, securite_sociale = $4, id_utilisateur_medecin = $5,
			role = $6, prenom = $7, nom = $8, date_naissance = $9, sexe = $10, telephone = $11,
			adresse_postale = $12
		WHERE id = $1`,
		n, a.Email, a.Password, a.SecuriteSociale, medecinParam(a),
		a.Role, a.Prenom, a.Nom, a.DateNaissance, int16(a.Sexe), a.Telephone,
		a.AdressePostale)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s already exists", models.ErrConflict, a.Email)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", a.ID, models.ErrNotFound)
	}
	return nil
}

func (r *PostgresAccounts) Delete(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return nil
	}
	_, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM utilisateur WHERE id = $1`, n)
	return err
}

// =========== Dossiers ===========

// PostgresDossiers keys dossiers on the first candidate owner column that
// exists in dossier_medical. Deployments have used different column names.
type PostgresDossiers struct {
	db         pgDB
	candidates []string

	mu    sync.Mutex
	owner string
}

// ownerColumn returns the quoted owner column, resolving it on first use.
func (r *PostgresDossiers) ownerColumn(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner != "" {
		return r.owner, nil
	}
	col, err := detectOwnerColumn(ctx, r.db.conn(ctx), r.candidates)
	if err != nil {
		return "", err
	}
	r.owner = pgx.Identifier{col}.Sanitize()
	return r.owner, nil
}

func detectOwnerColumn(ctx context.Context, q queryable, candidates []string) (string, error) {
	rows, err := q.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = 'dossier_medical'
			AND column_name::text = ANY($1::text[])`, candidates)
	if err != nil {
		return "", fmt.Errorf("%w: inspect dossier_medical: %v", models.ErrProvisioning, err)
	}
	existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", fmt.Errorf("%w: inspect dossier_medical: %v", models.ErrProvisioning, err)
	}
	return pickOwnerColumn(candidates, existing)
}

// pickOwnerColumn returns the first candidate present in existing.
func pickOwnerColumn(candidates, existing []string) (string, error) {
	present := make(map[string]bool, len(existing))
	for _, c := range existing {
		present[c] = true
	}
	for _, c := range candidates {
		if present[c] {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: dossier_medical has none of the owner columns %v", models.ErrProvisioning, candidates)
}

func scanDossier(row pgx.Row) (*models.Dossier, error) {
	var (
		d     models.Dossier
		id    int64
		owner int64
	)
	err := row.Scan(&id, &owner, &d.GroupeSanguin, &d.DateCreation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.ID = formatID(id)
	d.OwnerID = formatID(owner)
	return &d, nil
}

func (r *PostgresDossiers) FindByID(ctx context.Context, id string) (*models.Dossier, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	owner, err := r.ownerColumn(ctx)
	if err != nil {
		return nil, err
	}
	return scanDossier(r.db.conn(ctx).QueryRow(ctx,
		`SELECT id, `+owner+`, groupe_sanguin, date_creation FROM dossier_medical WHERE id = $1`, n))
}

func (r *PostgresDossiers) FindByOwner(ctx context.Context, ownerID string) (*models.Dossier, error) {
	owner, err := r.ownerColumn(ctx)
	if err != nil {
		return nil, err
	}
	n, ok := parseID(ownerID)
	if !ok {
		return nil, nil
	}
	return scanDossier(r.db.conn(ctx).QueryRow(ctx,
		`SELECT id, `+owner+`, groupe_sanguin, date_creation FROM dossier_medical
		WHERE `+owner+` = $1 ORDER BY id LIMIT 1`, n))
}

func (r *PostgresDossiers) EnsureForOwner(ctx context.Context, ownerID string) (*models.Dossier, bool, error) {
	owner, err := r.ownerColumn(ctx)
	if err != nil {
		return nil, false, err
	}
	n, ok := parseID(ownerID)
	if !ok {
		return nil, false, fmt.Errorf("%w: invalid owner id %q", models.ErrValidation, ownerID)
	}

	d, err := scanDossier(r.db.conn(ctx).QueryRow(ctx, `
		INSERT INTO dossier_medical (`+owner+`, groupe_sanguin, date_creation)
		VALUES ($1, NULL, $2)
		ON CONFLICT DO NOTHING
		RETURNING id, `+owner+`, groupe_sanguin, date_creation`, n, time.Now()))
	if err != nil {
		return nil, false, err
	}
	if d != nil {
		return d, true, nil
	}
	// The unique owner constraint fired: somebody else created it.
	d, err = r.FindByOwner(ctx, ownerID)
	return d, false, err
}

func (r *PostgresDossiers) SetGroupeSanguin(ctx context.Context, id, groupe string) error {
	n, ok := parseID(id)
	if !ok {
		return fmt.Errorf("dossier %q: %w", id, models.ErrNotFound)
	}
	tag, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE dossier_medical SET groupe_sanguin = $2 WHERE id = $1`, n, groupe)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dossier %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// =========== Intakes ===========

type PostgresIntakes struct{ db pgDB }

func (r *PostgresIntakes) InsertIntake(ctx context.Context, in *models.Intake) error {
	dossier, ok := parseID(in.DossierID)
	if !ok {
		return fmt.Errorf("%w: invalid dossier id %q", models.ErrValidation, in.DossierID)
	}
	var id int64
	err := r.db.conn(ctx).QueryRow(ctx, `
		INSERT INTO suivi_patient (date, poids, taille, date_greffe, allergies, maladie_renale,
			id_dossier_medical, suivi_traitement, prescription)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		in.Date, in.Poids, in.Taille, in.DateGreffe, in.Allergies, in.MaladieRenale,
		dossier, in.SuiviTraitement, in.Prescription,
	).Scan(&id)
	if err != nil {
		return err
	}
	in.ID = formatID(id)
	return nil
}

// =========== Transactions ===========

type PostgresTransactor struct{ pool *pgxpool.Pool }

func (t *PostgresTransactor) Atomic() bool { return true }

// WithinTx runs fn in a transaction carried by ctx. Nested calls join the
// outer transaction.
func (t *PostgresTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

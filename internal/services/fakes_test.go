package services

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

var errBoom = errors.New("boom")

// =========== Accounts ===========

type fakeAccounts struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]models.Account

	failInsert error
	deleted    []string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: map[string]models.Account{}}
}

func (f *fakeAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Email == email {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) FindByID(_ context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f *fakeAccounts) Insert(_ context.Context, a *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return f.failInsert
	}
	for _, existing := range f.byID {
		if existing.Email == a.Email {
			return models.ErrConflict
		}
	}
	f.nextID++
	a.ID = strconv.Itoa(f.nextID)
	f.byID[a.ID] = *a
	return nil
}

func (f *fakeAccounts) Update(_ context.Context, a *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[a.ID]; !ok {
		return models.ErrNotFound
	}
	f.byID[a.ID] = *a
	return nil
}

func (f *fakeAccounts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAccounts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

// =========== Dossiers ===========

type fakeDossiers struct {
	mu      sync.Mutex
	nextID  int
	byID    map[string]*models.Dossier
	created int

	failFind   error
	failEnsure error
}

func newFakeDossiers() *fakeDossiers {
	return &fakeDossiers{byID: map[string]*models.Dossier{}}
}

func (f *fakeDossiers) add(owner string) *models.Dossier {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d := &models.Dossier{ID: "d" + strconv.Itoa(f.nextID), OwnerID: owner}
	f.byID[d.ID] = d
	return d
}

func (f *fakeDossiers) FindByID(_ context.Context, id string) (*models.Dossier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.byID[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeDossiers) FindByOwner(_ context.Context, owner string) (*models.Dossier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFind != nil {
		return nil, f.failFind
	}
	for _, d := range f.byID {
		if d.OwnerID == owner {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeDossiers) EnsureForOwner(ctx context.Context, owner string) (*models.Dossier, bool, error) {
	if f.failEnsure != nil {
		return nil, false, f.failEnsure
	}
	f.mu.Lock()
	for _, d := range f.byID {
		if d.OwnerID == owner {
			cp := *d
			f.mu.Unlock()
			return &cp, false, nil
		}
	}
	f.created++
	f.mu.Unlock()
	d := f.add(owner)
	cp := *d
	return &cp, true, nil
}

func (f *fakeDossiers) SetGroupeSanguin(_ context.Context, id, groupe string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	d.GroupeSanguin = &groupe
	return nil
}

// =========== Intakes ===========

type fakeIntakes struct {
	mu      sync.Mutex
	items   []models.Intake
	failErr error
}

func (f *fakeIntakes) InsertIntake(_ context.Context, in *models.Intake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	in.ID = "i" + strconv.Itoa(len(f.items)+1)
	f.items = append(f.items, *in)
	return nil
}

// =========== Mailer ===========

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failErr error
}

func (f *fakeMailer) SendEmail(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

func (f *fakeMailer) setFail(err error) {
	f.mu.Lock()
	f.failErr = err
	f.mu.Unlock()
}

func (f *fakeMailer) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMail{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// =========== Hasher ===========

// plainHasher keeps tests fast; bcrypt is covered in utils.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }
func (plainHasher) Verify(pw, hashed string) bool  { return hashed == "hashed:"+pw }

// =========== Harness ===========

type harness struct {
	svc      *RegistrationService
	accounts *fakeAccounts
	dossiers *fakeDossiers
	intakes  *fakeIntakes
	mailer   *fakeMailer
	otp      *MemoryOTPStore
	pending  *PendingStore
	code     string
}

func newHarness() *harness {
	h := &harness{
		accounts: newFakeAccounts(),
		dossiers: newFakeDossiers(),
		intakes:  &fakeIntakes{},
		mailer:   &fakeMailer{},
		pending:  NewPendingStore(),
		code:     "123456",
	}
	h.otp = NewMemoryOTPStore(WithCodeGenerator(func() (string, error) { return h.code, nil }))
	h.svc = NewRegistrationService(RegistrationDeps{
		Accounts:  h.accounts,
		Dossiers:  NewDossierResolver(h.dossiers),
		DossierDB: h.dossiers,
		Intakes:   h.intakes,
		OTP:       h.otp,
		Pending:   h.pending,
		Notifier:  NewNotificationService(h.mailer, "https://renalcare.example", "admin@clinic.example", DefaultOTPTTL),
		Hasher:    plainHasher{},
		Defaults:  PlaceholderDefaults{AgeYears: 18, Address: "Adresse à compléter", Phone: "0000000000"},
		Logger:    zerolog.New(io.Discard),
		Metrics:   NewMetrics(),
	})
	return h
}

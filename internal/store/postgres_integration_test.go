package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

// Runs against a disposable database; set TEST_DATABASE_URL to enable.
func newTestPostgres(t *testing.T) *Stores {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := ConnectPostgres(ctx, url, 4, 1, []string{"id_patient", "id_utilisateur"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(ctx) })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func testAccount(email string) *models.Account {
	return &models.Account{
		Email:         email,
		Password:      "hash",
		Role:          models.RolePatient,
		Prenom:        "À",
		Nom:           "compléter",
		DateNaissance: time.Date(2006, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPostgres_AccountLifecycle(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	email := "pg-" + time.Now().Format("150405.000000") + "@example.com"

	a := testAccount(email)
	if err := s.Accounts.Insert(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	t.Cleanup(func() { _ = s.Accounts.Delete(ctx, a.ID) })

	if err := s.Accounts.Insert(ctx, testAccount(email)); !errors.Is(err, models.ErrConflict) {
		t.Errorf("duplicate insert: expected ErrConflict, got %v", err)
	}

	a.Telephone = "0601020304"
	if err := s.Accounts.Update(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.Accounts.FindByEmail(ctx, email)
	if err != nil || got == nil {
		t.Fatalf("find: %v %v", got, err)
	}
	if got.Telephone != "0601020304" || got.ID != a.ID {
		t.Errorf("unexpected account %+v", got)
	}
}

func TestPostgres_EnsureForOwnerIsIdempotent(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	a := testAccount("dossier-" + time.Now().Format("150405.000000") + "@example.com")
	if err := s.Accounts.Insert(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	t.Cleanup(func() { _ = s.Accounts.Delete(ctx, a.ID) })

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]bool{}
		created int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, c, err := s.Dossiers.EnsureForOwner(ctx, a.ID)
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			mu.Lock()
			ids[d.ID] = true
			if c {
				created++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != 1 || created != 1 {
		t.Errorf("expected one dossier created once, got ids=%v created=%d", ids, created)
	}
}

func TestPostgres_WithinTxRollsBack(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	email := "tx-" + time.Now().Format("150405.000000") + "@example.com"
	boom := errors.New("boom")

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Accounts.Insert(ctx, testAccount(email)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got, _ := s.Accounts.FindByEmail(ctx, email); got != nil {
		t.Errorf("insert was not rolled back: %+v", got)
	}
}

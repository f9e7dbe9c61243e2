package services

import (
	"context"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

// AccountRepository is the system of record for accounts. Find methods
// return (nil, nil) when nothing matches.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	// Insert assigns a.ID. A duplicate email yields models.ErrConflict.
	Insert(ctx context.Context, a *models.Account) error
	// Update overwrites every field of the row identified by a.ID.
	Update(ctx context.Context, a *models.Account) error
	Delete(ctx context.Context, id string) error
}

// DossierStore persists dossiers. Find methods return (nil, nil) when
// nothing matches.
type DossierStore interface {
	FindByID(ctx context.Context, id string) (*models.Dossier, error)
	FindByOwner(ctx context.Context, ownerID string) (*models.Dossier, error)
	// EnsureForOwner atomically finds or creates the single dossier of
	// ownerID. It fails with models.ErrProvisioning when the schema has no
	// usable ownership field.
	EnsureForOwner(ctx context.Context, ownerID string) (*models.Dossier, bool, error)
	SetGroupeSanguin(ctx context.Context, id, groupe string) error
}

// IntakeStore stores follow-up ("suivi") records.
type IntakeStore interface {
	InsertIntake(ctx context.Context, in *models.Intake) error
}

// Transactor runs fn so that every store call made with the ctx it
// receives commits or rolls back together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Atomic is optionally implemented by a Transactor. When it reports true,
// WithinTx rolls back every write of fn on error.
type Atomic interface {
	Atomic() bool
}

func isAtomic(tx Transactor) bool {
	a, ok := tx.(Atomic)
	return ok && a.Atomic()
}

// NoTx runs fn directly. Used for backends without transaction support.
type NoTx struct{}

func (NoTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Package store implements the registration repositories on MongoDB and
// PostgreSQL.
package store

import (
	"context"

	"github.com/harentsoaR/renalcare-api/internal/services"
)

// Stores bundles the repositories of one backend.
type Stores struct {
	Accounts services.AccountRepository
	Dossiers services.DossierStore
	Intakes  services.IntakeStore
	Tx       services.Transactor

	// Migrate creates indexes (Mongo) or applies the schema (Postgres).
	Migrate func(ctx context.Context) error
	Close   func(ctx context.Context) error
}

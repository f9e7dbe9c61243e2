package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

// DossierResolution is the outcome of DossierResolver.Resolve.
type DossierResolution struct {
	Dossier *models.Dossier
	Created bool
}

// DossierResolver finds the dossier of a patient, creating it on first use.
type DossierResolver struct {
	store DossierStore
}

func NewDossierResolver(store DossierStore) *DossierResolver {
	return &DossierResolver{store: store}
}

// Resolve returns, in order: the explicit dossier when it exists, the
// dossier owned by accountID, or a freshly created empty one.
func (r *DossierResolver) Resolve(ctx context.Context, accountID, explicitID string) (*DossierResolution, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", models.ErrValidation)
	}

	if explicitID != "" {
		d, err := r.store.FindByID(ctx, explicitID)
		if err != nil {
			return nil, fmt.Errorf("find dossier %s: %w", explicitID, err)
		}
		if d != nil {
			return &DossierResolution{Dossier: d}, nil
		}
	}

	d, err := r.store.FindByOwner(ctx, accountID)
	if err != nil && !errors.Is(err, models.ErrProvisioning) {
		return nil, fmt.Errorf("find dossier of %s: %w", accountID, err)
	}
	if d != nil {
		return &DossierResolution{Dossier: d}, nil
	}

	d, created, err := r.store.EnsureForOwner(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrProvisioning) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create dossier of %s: %v", models.ErrProvisioning, accountID, err)
	}
	return &DossierResolution{Dossier: d, Created: created}, nil
}

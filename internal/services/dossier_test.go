package services

import (
	"context"
	"errors"
	"testing"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

func TestDossierResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit id wins", func(t *testing.T) {
		store := newFakeDossiers()
		own := store.add("u1")
		other := store.add("u2")
		res, err := NewDossierResolver(store).Resolve(ctx, "u1", other.ID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if res.Dossier.ID != other.ID || res.Created {
			t.Errorf("got %+v, want explicit dossier %s (own is %s)", res.Dossier, other.ID, own.ID)
		}
	})

	t.Run("unknown explicit id falls back to owner", func(t *testing.T) {
		store := newFakeDossiers()
		own := store.add("u1")
		res, err := NewDossierResolver(store).Resolve(ctx, "u1", "d404")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if res.Dossier.ID != own.ID || res.Created {
			t.Errorf("got %+v, want %s", res.Dossier, own.ID)
		}
	})

	t.Run("creates once", func(t *testing.T) {
		store := newFakeDossiers()
		r := NewDossierResolver(store)
		first, err := r.Resolve(ctx, "u9", "")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !first.Created || first.Dossier.OwnerID != "u9" {
			t.Fatalf("expected a created dossier for u9, got %+v", first)
		}
		second, err := r.Resolve(ctx, "u9", "")
		if err != nil {
			t.Fatalf("resolve again: %v", err)
		}
		if second.Created || second.Dossier.ID != first.Dossier.ID {
			t.Errorf("second resolve = %+v, want existing %s", second, first.Dossier.ID)
		}
		if store.created != 1 {
			t.Errorf("created %d dossiers, want 1", store.created)
		}
	})

	t.Run("empty account id", func(t *testing.T) {
		_, err := NewDossierResolver(newFakeDossiers()).Resolve(ctx, "", "")
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("no usable owner field", func(t *testing.T) {
		store := newFakeDossiers()
		store.failFind = models.ErrProvisioning
		store.failEnsure = models.ErrProvisioning
		_, err := NewDossierResolver(store).Resolve(ctx, "u1", "")
		if !errors.Is(err, models.ErrProvisioning) {
			t.Errorf("expected ErrProvisioning, got %v", err)
		}
	})

	t.Run("create failure is a provisioning error", func(t *testing.T) {
		store := newFakeDossiers()
		store.failEnsure = errBoom
		_, err := NewDossierResolver(store).Resolve(ctx, "u1", "")
		if !errors.Is(err, models.ErrProvisioning) {
			t.Errorf("expected ErrProvisioning, got %v", err)
		}
	})

	t.Run("lookup failure propagates", func(t *testing.T) {
		store := newFakeDossiers()
		store.failFind = errBoom
		_, err := NewDossierResolver(store).Resolve(ctx, "u1", "")
		if !errors.Is(err, errBoom) {
			t.Errorf("expected boom, got %v", err)
		}
	})
}

package handlers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/renalcare-api/internal/models"
	"github.com/harentsoaR/renalcare-api/internal/services"
	"github.com/harentsoaR/renalcare-api/internal/utils"
)

// Registrar is the registration workflow as seen by the HTTP layer.
type Registrar interface {
	SendCode(ctx context.Context, email, role string) error
	VerifyCode(ctx context.Context, email, code string) (string, error)
	Complete(ctx context.Context, in services.CompleteInput) (*models.Account, error)
	Register(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	SubmitRequest(ctx context.Context, req models.PendingRequest) (int64, error)
	PendingRequests() []models.PendingRequest
	Validate(ctx context.Context, id int64) (*models.Account, error)
	Refuse(ctx context.Context, id int64) error
}

type AccountReader interface {
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
	Get(ctx context.Context, id string) (*models.Account, error)
}

type DossierResolver interface {
	Resolve(ctx context.Context, accountID, explicitID string) (*services.DossierResolution, error)
}

type Handler struct {
	Registration Registrar
	Accounts     AccountReader
	Dossiers     DossierResolver
	Tokens       *utils.TokenIssuer
	Log          zerolog.Logger
}

func NewHandler(reg Registrar, accounts AccountReader, dossiers DossierResolver, tokens *utils.TokenIssuer, log zerolog.Logger) *Handler {
	return &Handler{
		Registration: reg,
		Accounts:     accounts,
		Dossiers:     dossiers,
		Tokens:       tokens,
		Log:          log,
	}
}

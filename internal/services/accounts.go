package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harentsoaR/renalcare-api/internal/models"
	"github.com/harentsoaR/renalcare-api/internal/utils"
)

// AccountService covers login and operator-side account creation.
type AccountService struct {
	accounts AccountRepository
	hasher   utils.Hasher
}

func NewAccountService(accounts AccountRepository, hasher utils.Hasher) *AccountService {
	return &AccountService{accounts: accounts, hasher: hasher}
}

// Authenticate checks an email/password pair. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", models.ErrValidation)
	}
	acc, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acc == nil || !s.hasher.Verify(password, acc.Password) {
		return nil, models.ErrInvalidCredentials
	}
	return acc, nil
}

// CreateAdmin provisions an Admin account. Used by the create-admin command.
func (s *AccountService) CreateAdmin(ctx context.Context, email, password, prenom, nom string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: email and a password of at least %d characters are required", models.ErrValidation, minPasswordLength)
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc := &models.Account{
		Email:         email,
		Password:      hashed,
		Role:          models.RoleAdmin,
		Prenom:        prenom,
		Nom:           nom,
		DateNaissance: time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.accounts.Insert(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	acc, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
	}
	return acc, nil
}

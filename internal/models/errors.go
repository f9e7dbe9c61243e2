package models

import "errors"

// Failure classes shared by the stores, the registration services and the
// HTTP layer. Callers wrap them with context and match with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrExpired            = errors.New("code expired")
	ErrMismatch           = errors.New("code mismatch")
	ErrConflict           = errors.New("conflict")
	ErrNotPreProvisioned  = errors.New("no pre-provisioned account")
	ErrDelivery           = errors.New("email delivery failed")
	ErrProvisioning       = errors.New("dossier provisioning failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
)

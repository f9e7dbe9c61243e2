package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/renalcare-api/internal/models"
	"github.com/harentsoaR/renalcare-api/internal/utils"
)

const (
	minPasswordLength  = 6
	throwawayPwdLength = 8
	nationalIDLength   = 15
	dateLayout         = "2006-01-02"
)

// PlaceholderDefaults fill the mandatory account columns that are unknown
// until the user completes registration.
type PlaceholderDefaults struct {
	AgeYears int
	Address  string
	Phone    string
	Prenom   string
	Nom      string
}

// BirthDate is the calendar day AgeYears before now.
func (d PlaceholderDefaults) BirthDate(now time.Time) time.Time {
	y, m, day := now.AddDate(-d.AgeYears, 0, 0).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// RegistrationDeps groups the collaborators of RegistrationService.
type RegistrationDeps struct {
	Accounts  AccountRepository
	Dossiers  *DossierResolver
	DossierDB DossierStore
	Intakes   IntakeStore
	Tx        Transactor
	OTP       OTPStore
	Pending   *PendingStore
	Notifier  *NotificationService
	Hasher    utils.Hasher
	Defaults  PlaceholderDefaults
	Logger    zerolog.Logger
	Metrics   *Metrics
}

// RegistrationService drives account provisioning: the self-service code
// flow (send-code, verify-code, complete) and the administrator flow
// (validate, refuse) that pre-creates the account complete later finishes.
type RegistrationService struct {
	accounts  AccountRepository
	dossiers  *DossierResolver
	dossierDB DossierStore
	intakes   IntakeStore
	tx        Transactor
	otp       OTPStore
	pending   *PendingStore
	notifier  *NotificationService
	hasher    utils.Hasher
	defaults  PlaceholderDefaults
	log       zerolog.Logger
	metrics   *Metrics

	now       func() time.Time
	randomSex func() (int, error)
}

func NewRegistrationService(d RegistrationDeps) *RegistrationService {
	tx := d.Tx
	if tx == nil {
		tx = NoTx{}
	}
	if d.Defaults.Prenom == "" {
		d.Defaults.Prenom = "À"
	}
	if d.Defaults.Nom == "" {
		d.Defaults.Nom = "compléter"
	}
	return &RegistrationService{
		accounts:  d.Accounts,
		dossiers:  d.Dossiers,
		dossierDB: d.DossierDB,
		intakes:   d.Intakes,
		tx:        tx,
		otp:       d.OTP,
		pending:   d.Pending,
		notifier:  d.Notifier,
		hasher:    d.Hasher,
		defaults:  d.Defaults,
		log:       d.Logger,
		metrics:   d.Metrics,
		now:       time.Now,
		randomSex: func() (int, error) {
			n, err := utils.RandomInt(2)
			return int(n), err
		},
	}
}

func (s *RegistrationService) done(transition, email string, start time.Time, err error) {
	s.metrics.observe(transition, start, err)
	evt := s.log.Info()
	switch {
	case err == nil:
	case IsClientError(err):
		evt = s.log.Warn().Err(err)
	default:
		evt = s.log.Error().Err(err)
	}
	evt.Str("transition", transition).Str("email", email).Msg("registration")
}

// -- Self-service path --

// SendCode issues a fresh code for email and mails it. It never touches
// the account repository.
func (s *RegistrationService) SendCode(ctx context.Context, email, role string) (err error) {
	start := time.Now()
	email = strings.TrimSpace(email)
	defer func() { s.done("send_code", email, start, err) }()

	if email == "" {
		return fmt.Errorf("%w: email is required", models.ErrValidation)
	}
	role = models.RequestRole(role)

	code, err := s.otp.Issue(ctx, email, role)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}
	s.log.Debug().Str("email", email).Str("role", role).Str("code", code).Msg("otp issued")

	return s.notifier.SendOtpEmail(ctx, email, code, role)
}

// VerifyCode returns the role the code was issued for.
func (s *RegistrationService) VerifyCode(ctx context.Context, email, code string) (role string, err error) {
	start := time.Now()
	email = strings.TrimSpace(email)
	defer func() { s.done("verify_code", email, start, err) }()

	if email == "" || code == "" {
		return "", fmt.Errorf("%w: email and code are required", models.ErrValidation)
	}
	return s.otp.Verify(ctx, email, strings.TrimSpace(code))
}

// CompleteInput is the full profile submitted at the end of registration.
// Empty fields keep the value already stored on the account.
type CompleteInput struct {
	Email           string
	Password        string
	Role            string
	Nom             string
	Prenom          string
	Telephone       string
	Adresse         string
	Genre           string
	DateNaissance   string
	SecuriteSociale string

	AdresseHopital string // medecin only

	// Patient intake
	DateGreffe    string
	Maladie       string
	GroupeSanguin string
	Poids         string
	Taille        string
	Allergies     string
}

// Complete turns the pre-provisioned account of in.Email into a usable one.
// For patients the dossier is resolved in the same transaction as the
// account update; the intake record is written afterwards and its failure
// does not fail the registration.
func (s *RegistrationService) Complete(ctx context.Context, in CompleteInput) (acc *models.Account, err error) {
	start := time.Now()
	in.Email = strings.TrimSpace(in.Email)
	defer func() { s.done("complete", in.Email, start, err) }()

	if in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", models.ErrValidation)
	}

	acc, err = s.accounts.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if acc == nil {
		return nil, models.ErrNotPreProvisioned
	}

	prev := *acc
	if err := applyProfile(acc, in); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc.Password = hashed

	var dossier *models.Dossier
	updated := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Update(ctx, acc); err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		updated = true
		if acc.Role != models.RolePatient {
			return nil
		}
		res, err := s.dossiers.Resolve(ctx, acc.ID, "")
		if err != nil {
			return err
		}
		dossier = res.Dossier
		if g := strings.TrimSpace(in.GroupeSanguin); g != "" {
			if err := s.dossierDB.SetGroupeSanguin(ctx, dossier.ID, g); err != nil {
				return fmt.Errorf("set blood group: %w", err)
			}
			dossier.GroupeSanguin = &g
		}
		return nil
	})
	if err != nil {
		if updated && !isAtomic(s.tx) {
			s.restoreAccount(ctx, &prev)
		}
		return nil, err
	}

	if dossier != nil {
		intake := buildIntake(in, dossier.ID, s.now())
		if ierr := s.intakes.InsertIntake(ctx, intake); ierr != nil {
			s.log.Error().Err(ierr).Str("email", in.Email).Str("dossier_id", dossier.ID).
				Msg("intake record not saved, registration kept")
		}
	}

	if cerr := s.otp.Clear(ctx, in.Email); cerr != nil {
		s.log.Warn().Err(cerr).Str("email", in.Email).Msg("otp clear failed")
	}
	return acc, nil
}

// restoreAccount puts back the row Complete overwrote when the backend
// could not roll the update back itself.
func (s *RegistrationService) restoreAccount(ctx context.Context, prev *models.Account) {
	if err := s.accounts.Update(ctx, prev); err != nil {
		s.log.Error().Err(err).Str("account_id", prev.ID).Msg("account restore failed")
	}
}

func applyProfile(acc *models.Account, in CompleteInput) error {
	role := models.CapitalizeRole(in.Role)
	if role == "" {
		role = acc.Role
	}
	if role != models.RoleMedecin {
		role = models.RolePatient
	}
	acc.Role = role

	acc.Nom = firstNonEmpty(in.Nom, acc.Nom)
	acc.Prenom = firstNonEmpty(in.Prenom, acc.Prenom)
	acc.Telephone = firstNonEmpty(in.Telephone, acc.Telephone)

	switch g := strings.TrimSpace(in.Genre); {
	case g == "":
	case g == "M" || g == "Masculin":
		acc.Sexe = 0
	default:
		acc.Sexe = 1
	}

	if d := strings.TrimSpace(in.DateNaissance); d != "" {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return fmt.Errorf("%w: date_naissance must be YYYY-MM-DD", models.ErrValidation)
		}
		acc.DateNaissance = t
	}

	if role == models.RoleMedecin {
		acc.AdressePostale = firstNonEmpty(in.AdresseHopital, in.Adresse, acc.AdressePostale)
		return nil
	}
	acc.AdressePostale = firstNonEmpty(in.Adresse, acc.AdressePostale)
	acc.SecuriteSociale = firstNonEmpty(models.CleanSecuriteSociale(in.SecuriteSociale), acc.SecuriteSociale)
	return nil
}

func buildIntake(in CompleteInput, dossierID string, now time.Time) *models.Intake {
	intake := &models.Intake{
		Date:          now,
		DossierID:     dossierID,
		Allergies:     optional(in.Allergies),
		MaladieRenale: optional(in.Maladie),
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(in.Poids), 64); err == nil {
		intake.Poids = &v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(in.Taille)); err == nil {
		intake.Taille = &v
	}
	if t, err := time.Parse(dateLayout, strings.TrimSpace(in.DateGreffe)); err == nil {
		intake.DateGreffe = &t
	}
	return intake
}

// -- Unified register --

// RegisterInput is the payload of the unified register endpoint.
type RegisterInput struct {
	Email           string
	Password        string
	SecuriteSociale string
	Role            string
	Telephone       string
}

// Admin accounts are only created from the command line.
var registerRoles = map[string]bool{"patient": true, "medecin": true}

// Register creates a placeholder account directly, without administrator
// review. The account is then finished through Complete.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (acc *models.Account, err error) {
	start := time.Now()
	in.Email = strings.TrimSpace(in.Email)
	defer func() { s.done("register", in.Email, start, err) }()

	if in.Email == "" || in.Password == "" || strings.TrimSpace(in.SecuriteSociale) == "" || in.Role == "" {
		return nil, fmt.Errorf("%w: email, password, securite_sociale and role are required", models.ErrValidation)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", models.ErrValidation, minPasswordLength)
	}
	if !registerRoles[strings.ToLower(in.Role)] {
		return nil, fmt.Errorf("%w: invalid role %q", models.ErrValidation, in.Role)
	}

	existing, err := s.accounts.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already in use", models.ErrConflict)
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	sexe, err := s.randomSex()
	if err != nil {
		return nil, err
	}

	acc = &models.Account{
		Email:           in.Email,
		Password:        hashed,
		SecuriteSociale: models.CleanSecuriteSociale(in.SecuriteSociale),
		Role:            models.CapitalizeRole(in.Role),
		Prenom:          s.defaults.Prenom,
		Nom:             s.defaults.Nom,
		DateNaissance:   s.defaults.BirthDate(s.now()),
		Sexe:            sexe,
		Telephone:       firstNonEmpty(in.Telephone, s.defaults.Phone),
		AdressePostale:  s.defaults.Address,
	}
	if err := s.accounts.Insert(ctx, acc); err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return acc, nil
}

// -- Administrator path --

// SubmitRequest queues a signup request and notifies the administrator.
// A failed notification is logged; the request stays queued.
func (s *RegistrationService) SubmitRequest(ctx context.Context, req models.PendingRequest) (int64, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || strings.TrimSpace(req.Prenom) == "" || strings.TrimSpace(req.Nom) == "" {
		return 0, fmt.Errorf("%w: prenom, nom and email are required", models.ErrValidation)
	}
	req.Type = models.RequestRole(req.Type)
	id := s.pending.Add(req)
	req.ID = id

	if err := s.notifier.SendContactNotification(ctx, req); err != nil {
		s.log.Warn().Err(err).Int64("request_id", id).Msg("admin notification failed")
	}
	s.log.Info().Int64("request_id", id).Str("email", req.Email).Str("type", req.Type).Msg("pending request queued")
	return id, nil
}

func (s *RegistrationService) PendingRequests() []models.PendingRequest {
	return s.pending.GetAll()
}

// Validate pre-creates the account of a pending request with a throwaway
// password and placeholder demographics, mails the completion link, then
// drops the request. If the mail cannot be sent the account is deleted
// again and the request stays queued.
func (s *RegistrationService) Validate(ctx context.Context, id int64) (acc *models.Account, err error) {
	start := time.Now()
	req, err := s.pending.Claim(id)
	if err != nil {
		s.done("validate", "", start, err)
		return nil, fmt.Errorf("pending request %d: %w", id, err)
	}
	defer func() {
		if err != nil {
			s.pending.Release(id)
		}
		s.done("validate", req.Email, start, err)
	}()

	existing, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: an account already exists for %s", models.ErrConflict, req.Email)
	}

	password, err := utils.RandomPassword(throwawayPwdLength)
	if err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	nationalID, err := utils.RandomDigits(nationalIDLength)
	if err != nil {
		return nil, err
	}
	sexe, err := s.randomSex()
	if err != nil {
		return nil, err
	}

	acc = &models.Account{
		Email:           req.Email,
		Password:        hashed,
		SecuriteSociale: nationalID,
		Role:            models.CapitalizeRole(models.RequestRole(req.Type)),
		Prenom:          req.Prenom,
		Nom:             req.Nom,
		DateNaissance:   s.defaults.BirthDate(s.now()),
		Sexe:            sexe,
		Telephone:       firstNonEmpty(req.Telephone, s.defaults.Phone),
		AdressePostale:  s.defaults.Address,
	}
	if err := s.accounts.Insert(ctx, acc); err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}

	if err := s.notifier.SendValidationEmail(ctx, req); err != nil {
		if derr := s.accounts.Delete(ctx, acc.ID); derr != nil {
			s.log.Error().Err(derr).Str("account_id", acc.ID).Msg("compensating delete failed")
		}
		return nil, err
	}

	s.pending.Remove(id)
	return acc, nil
}

// Refuse mails the refusal and drops the request.
func (s *RegistrationService) Refuse(ctx context.Context, id int64) (err error) {
	start := time.Now()
	req, err := s.pending.Claim(id)
	if err != nil {
		s.done("refuse", "", start, err)
		return fmt.Errorf("pending request %d: %w", id, err)
	}
	defer func() { s.done("refuse", req.Email, start, err) }()

	if err := s.notifier.SendRefusalEmail(ctx, req); err != nil {
		s.pending.Release(id)
		return err
	}
	s.pending.Remove(id)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// IsClientError reports whether err is caused by the request rather than
// by the server.
func IsClientError(err error) bool {
	for _, target := range []error{
		models.ErrValidation, models.ErrNotFound, models.ErrExpired, models.ErrMismatch,
		models.ErrConflict, models.ErrNotPreProvisioned, models.ErrInvalidCredentials, models.ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

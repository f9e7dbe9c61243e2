package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var emailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// NotificationService renders the registration emails and hands them to a
// Mailer. Every failure is reported as models.ErrDelivery.
type NotificationService struct {
	mailer     Mailer
	baseURL    string
	adminEmail string
	otpTTL     time.Duration
}

func NewNotificationService(mailer Mailer, baseURL, adminEmail string, otpTTL time.Duration) *NotificationService {
	if otpTTL <= 0 {
		otpTTL = DefaultOTPTTL
	}
	return &NotificationService{
		mailer:     mailer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminEmail: adminEmail,
		otpTTL:     otpTTL,
	}
}

// RegistrationLink is the page where a validated user finishes signing up.
func (s *NotificationService) RegistrationLink(requestType string) string {
	return s.baseURL + "/" + models.RequestRole(requestType) + "/register"
}

func (s *NotificationService) SendOtpEmail(ctx context.Context, email, code, role string) error {
	data := struct {
		Role    string
		Code    string
		Minutes int
	}{role, code, int(s.otpTTL.Minutes())}
	return s.send(ctx, email, "Votre code de vérification RenalCare", "otp.html", data)
}

func (s *NotificationService) SendValidationEmail(ctx context.Context, req models.PendingRequest) error {
	data := struct {
		models.PendingRequest
		Link string
	}{req, s.RegistrationLink(req.Type)}
	return s.send(ctx, req.Email, "Votre demande de création de compte a été acceptée", "validated.html", data)
}

func (s *NotificationService) SendRefusalEmail(ctx context.Context, req models.PendingRequest) error {
	return s.send(ctx, req.Email, "Votre demande de création de compte a été refusée", "refused.html", req)
}

// SendContactNotification tells the clinic administrator that a new
// request was queued.
func (s *NotificationService) SendContactNotification(ctx context.Context, req models.PendingRequest) error {
	if s.adminEmail == "" {
		return fmt.Errorf("%w: ADMIN_EMAIL is not configured", models.ErrDelivery)
	}
	subject := fmt.Sprintf("Nouvelle demande via le formulaire (%s)", req.Type)
	return s.send(ctx, s.adminEmail, subject, "contact.html", req)
}

func (s *NotificationService) send(ctx context.Context, to, subject, tmpl string, data any) error {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return fmt.Errorf("%w: render %s: %v", models.ErrDelivery, tmpl, err)
	}
	if err := s.mailer.SendEmail(ctx, to, subject, buf.String()); err != nil {
		return fmt.Errorf("%w: send to %s: %v", models.ErrDelivery, to, err)
	}
	return nil
}

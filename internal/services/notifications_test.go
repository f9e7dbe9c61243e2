package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

func TestNotificationService_RegistrationLink(t *testing.T) {
	n := NewNotificationService(&fakeMailer{}, "https://renalcare.example/", "", 0)
	tests := map[string]string{
		"medecin": "https://renalcare.example/medecin/register",
		"Medecin": "https://renalcare.example/medecin/register",
		"patient": "https://renalcare.example/patient/register",
		"other":   "https://renalcare.example/patient/register",
	}
	for typ, want := range tests {
		if got := n.RegistrationLink(typ); got != want {
			t.Errorf("RegistrationLink(%q) = %q, want %q", typ, got, want)
		}
	}
}

func TestNotificationService_OtpEmail(t *testing.T) {
	m := &fakeMailer{}
	n := NewNotificationService(m, "https://renalcare.example", "", 15*time.Minute)
	if err := n.SendOtpEmail(context.Background(), "a@x.fr", "654321", "medecin"); err != nil {
		t.Fatalf("send: %v", err)
	}
	got := m.last()
	for _, want := range []string{"654321", "medecin", "15 minutes"} {
		if !strings.Contains(got.Body, want) {
			t.Errorf("body missing %q:\n%s", want, got.Body)
		}
	}
}

func TestNotificationService_EscapesUserInput(t *testing.T) {
	m := &fakeMailer{}
	n := NewNotificationService(m, "https://renalcare.example", "admin@clinic.example", 0)
	req := models.PendingRequest{Type: "patient", Prenom: "<script>", Nom: "X", Email: "a@x.fr", Message: "<b>hi</b>"}
	if err := n.SendContactNotification(context.Background(), req); err != nil {
		t.Fatalf("send: %v", err)
	}
	body := m.last().Body
	if strings.Contains(body, "<script>") || strings.Contains(body, "<b>hi</b>") {
		t.Errorf("user input not escaped:\n%s", body)
	}
	if !strings.Contains(body, "Non renseigné") {
		t.Errorf("missing phone placeholder:\n%s", body)
	}
}

func TestNotificationService_ContactNeedsAdminEmail(t *testing.T) {
	m := &fakeMailer{}
	n := NewNotificationService(m, "https://renalcare.example", "", 0)
	err := n.SendContactNotification(context.Background(), models.PendingRequest{Email: "a@x.fr"})
	if !errors.Is(err, models.ErrDelivery) {
		t.Errorf("expected ErrDelivery, got %v", err)
	}
	if m.count() != 0 {
		t.Error("mail sent without a recipient")
	}
}

func TestNotificationService_WrapsMailerErrors(t *testing.T) {
	m := &fakeMailer{failErr: errBoom}
	n := NewNotificationService(m, "https://renalcare.example", "", 0)
	err := n.SendRefusalEmail(context.Background(), models.PendingRequest{Email: "a@x.fr", Type: "patient"})
	if !errors.Is(err, models.ErrDelivery) {
		t.Errorf("expected ErrDelivery, got %v", err)
	}
}

func TestSMTPMailer_Message(t *testing.T) {
	m := NewSMTPMailer("smtp.example", 587, "noreply@renalcare.example", "pw", "Clinique Rénale")
	msg := string(m.message("a@x.fr", "Votre demande a été acceptée", "<p>ok</p>"))

	header, body, ok := strings.Cut(msg, "\r\n\r\n")
	if !ok {
		t.Fatalf("no header/body separator in %q", msg)
	}
	if body != "<p>ok</p>" {
		t.Errorf("body = %q", body)
	}
	for _, want := range []string{
		"To: a@x.fr",
		"<noreply@renalcare.example>",
		"Subject: =?utf-8?q?",
		`Content-Type: text/html; charset="utf-8"`,
	} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %q:\n%s", want, header)
		}
	}
	if strings.Contains(header, "é") {
		t.Errorf("non-ASCII left in headers:\n%s", header)
	}
}

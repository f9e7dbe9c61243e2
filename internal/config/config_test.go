package config

import (
	"os"
	"testing"
	"time"
)

func setenv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("API_PORT")
	os.Unsetenv("OTP_TTL")
	setenv(t, map[string]string{"MONGO_URI": "mongodb://localhost:27017"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.StoreDriver != DriverMongo {
		t.Errorf("expected mongo driver, got %s", cfg.StoreDriver)
	}
	if cfg.OTPTTL != 10*time.Minute {
		t.Errorf("expected 10m OTP TTL, got %s", cfg.OTPTTL)
	}
	if cfg.PlaceholderAgeYears != 30 {
		t.Errorf("expected placeholder age 30, got %d", cfg.PlaceholderAgeYears)
	}
	if len(cfg.DossierOwnerFields) != 1 || cfg.DossierOwnerFields[0] != "id_utilisateur" {
		t.Errorf("unexpected owner fields %v", cfg.DossierOwnerFields)
	}
}

func TestLoad_ListsAreSplit(t *testing.T) {
	setenv(t, map[string]string{
		"CORS_ORIGINS":         "https://a.example, https://b.example",
		"DOSSIER_OWNER_FIELDS": "id_utilisateur,utilisateur_id",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
	if len(cfg.DossierOwnerFields) != 2 || cfg.DossierOwnerFields[1] != "utilisateur_id" {
		t.Errorf("unexpected owner fields %v", cfg.DossierOwnerFields)
	}
}

func validConfig() *Config {
	return &Config{
		Env:                "development",
		StoreDriver:        DriverMongo,
		MongoURI:           "mongodb://localhost:27017",
		JWTSecret:          "test-secret",
		OTPTTL:             10 * time.Minute,
		BcryptCost:         10,
		DossierOwnerFields: []string{"id_utilisateur"},
		CORSOrigins:        []string{"http://localhost:3000"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "sqlite" }, true},
		{"mongo without uri", func(c *Config) { c.MongoURI = "" }, true},
		{"postgres without url", func(c *Config) { c.StoreDriver = DriverPostgres }, true},
		{"postgres with url", func(c *Config) {
			c.StoreDriver = DriverPostgres
			c.DatabaseURL = "postgres://localhost/renalcare"
		}, false},
		{"production without jwt secret", func(c *Config) { c.Env = "production"; c.JWTSecret = "" }, true},
		{"development without jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"zero otp ttl", func(c *Config) { c.OTPTTL = 0 }, true},
		{"bcrypt cost too high", func(c *Config) { c.BcryptCost = 40 }, true},
		{"no owner fields", func(c *Config) { c.DossierOwnerFields = nil }, true},
		{"bad owner field", func(c *Config) { c.DossierOwnerFields = []string{"id; DROP TABLE"} }, true},
		{"no cors origin", func(c *Config) { c.CORSOrigins = nil }, true},
		{"negative placeholder age", func(c *Config) { c.PlaceholderAgeYears = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_DefaultsRequireSecret(t *testing.T) {
	os.Unsetenv("ENV")
	os.Unsetenv("JWT_SECRET")
	setenv(t, map[string]string{"MONGO_URI": "mongodb://localhost:27017", "JWT_SECRET": ""})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject a configuration without JWT_SECRET")
	}
}

package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

var ownerFieldPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type Config struct {
	Port              string        `mapstructure:"API_PORT"`
	Env               string        `mapstructure:"ENV"`
	StoreDriver       string        `mapstructure:"STORE_DRIVER"`
	MongoURI          string        `mapstructure:"MONGO_URI"`
	MongoDatabase     string        `mapstructure:"MONGO_DATABASE"`
	MongoTransactions bool          `mapstructure:"MONGO_TRANSACTIONS"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	JWTTTL            time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	SMTPHost          string        `mapstructure:"SMTP_HOST"`
	SMTPPort          int           `mapstructure:"SMTP_PORT"`
	MailUser          string        `mapstructure:"MAIL_USER"`
	MailPass          string        `mapstructure:"MAIL_PASS"`
	MailFromName      string        `mapstructure:"MAIL_FROM_NAME"`
	AdminEmail        string        `mapstructure:"ADMIN_EMAIL"`
	AppBaseURL        string        `mapstructure:"APP_BASE_URL"`
	OTPTTL            time.Duration `mapstructure:"OTP_TTL"`
	BcryptCost        int           `mapstructure:"BCRYPT_COST"`

	PlaceholderAgeYears int      `mapstructure:"PLACEHOLDER_AGE_YEARS"`
	PlaceholderAddress  string   `mapstructure:"PLACEHOLDER_ADDRESS"`
	PlaceholderPhone    string   `mapstructure:"PLACEHOLDER_PHONE"`
	DossierOwnerFields  []string `mapstructure:"DOSSIER_OWNER_FIELDS"`
}

var keys = []string{
	"API_PORT", "ENV", "STORE_DRIVER", "MONGO_URI", "MONGO_DATABASE", "MONGO_TRANSACTIONS",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL", "JWT_SECRET", "JWT_TTL",
	"CORS_ORIGINS", "SMTP_HOST", "SMTP_PORT", "MAIL_USER", "MAIL_PASS", "MAIL_FROM_NAME",
	"ADMIN_EMAIL", "APP_BASE_URL", "OTP_TTL", "BCRYPT_COST", "PLACEHOLDER_AGE_YEARS",
	"PLACEHOLDER_ADDRESS", "PLACEHOLDER_PHONE", "DOSSIER_OWNER_FIELDS",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("API_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", DriverMongo)
	v.SetDefault("MONGO_DATABASE", "renalcare")
	v.SetDefault("MONGO_TRANSACTIONS", false)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM_NAME", "RenalCare")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("PLACEHOLDER_AGE_YEARS", 30)
	v.SetDefault("PLACEHOLDER_ADDRESS", "Adresse à compléter")
	v.SetDefault("PLACEHOLDER_PHONE", "0000000000")
	v.SetDefault("DOSSIER_OWNER_FIELDS", "id_utilisateur")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma-separated env values arrive as a single element.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.DossierOwnerFields = splitList(v.GetString("DOSSIER_OWNER_FIELDS"))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is usable before anything is
// connected.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER=%s", DriverMongo)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverPostgres, c.StoreDriver)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive, got %s", c.OTPTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if len(c.DossierOwnerFields) == 0 {
		return fmt.Errorf("DOSSIER_OWNER_FIELDS must name at least one field")
	}
	for _, f := range c.DossierOwnerFields {
		if !ownerFieldPattern.MatchString(f) {
			return fmt.Errorf("DOSSIER_OWNER_FIELDS: invalid field name %q", f)
		}
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}
	if c.PlaceholderAgeYears < 0 {
		return fmt.Errorf("PLACEHOLDER_AGE_YEARS must not be negative")
	}
	return nil
}

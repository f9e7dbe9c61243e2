package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harentsoaR/renalcare-api/internal/config"
	"github.com/harentsoaR/renalcare-api/internal/handlers"
	"github.com/harentsoaR/renalcare-api/internal/middleware"
	"github.com/harentsoaR/renalcare-api/internal/services"
	"github.com/harentsoaR/renalcare-api/internal/store"
	"github.com/harentsoaR/renalcare-api/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "renalcare-api",
		Short: "RenalCare account provisioning API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create indexes (mongo) or apply the schema (postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			stores, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer stores.Close(context.Background())

			if err := ensureSchema(ctx, stores); err != nil {
				return err
			}
			logger.Info().Str("driver", cfg.StoreDriver).Msg("migration complete")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var email, password, prenom, nom string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			stores, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer stores.Close(context.Background())

			accounts := services.NewAccountService(stores.Accounts, utils.NewBcryptHasher(cfg.BcryptCost))
			acc, err := accounts.CreateAdmin(ctx, email, password, prenom, nom)
			if err != nil {
				return err
			}
			logger.Info().Str("account_id", acc.ID).Str("email", acc.Email).Msg("admin created")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&prenom, "prenom", "Admin", "first name")
	cmd.Flags().StringVar(&nom, "nom", "RenalCare", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, logger, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openStores(ctx context.Context, cfg *config.Config) (*store.Stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return store.ConnectPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DossierOwnerFields)
	default:
		return store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.DossierOwnerFields, cfg.MongoTransactions)
	}
}

// ensureSchema creates the unique indexes (or tables) the repositories rely on
// for email uniqueness and one dossier per account. Safe to repeat.
func ensureSchema(ctx context.Context, stores *store.Stores) error {
	if stores.Migrate == nil {
		return errors.New("store has no migration")
	}
	if err := stores.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// newOTPStore shares codes through Redis when REDIS_URL is set, so several
// instances can serve the same registration.
func newOTPStore(ctx context.Context, cfg *config.Config) (services.OTPStore, func() error, error) {
	if cfg.RedisURL == "" {
		return services.NewMemoryOTPStore(services.WithTTL(cfg.OTPTTL)), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return services.NewRedisOTPStore(client, services.WithTTL(cfg.OTPTTL)), client.Close, nil
}

func runServer() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := context.Background()

	stores, err := openStores(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
		return err
	}
	defer stores.Close(context.Background())
	logger.Info().Str("driver", cfg.StoreDriver).Msg("store connected")

	if err := ensureSchema(ctx, stores); err != nil {
		logger.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to ensure indexes")
		return err
	}

	otp, closeOTP, err := newOTPStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeOTP()

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	// --- Services ---
	hasher := utils.NewBcryptHasher(cfg.BcryptCost)
	mailer := services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.MailUser, cfg.MailPass, cfg.MailFromName)
	notifier := services.NewNotificationService(mailer, cfg.AppBaseURL, cfg.AdminEmail, cfg.OTPTTL)
	resolver := services.NewDossierResolver(stores.Dossiers)
	metrics := services.NewMetrics()

	registration := services.NewRegistrationService(services.RegistrationDeps{
		Accounts:  stores.Accounts,
		Dossiers:  resolver,
		DossierDB: stores.Dossiers,
		Intakes:   stores.Intakes,
		Tx:        stores.Tx,
		OTP:       otp,
		Pending:   services.NewPendingStore(),
		Notifier:  notifier,
		Hasher:    hasher,
		Defaults: services.PlaceholderDefaults{
			AgeYears: cfg.PlaceholderAgeYears,
			Address:  cfg.PlaceholderAddress,
			Phone:    cfg.PlaceholderPhone,
		},
		Logger:  logger.With().Str("component", "registration").Logger(),
		Metrics: metrics,
	})
	accounts := services.NewAccountService(stores.Accounts, hasher)

	h := handlers.NewHandler(registration, accounts, resolver, tokens, logger)

	// --- Gin Router ---
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
	}))

	h.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kinship/internal/config"
	"kinship/internal/database"
	"kinship/internal/handlers"
	"kinship/internal/realtime"
	"kinship/internal/repository"
	"kinship/internal/security"
	"kinship/internal/service"
)

func main() {
	// A missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, pgx, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connection established", zap.String("type", cfg.DatabaseType))

	if err := db.RunMigrations(ctx, database.MigrationsFS(cfg.MigrationsPath), logger); err != nil {
		return err
	}

	uow := database.NewUnitOfWork(db, logger)

	// Repositories
	userRepo := repository.NewUserRepository()
	familyRepo := repository.NewFamilyRepository()
	memberRepo := repository.NewMemberRepository()
	notificationRepo := repository.NewNotificationRepository()

	// Credentials and delivery
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	tokens, err := security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, logger)
	if err != nil {
		return err
	}

	var publisher service.Publisher
	if p := realtime.NewPublisher(realtime.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}); p != nil {
		defer p.Close()
		if err := p.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, realtime notifications will fail until it recovers",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		publisher = p
	}

	// Services
	notificationService := service.NewNotificationService(uow, notificationRepo, userRepo, emailService, publisher, logger)
	media := service.MediaURLs{BaseURL: cfg.BaseURL, ProfilePath: cfg.ProfileUploadPath}
	authService := service.NewAuthService(uow, userRepo, hasher, tokens, emailService, cfg.OTPTTL, logger)
	familyService := service.NewFamilyService(uow, familyRepo, memberRepo, userRepo, logger)
	membershipService := service.NewMembershipService(uow, userRepo, familyRepo, memberRepo, notificationService, media, logger)
	registrationService := service.NewRegistrationService(uow, userRepo, familyRepo, memberRepo, notificationService, hasher, logger)

	limiter := security.NewRateLimiter(cfg.RateLimitPerMinute)
	defer limiter.Close()

	router := handlers.NewRouter(handlers.Handlers{
		Middleware:    handlers.NewMiddleware(tokens, limiter, logger),
		Metrics:       handlers.NewMetrics(),
		Health:        handlers.NewHealthHandler(db),
		Auth:          handlers.NewAuthHandler(authService, logger),
		Families:      handlers.NewFamilyHandler(familyService, logger),
		Members:       handlers.NewMemberHandler(membershipService, registrationService, logger),
		Notifications: handlers.NewNotificationHandler(notificationService, logger),
	}, cfg.CORSOrigins)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

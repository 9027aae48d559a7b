package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phishquest/phishquest-api/internal/auth"
	"github.com/phishquest/phishquest-api/internal/background"
	"github.com/phishquest/phishquest-api/internal/captcha"
	"github.com/phishquest/phishquest-api/internal/config"
	"github.com/phishquest/phishquest-api/internal/database"
	"github.com/phishquest/phishquest-api/internal/handlers"
	middlewareCustom "github.com/phishquest/phishquest-api/internal/middleware"
	"github.com/phishquest/phishquest-api/internal/repositories"
	"github.com/phishquest/phishquest-api/internal/routes"
	"github.com/phishquest/phishquest-api/internal/services"
	pkghttp "github.com/phishquest/phishquest-api/pkg/http"
	pkglogger "github.com/phishquest/phishquest-api/pkg/logger"
)

const tokenIssuer = "PhishQuest"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.Bool("require_two_fa", cfg.Auth.RequireTwoFA),
		slog.Bool("auto_verify_email", cfg.Auth.AutoVerifyEmail),
		slog.Bool("captcha_enabled", cfg.Captcha.Enabled))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	progressRepo := repositories.NewProgressRepository(db)

	cleanupManager := background.NewCleanupManager(userRepo, logger, cfg.Auth.CleanupInterval)

	// Token and TOTP managers
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry)
	totpManager := auth.NewTOTPManager(tokenIssuer)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Captcha verifier
	var captchaVerifier captcha.Verifier
	if cfg.Captcha.Enabled {
		captchaVerifier = captcha.NewHTTPVerifier(cfg.Captcha.VerifyURL, cfg.Captcha.Secret, cfg.Captcha.ScoreThreshold, logger)
	} else {
		logger.Warn("captcha verification disabled")
		captchaVerifier = captcha.DisabledVerifier{}
	}

	// Email delivery
	var emailService services.EmailService
	if cfg.Email.Enabled {
		emailService, err = services.NewAWSSESEmailService(
			cfg.Email.AWSRegion,
			cfg.Email.FromAddress,
			cfg.Email.VerificationURLBase,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		emailService = services.NewNoopEmailService(logger)
	}

	// Services
	policy := services.AuthPolicy{
		RequireTwoFA:            cfg.Auth.RequireTwoFA,
		AutoVerifyEmail:         cfg.Auth.AutoVerifyEmail,
		VerificationTokenExpiry: cfg.Auth.VerificationTokenExpiry,
	}
	authService := services.NewAuthService(userRepo, tokenManager, totpManager, captchaVerifier, emailService, policy, logger, auditLogger)
	twoFAService := services.NewTwoFAService(userRepo, totpManager, tokenManager, logger, auditLogger)
	progressService := services.NewProgressService(progressRepo, logger)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	twoFAHandler := handlers.NewTwoFAHandler(twoFAService, ipConfig)
	progressHandler := handlers.NewProgressHandler(progressService)
	healthHandler := handlers.NewHealthHandler(db)

	// Router
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.RateLimitByIP(middlewareCustom.RateLimitClass{
		MaxRequests: cfg.RateLimit.GeneralMaxRequests,
		Window:      cfg.RateLimit.GeneralWindow,
	}))

	routes.RegisterRoutes(router, authHandler, twoFAHandler, progressHandler, healthHandler, tokenManager, cfg.RateLimit)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background cleanup of stale verification tokens
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

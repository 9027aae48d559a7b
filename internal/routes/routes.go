package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/phishquest/phishquest-api/internal/auth"
	"github.com/phishquest/phishquest-api/internal/config"
	"github.com/phishquest/phishquest-api/internal/handlers"
	"github.com/phishquest/phishquest-api/internal/middleware"
)

// RegisterRoutes registers all application routes under /api
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	twoFAHandler *handlers.TwoFAHandler,
	progressHandler *handlers.ProgressHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *auth.TokenManager,
	rateLimits config.RateLimitConfig,
) {
	loginLimit := middleware.RateLimitByIP(middleware.LoginRateLimit(rateLimits.LoginMaxAttempts, rateLimits.LoginWindow))
	registerLimit := middleware.RateLimitByIP(middleware.RegisterRateLimit(rateLimits.RegisterMaxAttempts, rateLimits.RegisterWindow))

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)

		// Public routes - no authentication required
		r.With(registerLimit).Post("/auth/register", authHandler.Register)
		r.Get("/auth/verify-email", authHandler.VerifyEmail)
		r.With(loginLimit).Post("/auth/login", authHandler.Login)
		r.With(loginLimit).Post("/auth/verify-2fa-login", twoFAHandler.VerifyLogin)
		r.With(loginLimit).Post("/auth/recover-account", authHandler.Recover)

		// Authenticated routes - setup tokens pass, enrollment endpoints only
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(tokenManager))

			r.Get("/auth/verify", authHandler.Verify)
			r.Get("/auth/setup-2fa", twoFAHandler.Setup)
			r.With(loginLimit).Post("/auth/verify-2fa", twoFAHandler.Confirm)

			// Full session required past this point
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireSession)

				r.Get("/progress", progressHandler.Get)
				r.Put("/progress", progressHandler.Save)
			})
		})
	})
}

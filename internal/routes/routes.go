package routes

import (
	"github.com/fintrust/identity/internal/auth"
	"github.com/fintrust/identity/internal/handlers"
	"github.com/fintrust/identity/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	securityHandler *handlers.SecurityHandler,
	tokenManager *auth.TokenManager,
	permissions auth.PermissionChecker,
	edgeLimit middleware.EdgeRateLimitConfig,
) {
	router.Handle("/metrics", promhttp.Handler())

	// Public routes. The edge limit sheds floods; the login orchestrator
	// enforces the per-identity quota underneath it.
	router.Group(func(r chi.Router) {
		r.Use(middleware.EdgeRateLimit(edgeLimit))

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/verify-email", authHandler.VerifyEmail)
		r.Post("/auth/resend-verification", authHandler.ResendVerification)
	})

	// Authenticated routes
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Post("/auth/totp/enroll", securityHandler.EnrollTOTP)

		// Compliance and administration
		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePermission(permissions, "security.manage"))

			r.Put("/accounts/{accountID}/risk", securityHandler.SetRiskLevel)
			r.Post("/accounts/{accountID}/flag", securityHandler.FlagForReview)
			r.Delete("/accounts/{accountID}/flag", securityHandler.ClearFlag)
			r.Post("/accounts/{accountID}/can-transact", securityHandler.CanTransact)
			r.Get("/accounts/{accountID}/permissions", securityHandler.Permissions)
			r.Post("/accounts/{accountID}/roles", securityHandler.AssignRole)
			r.Delete("/accounts/{accountID}/roles/{roleName}", securityHandler.RevokeRole)
			r.Get("/login-attempts", securityHandler.LoginHistory)
		})
	})
}

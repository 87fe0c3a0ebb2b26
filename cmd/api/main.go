package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fintrust/identity/internal/auth"
	"github.com/fintrust/identity/internal/background"
	"github.com/fintrust/identity/internal/cache"
	"github.com/fintrust/identity/internal/config"
	"github.com/fintrust/identity/internal/database"
	"github.com/fintrust/identity/internal/handlers"
	middlewareCustom "github.com/fintrust/identity/internal/middleware"
	"github.com/fintrust/identity/internal/repositories"
	"github.com/fintrust/identity/internal/routes"
	"github.com/fintrust/identity/internal/services"
	pkghttp "github.com/fintrust/identity/pkg/http"
	pkglogger "github.com/fintrust/identity/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	roleRepo := repositories.NewRoleRepository(db)
	verificationRepo := repositories.NewEmailVerificationRepository(db)

	// Windowed counters backing the rate limiter and the lockout guard
	counterStore := cache.NewMemoryCounterStore()

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Token and second-factor managers
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	totpManager := auth.NewTOTPManager(cfg.Auth.TOTPIssuer)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Security.TimingDelayBaseMs,
		RandomDelayMs: cfg.Security.TimingDelayRandomMs,
	})

	// Role resolution and risk engine. The brute-force guard escalates
	// through the risk service, which resolves role ceilings through the
	// authorization service.
	authzService := services.NewAuthorizationService(roleRepo, logger)
	riskService := services.NewRiskService(accountRepo, authzService, services.RiskConfig{
		ClientDailyCeiling: cfg.Security.ClientDailyCeiling,
	}, logger)

	rateLimitService := services.NewRateLimitService(counterStore, services.RateLimitConfig{
		Enabled:           cfg.Security.RateLimitEnabled,
		RequestsPerMinute: cfg.Security.RateLimitPerMinute,
	}, logger)

	bruteForceService := services.NewBruteForceService(
		counterStore,
		accountRepo,
		attemptRepo,
		riskService,
		auditLogger,
		services.BruteForceConfig{
			Enabled:           cfg.Security.BruteForceEnabled,
			MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
			LockoutDuration:   cfg.Security.LockoutDuration,
			AttemptRetention:  cfg.Security.AttemptRetention,
		},
		logger,
	)

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.VerificationURLBase,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	emailVerificationService := services.NewEmailVerificationService(
		verificationRepo,
		accountRepo,
		emailService,
		logger,
		cfg.Email.TokenExpiry,
	)

	authService := services.NewAuthService(
		accountRepo,
		rateLimitService,
		bruteForceService,
		emailVerificationService,
		tokenManager,
		totpManager,
		timingDelay,
		auditLogger,
		cfg.Security.LockoutDuration,
		logger,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: trustedProxies()}
	authHandler := handlers.NewAuthHandler(authService, emailVerificationService, ipConfig)
	securityHandler := handlers.NewSecurityHandler(
		riskService,
		authzService,
		accountRepo,
		attemptRepo,
		totpManager,
		accountRepo,
	)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(
		attemptRepo,
		roleRepo,
		verificationRepo,
		counterStore,
		logger,
		cfg.Security.CleanupInterval,
	)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, securityHandler, tokenManager, authzService,
		middlewareCustom.EdgeRateLimitConfig{RequestsPerMinute: 60})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
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

// trustedProxies reads TRUSTED_PROXIES as a comma-separated list of CIDRs
func trustedProxies() []string {
	raw := os.Getenv("TRUSTED_PROXIES")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	proxies := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}

package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/billbridge/billbridge-api/internal/config"
	"github.com/billbridge/billbridge-api/internal/domain/audit"
	"github.com/billbridge/billbridge-api/internal/domain/funding"
	"github.com/billbridge/billbridge-api/internal/domain/provider"
	"github.com/billbridge/billbridge-api/internal/domain/transaction"
	"github.com/billbridge/billbridge-api/internal/domain/vtu"
	"github.com/billbridge/billbridge-api/internal/domain/wallet"
	"github.com/billbridge/billbridge-api/internal/middleware"
	"github.com/billbridge/billbridge-api/internal/pkg/database"
	"github.com/billbridge/billbridge-api/internal/pkg/jwt"
	"github.com/billbridge/billbridge-api/internal/pkg/logger"
	"github.com/billbridge/billbridge-api/internal/pkg/paystack"
	"github.com/billbridge/billbridge-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting BillBridge API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	cache, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		// The purchase rate limiter fails open without Redis.
		log.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
		cache = nil
	} else {
		defer database.CloseRedis(cache)
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	providerRepo := provider.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	transactionRepo := transaction.NewRepository(db)
	auditRepo := audit.NewRepository(db)

	// ---------- Audit sink ----------
	auditRecorder := audit.NewRecorder(auditRepo, 256)
	defer auditRecorder.Close()

	// ---------- Purchase engine ----------
	selector := provider.NewSelector(rand.New(rand.NewSource(time.Now().UnixNano())))
	gatewayClient := vtu.NewHTTPClient(vtu.GatewayConfig{
		BaseURL: cfg.VTUGatewayBaseURL,
		APIKey:  cfg.VTUGatewayAPIKey,
		Timeout: cfg.VTUGatewayTimeout,
	})
	executor := vtu.NewExecutor(gatewayClient, cfg.ProviderAttemptTimeout)
	purchaseSvc := vtu.NewService(walletRepo, transactionRepo, providerRepo, selector, executor, auditRecorder, vtu.Floors{
		Airtime:     cfg.MinAirtimeAmount,
		Data:        cfg.MinDataAmount,
		Electricity: cfg.MinElectricityAmount,
		TV:          cfg.MinTVAmount,
	})

	// ---------- Funding ----------
	paystackClient := paystack.NewClient(paystack.Config{
		BaseURL:   cfg.PaystackBaseURL,
		SecretKey: cfg.PaystackSecretKey,
		Timeout:   cfg.PaystackTimeout,
	})
	fundingSvc := funding.NewService(paystackClient, transactionRepo, walletRepo, auditRecorder, cfg.MinFundingAmount)

	// ---------- Wallet ----------
	walletSvc := wallet.NewService(walletRepo, auditRecorder)

	// ---------- Reconciler ----------
	reconciler := vtu.NewReconciler(transactionRepo, auditRecorder, cfg.ReconcileInterval, cfg.ProcessingTTL)
	reconciler.Start()
	defer reconciler.Stop()

	// ---------- Handlers ----------
	purchaseHandler := vtu.NewHandler(purchaseSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	fundingHandler := funding.NewHandler(fundingSvc, cfg.PaystackSecretKey)
	transactionHandler := transaction.NewHandler(transactionRepo)

	authMiddleware := middleware.Auth(jwtService)
	purchaseLimiter := middleware.RateLimit(cache, "purchase", cfg.PurchaseRateLimitPerMin)
	transferLimiter := middleware.RateLimit(cache, "transfer", cfg.PurchaseRateLimitPerMin)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/services", purchaseHandler.Routes(authMiddleware, purchaseLimiter))

		r.Route("/wallet", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/balance", walletHandler.Balance)
			r.Get("/ledger", walletHandler.Ledger)
			r.With(transferLimiter).Post("/transfer", walletHandler.Transfer)
			r.With(transferLimiter).Post("/fund", fundingHandler.Initiate)
			r.Post("/verify", fundingHandler.Verify)
		})

		r.Mount("/transactions", transactionHandler.Routes(authMiddleware))
	})

	r.Post("/webhooks/paystack", fundingHandler.Webhook)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-tarot-subscription/internal/config"
	"telegram-tarot-subscription/internal/domain/ports/repository"
	"telegram-tarot-subscription/internal/domain/ports/store"
	"telegram-tarot-subscription/internal/infra/api"
	"telegram-tarot-subscription/internal/infra/metrics"
	"telegram-tarot-subscription/internal/infra/records"
	red "telegram-tarot-subscription/internal/infra/redis"
	memstore "telegram-tarot-subscription/internal/infra/store/memory"
	pgstore "telegram-tarot-subscription/internal/infra/store/postgres"
	"telegram-tarot-subscription/internal/infra/store/supabase"
	"telegram-tarot-subscription/internal/usecase"

	"telegram-tarot-subscription/internal/infra/logging"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Store ----
	var st store.Store
	switch cfg.Store.Driver {
	case "supabase":
		st, err = supabase.NewClient(cfg.Store.Supabase, logger)
		if err != nil {
			log.Fatalf("supabase: %v", err)
		}
	case "postgres":
		pool, perr := pgstore.Connect(ctx, cfg.Store.Postgres.URL)
		if perr != nil {
			log.Fatalf("postgres: %v", perr)
		}
		defer pool.Close()
		st = pgstore.NewStore(pool, logger)
	case "memory":
		st = memstore.NewStore().
			WithUnique("users", "telegram_id").
			WithUnique("promo_codes", "code")
		logger.Warn().Msg("memory store selected; data will not survive a restart")
	default:
		log.Fatalf("unknown store driver %q", cfg.Store.Driver)
	}

	// ---- Repositories ----
	var accountRepo repository.AccountRepository = records.NewAccountRepo(st, logger)
	promoRepo := records.NewPromoCodeRepo(st, logger)
	paymentRepo := records.NewPaymentRepo(st)

	// ---- Optional Redis account cache ----
	if cfg.Redis.URL != "" {
		redisClient, rerr := red.NewClient(ctx, &cfg.Redis)
		if rerr != nil {
			log.Fatalf("redis: %v", rerr)
		}
		defer redisClient.Close()
		accountRepo = records.NewAccountRepoCacheDecorator(accountRepo, redisClient, cfg.Redis.TTL)
		logger.Info().Msg("redis account cache enabled")
	}

	// ---- Use cases ----
	entitlementUC := usecase.NewEntitlementUseCase(cfg.Limits.FreePredictions)
	accountUC := usecase.NewAccountUseCase(accountRepo, paymentRepo, entitlementUC, cfg.Limits.WriteAttempts, logger)
	quotaUC := usecase.NewQuotaUseCase(accountRepo, cfg.Limits.WriteAttempts, logger)
	promoUC := usecase.NewPromoUseCase(promoRepo, cfg.Promo.Prefix, cfg.Promo.CodeLength, logger)
	redemptionUC := usecase.NewRedemptionUseCase(promoRepo, accountUC, cfg.Limits.WriteAttempts, logger)

	// ---- HTTP API ----
	auth := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.SessionTTL)
	srv := api.NewServer(accountUC, entitlementUC, quotaUC, promoUC, redemptionUC, auth, cfg.Admin.APIKey, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	cancel()
}

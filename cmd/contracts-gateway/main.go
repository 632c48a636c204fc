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

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/sync/errgroup"

	"github.com/serenissima/contracts-gateway/internal/auth"
	"github.com/serenissima/contracts-gateway/internal/backend"
	"github.com/serenissima/contracts-gateway/internal/cache"
	"github.com/serenissima/contracts-gateway/internal/config"
	"github.com/serenissima/contracts-gateway/internal/db"
	"github.com/serenissima/contracts-gateway/internal/events"
	"github.com/serenissima/contracts-gateway/internal/excel"
	httphandler "github.com/serenissima/contracts-gateway/internal/http"
	"github.com/serenissima/contracts-gateway/internal/http/middleware"
	"github.com/serenissima/contracts-gateway/internal/jobs"
	"github.com/serenissima/contracts-gateway/internal/logger"
	"github.com/serenissima/contracts-gateway/internal/negotiation"
	"github.com/serenissima/contracts-gateway/internal/notify"
	"github.com/serenissima/contracts-gateway/internal/pdf"
	"github.com/serenissima/contracts-gateway/internal/registry"
	"github.com/serenissima/contracts-gateway/internal/repository"
	"github.com/serenissima/contracts-gateway/internal/service"
)

const streamPath = "/events/ws"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	responseRepo := repository.NewResponseRepository(database)
	ledgerRepo := repository.NewLedgerRepository(database)

	client, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init backend client")
	}

	catalog, err := registry.LoadCatalog(cfg.BuildingTypesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.BuildingTypesPath).Msg("failed to load building types")
	}
	reg := registry.New(catalog)

	bus := events.NewBus(log)
	cacheConfig := cache.Config{Enabled: cfg.Cache.Enabled, TTL: cfg.Cache.TTL}

	resources := service.NewResourceService(client, bus, cache.NewSettings(cacheConfig), log)
	citizens := service.NewCitizenService(client, bus, cache.NewSettings(cacheConfig), log)
	transactions := service.NewTransactionService(client, bus, cache.NewSettings(cacheConfig), log)
	contracts := service.NewPublicContractService(client, client, resources, ledgerRepo, bus, log)
	bids := service.NewBidService(client, client, client, ledgerRepo, bus, log)
	negotiations := service.NewNegotiationService(client, resources, responseRepo, ledgerRepo, negotiation.NewStore(), bus, log)
	details := service.NewBuildingDetailsService(client, client, resources, bids, contracts, citizens, reg, bus, log)
	ledger := service.NewLedgerService(client, client, ledgerRepo, excel.NewGenerator(), pdf.NewGenerator(), log)
	defer func() {
		details.Close()
		negotiations.Close()
		transactions.Close()
		citizens.Close()
		resources.Close()
	}()

	hub := notify.NewHub(bus, cfg.HTTP.CORSAllowedOrigins, log)

	scheduler := jobs.NewScheduler(jobs.Config{
		Schedule:    cfg.Cache.SweepSchedule,
		IdleTimeout: cfg.Negotiation.IdleTimeout,
	}, negotiations, []jobs.Sweeper{
		resources.CacheSettings(),
		citizens.CacheSettings(),
		transactions.CacheSettings(),
	}, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Stop()

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(httphandler.Services{
		Details:      details,
		Resources:    resources,
		Contracts:    contracts,
		Bids:         bids,
		Negotiations: negotiations,
		Transactions: transactions,
		Citizens:     citizens,
		Ledger:       ledger,
	}, hub, log)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		Auth:           middleware.Auth(tokenParser),
		StreamAuth:     middleware.OptionalAuth(tokenParser),
	})

	// Websocket upgrades need the raw connection, so they bypass compression.
	compressed := gzhttp.GzipHandler(router)
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == streamPath {
			router.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("starting contracts gateway")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

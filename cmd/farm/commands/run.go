package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"steam-trade-farm/internal/cache"
	"steam-trade-farm/internal/farm"
	"steam-trade-farm/internal/handler"
	"steam-trade-farm/internal/logger"
	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform/sandbox"
	"steam-trade-farm/internal/router"
	"steam-trade-farm/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log both accounts on and start the trade cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFarm(cmd.Context())
		},
	}
}

func runFarm(ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	log := logger.New(cfg.App.Debug)
	defer log.Sync()

	log.Info("starting steam trade farm",
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Environment),
		zap.Int("game", cfg.Farm.GameCode),
		zap.String("platform", cfg.Sandbox.Platform),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newCache(log)
	if err != nil {
		return err
	}
	defer c.Close()

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open sandbox: %w", err)
	}
	defer store.Close()
	log.Info("sandbox exchange opened", zap.String("driver", store.Driver()))

	ex := sandbox.NewExchange(store, log)
	client1, err := ex.Register(ctx, cfg.Account1)
	if err != nil {
		return fmt.Errorf("register account1: %w", err)
	}
	client2, err := ex.Register(ctx, cfg.Account2)
	if err != nil {
		return fmt.Errorf("register account2: %w", err)
	}

	seed, err := sandbox.LoadSeed(cfg.Sandbox.SeedFile)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	if err := seed.Apply(ctx, ex, cfg.Farm.GameCode, cfg.Farm.ContextID, cfg.Account1.Username, cfg.Account2.Username); err != nil {
		return fmt.Errorf("seed inventories: %w", err)
	}

	expiry := sandbox.NewExpiryScheduler(store, sandbox.ExpiryConfig{OfferTTL: cfg.Sandbox.OfferTTL}, log)
	expiry.Start()
	defer expiry.Stop()

	newAccount := func(creds model.Credentials, client *sandbox.Client) farm.Account {
		s := session.New(session.Config{
			Credentials:  creds,
			ContextID:    cfg.Farm.ContextID,
			RetryBackoff: cfg.Farm.RetryBackoff,
			Cache:        c,
			SnapshotTTL:  cfg.Cache.TTL,
		}, client.Offers(), client.Community(), log)
		return farm.Account{Session: s, Client: client}
	}

	code := model.NewSecurityCode()
	orch, err := farm.New(farm.Config{
		AppID:         cfg.Farm.GameCode,
		MaxRetries:    cfg.Farm.MaxRetries,
		InitialSettle: cfg.Farm.InitialSettle,
		OfferSettle:   cfg.Farm.OfferSettle,
		LogOnTimeout:  cfg.Farm.OperationTimeout,
	}, newAccount(cfg.Account1, client1), newAccount(cfg.Account2, client2), code, c, log)
	if err != nil {
		return err
	}

	h := handler.New(handler.Config{
		Service:  cfg.App.Name,
		Version:  cfg.App.Version,
		GameCode: cfg.Farm.GameCode,
		Farm:     orch,
		Exchange: store,
		Cache:    c,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router.New(router.Config{Handler: h, Logger: log}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("liveness server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	farmErr := make(chan error, 1)
	go func() {
		farmErr <- orch.Run(ctx)
	}()

	var runErr error
	farmDone := false
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("liveness server: %w", err)
	case err := <-farmErr:
		farmDone = true
		runErr = err
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}

	if !farmDone {
		if err := <-farmErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	client1.Disconnect("shutdown")
	client2.Disconnect("shutdown")

	if runErr != nil {
		log.Error("farm stopped", zap.Error(runErr))
		return runErr
	}
	log.Info("farm stopped")
	return nil
}

func openStore(ctx context.Context) (*sandbox.Store, error) {
	switch cfg.Sandbox.Driver {
	case "mysql":
		return sandbox.OpenMySQLStore(ctx, cfg.Sandbox.MySQLDSN())
	default:
		return sandbox.OpenStore(cfg.Sandbox.DBPath)
	}
}

func newCache(log *zap.Logger) (cache.Cache, error) {
	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.App.Name,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return rc, nil
	default:
		if cfg.App.IsProduction() {
			log.Warn("in-memory cache in production: handled offers are forgotten on restart")
		}
		return cache.NewMemoryCache(), nil
	}
}

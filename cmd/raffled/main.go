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

	"raffled/internal/api"
	"raffled/internal/config"
	"raffled/internal/logger"
	"raffled/internal/raffle"
	"raffled/internal/randomness"
	"raffled/internal/storage"
	"raffled/internal/tracker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gopkg.in/urfave/cli.v1"
)

func main() {
	app := cli.NewApp()
	app.Name = "raffled"
	app.Usage = "NFT raffle engine"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "path to a TOML configuration file",
			EnvVar: "RAFFLE_CONFIG",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the HTTP API and the settlement tracker",
			Action: serve,
		},
		{
			Name:   "migrate",
			Usage:  "create or update the database schema",
			Action: migrate,
		},
		{
			Name:   "settle",
			Usage:  "make one settlement pass over closed raffles",
			Action: settle,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type service struct {
	cfg     *config.Configuration
	storage storage.Storage
	engine  *raffle.Engine
	close   func()
}

func setup(c *cli.Context) (*service, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		return nil, fmt.Errorf("logger initialization: %w", err)
	}

	svc := &service{cfg: cfg, close: func() {}}
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		svc.storage = storage.NewMemoryStorage()
	default:
		sqlite, err := storage.NewSqliteStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		svc.storage = sqlite
		svc.close = func() {
			if err := sqlite.Close(); err != nil {
				logger.Warn("cannot close storage", zap.Error(err))
			}
		}
	}

	registry, err := cfg.RoyaltyRegistry()
	if err != nil {
		svc.close()
		return nil, err
	}

	var options []raffle.Option
	if cfg.Contract.CustodyAddress != "" {
		options = append(options, raffle.WithCustody(cfg.Contract.CustodyAddress))
	}
	svc.engine, err = raffle.New(context.Background(), svc.storage, registry, cfg.ContractDefaults(), options...)
	if err != nil {
		svc.close()
		return nil, err
	}
	return svc, nil
}

// newTracker acts as oracle for the current dao owner, which may differ from
// the configured one after an ownership transfer.
func (svc *service) newTracker(ctx context.Context) (*tracker.Tracker, error) {
	source, err := randomness.New(svc.cfg.Randomness.Source, svc.cfg.Randomness.Secret)
	if err != nil {
		return nil, err
	}
	contract, err := svc.engine.GetContractConfig()
	if err != nil {
		return nil, err
	}
	return tracker.NewTracker(ctx, svc.engine, source, contract.DAOAddress, svc.cfg.Tracker.AutoDistribute), nil
}

func serve(c *cli.Context) error {
	svc, err := setup(c)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)

	if svc.cfg.Tracker.Enabled {
		t, err := svc.newTracker(ctx)
		if err != nil {
			return err
		}
		go t.Loop(svc.cfg.Tracker.Interval.Duration)
	}

	if svc.cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:         svc.cfg.HTTP.Address,
		Handler:      api.NewRouter(svc.engine),
		ReadTimeout:  svc.cfg.HTTP.Timeout.Duration,
		WriteTimeout: svc.cfg.HTTP.Timeout.Duration,
		IdleTimeout:  svc.cfg.HTTP.IdleTimeout.Duration,
	}
	go func() {
		logger.Info("server started", zap.String("address", srv.Addr), zap.String("env", svc.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err = <-errCh:
		logger.Error("server failed", zap.Error(err))
	case <-waitForInterrupt():
		logger.Info("interrupt received, shutting down")
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("server shutdown", zap.Error(shutdownErr))
	}
	logger.Sync()
	return err
}

func migrate(c *cli.Context) error {
	svc, err := setup(c)
	if err != nil {
		return err
	}
	defer svc.close()

	logger.Info("schema up to date", zap.String("driver", svc.cfg.Storage.Driver), zap.String("path", svc.cfg.Storage.Path))
	return nil
}

func settle(c *cli.Context) error {
	svc, err := setup(c)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-waitForInterrupt():
			cancel()
		case <-ctx.Done():
		}
	}()

	t, err := svc.newTracker(ctx)
	if err != nil {
		return err
	}
	advanced, err := t.Run()
	logger.Info("settlement pass finished", zap.Int("advanced", advanced))
	return err
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}

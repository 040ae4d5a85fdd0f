package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/tap-to-win/internal/config"
	"github.com/DoyleJ11/tap-to-win/internal/httpapi"
	"github.com/DoyleJ11/tap-to-win/internal/ledger"
	"github.com/DoyleJ11/tap-to-win/internal/lobby"
	"github.com/DoyleJ11/tap-to-win/internal/logging"
)

const shutdownGrace = 5 * time.Second

func main() {
	// .env first so it can supply CONFIG_FILE
	envErr := godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Debug("no .env file loaded", zap.Error(envErr))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lobbyCtx, stopLobby := context.WithCancel(ctx)
	defer stopLobby()

	clock := clockwork.NewRealClock()
	lb := lobby.NewLobby(lobbyCtx, ledger.New(cfg.Ledger(), clock, nil), clock, lobby.Options{
		AutoDraw: cfg.AutoDraw,
		Logger:   logger,
	})

	opts := httpapi.Options{
		Logger:          logger,
		OwnerID:         ledger.UserID(cfg.OwnerID),
		EmptyDrawStatus: cfg.EmptyDrawStatus,
		AllowedOrigins:  cfg.CORSOrigins,
	}
	if cfg.StaticDir != "" {
		opts.Static = os.DirFS(cfg.StaticDir)
	}

	// Build the router *with* the lobby injected
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(lb, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.Duration("round_duration", cfg.RoundDuration),
			zap.Bool("auto_draw", cfg.AutoDraw),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	stopLobby()
	<-lb.Done()
	return err
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal/archive"
	"github.com/scythe504/whos-human-backend/internal/game"
	"github.com/scythe504/whos-human-backend/internal/random"
	"github.com/scythe504/whos-human-backend/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveOffline bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "use canned AI replies instead of Gemini")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rng, err := random.New()
	if err != nil {
		return err
	}
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	gen, err := newGenerator(ctx, rng, serveOffline)
	if err != nil {
		return err
	}

	settings := game.DefaultSettings()
	settings.GenerationTimeout = cfg.GenerationTimeout

	var arch *archive.Archive
	var onCreate func(*game.Controller)
	if cfg.DatabaseURL != "" {
		arch, err = archive.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer arch.Close()
		if err := arch.Migrate(ctx); err != nil {
			return err
		}
		onCreate = func(c *game.Controller) { arch.Watch(c.Store()) }
		logger.Info("game archive enabled")
	}

	games := game.NewManager(game.ManagerConfig{
		Generator:      gen,
		Catalog:        catalog,
		Settings:       settings,
		Rand:           rng,
		Log:            logger,
		AIParticipants: cfg.AIParticipants,
		OnCreate:       onCreate,
		IdleTimeout:    cfg.GameIdleTimeout,
		FinishedTTL:    cfg.GameFinishedTTL,
	})
	defer games.Close()

	srv := server.NewServer(cfg.Addr(), games, arch, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

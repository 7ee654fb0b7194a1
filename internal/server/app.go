// Package server runs the mediakeeper daemon: the HTTP API, the gRPC health
// endpoint, the periodic sync loop and, for filesystem catalogs, the change
// watcher. Everything stops together on SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/mediakeeper/internal/bootstrap"
	"github.com/dmitrijs2005/mediakeeper/internal/catalog/fscatalog"
	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/dmitrijs2005/mediakeeper/internal/config"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
	"github.com/dmitrijs2005/mediakeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/mediakeeper/internal/watcher"

	gs "github.com/dmitrijs2005/mediakeeper/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	rt     *bootstrap.Runtime
	health *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, closer, err := bootstrap.NewLogger(c)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}
	app.health = gs.NewHealthServer(c.GRPCHealthAddr, logger)

	if c.ConsentMode == config.ConsentPrompt {
		logger.Warn(ctx, "consent prompts need a terminal; the server refuses permanent deletes in prompt mode")
	}

	rt, err := bootstrap.Build(ctx, c, logger, bootstrap.Deps{
		Consenter: bootstrap.NewConsenter(c, nil, os.Stdout, false),
		OnSync:    app.onSync,
	})
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	app.rt = rt.WithLogCloser(closer)

	return app, nil
}

// onSync keeps the health endpoint in step with catalog availability.
func (app *App) onSync(_ models.SyncReport, err error) {
	switch {
	case err == nil:
		app.health.SetServing(true)
	case errors.Is(err, common.ErrCatalogUnavailable):
		app.health.SetServing(false)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer func() {
		if err := app.rt.Close(); err != nil {
			app.logger.Error(context.Background(), "failed to close runtime", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	loc, err := app.config.Location()
	if err != nil {
		return err
	}
	router := httpapi.NewRouter(app.rt.Library, httpapi.Options{
		SecretKey: []byte(app.config.SecretKey),
		Location:  loc,
		Logger:    app.logger,
	})

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.logger.Error(ctx, name+" stopped", "error", err)
				cancelFunc()
			}
		}()
	}

	start("grpc health server", app.health.Run)
	start("http server", httpapi.NewServer(app.config.HTTPAddr, router, app.logger).Run)
	start("sync loop", newScheduler(app.rt.Library, app.config.SyncInterval, app.config.AutoPurge, app.logger).Run)

	if app.config.CatalogKind == config.CatalogFS && app.config.WatchCatalog {
		w := watcher.New(app.config.CatalogRoot, app.config.WatchDebounce, func(ctx context.Context) error {
			_, err := app.rt.Library.Sync(ctx)
			return err
		}, fscatalog.IsMediaPath, app.logger)
		start("catalog watcher", w.Run)
	}

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return nil
}

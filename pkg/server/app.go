package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/cache"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/config"
	xhttp "github.com/garen0616/sp500-hit-tester-stable/pkg/http"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	store      repository.ResultStore
	events     repository.RunEvents
	decisions  cache.Service
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	store repository.ResultStore,
	events repository.RunEvents,
	decisions cache.Service,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		store:     store,
		events:    events,
		decisions: decisions,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("backtest service started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops the server and closes infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("result store close error", applogger.Error(err))
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("run events close error", applogger.Error(err))
		}
	}
	if a.decisions != nil {
		if err := a.decisions.Close(); err != nil {
			a.log.Warn("decision cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

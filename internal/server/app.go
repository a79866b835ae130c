// Package server assembles the users service: it opens the store, builds the
// dispatcher with its handlers and runs every configured transport in one
// task group.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/handlers"
	"github.com/dmitrijs2005/usersvc/internal/server/httpserver"
	"github.com/dmitrijs2005/usersvc/internal/server/metrics"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/usersvc/internal/server/router"
	"github.com/dmitrijs2005/usersvc/internal/server/services"
	"github.com/dmitrijs2005/usersvc/internal/server/tcpserver"
	"github.com/dmitrijs2005/usersvc/internal/server/transport"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/usersvc/internal/server/grpc"
)

// runner is a transport that serves until its context is done.
type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config     *config.Config
	logger     logging.Logger
	repos      repomanager.RepositoryManager
	dispatcher *router.Dispatcher
	metrics    *metrics.Metrics
	binder     *transport.Binder
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	repos, err := repomanager.Open(ctx, c.DatabaseDSN, repomanager.Options{PoolSize: c.DatabasePoolSize})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	logger.Info(ctx, "Store opened", "backend", repos.Backend())

	m := metrics.New()
	d := router.NewDispatcher(logger, router.WithObserver(m))
	handlers.New(services.NewUserService(repos), logger).Register(d)

	return &App{
		config:     c,
		logger:     logger,
		repos:      repos,
		dispatcher: d,
		metrics:    m,
		binder:     transport.NewBinder(c.CertFile, c.KeyFile, c.MaxConnections, logger),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			app.logger.Info(ctx, "Signal received", "signal", sig.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// runners returns the transports with a configured address.
func (app *App) runners() map[string]runner {
	r := make(map[string]runner)
	if app.config.HTTPAddr != "" {
		r["http"] = httpserver.New(app.config.HTTPAddr, app.binder, app.dispatcher, app.logger,
			httpserver.WithMetrics(app.metrics),
			httpserver.WithShutdownTimeout(app.config.ShutdownTimeout),
		)
	}
	if app.config.TCPAddr != "" {
		r["tcp"] = tcpserver.New(app.config.TCPAddr, app.binder, app.dispatcher, app.logger)
	}
	if app.config.GRPCAddr != "" {
		r["grpc"] = gs.NewGRPCServer(app.config.GRPCAddr, app.binder, app.dispatcher, app.logger)
	}
	return r
}

// Run serves every transport until ctx is done or a signal arrives. The
// first transport to fail cancels the others, and its error is returned
// once all of them have stopped. The store is closed on the way out.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	for name, r := range app.runners() {
		g.Go(func() error {
			if err := r.Run(gctx); err != nil {
				app.logger.Error(gctx, "transport failed", "transport", name, "error", err)
				return fmt.Errorf("%s transport: %w", name, err)
			}
			return nil
		})
	}

	err := g.Wait()

	if cerr := app.repos.Close(); cerr != nil {
		app.logger.Error(ctx, "closing store", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}

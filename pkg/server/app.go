package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StayCast/internal/domain/repository"
	"StayCast/internal/usecase"
	pkgch "StayCast/pkg/clickhouse"
	"StayCast/pkg/config"
	xhttp "StayCast/pkg/http"
	applogger "StayCast/pkg/logger"
)

// App encapsulates the application lifecycle: schema init, HTTP server,
// graceful shutdown of downstream clients.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	coord      *usecase.Coordinator
	handler    xhttp.Handler
	chClient   *pkgch.Client
	sink       repository.ResultSink
	pub        repository.Publisher
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	coord *usecase.Coordinator,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	sink repository.ResultSink,
	pub repository.Publisher,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		coord:    coord,
		handler:  handler,
		chClient: chClient,
		sink:     sink,
		pub:      pub,
	}
}

// Run starts the HTTP server and blocks until interrupted.
func (a *App) Run() error {
	if err := a.initSchema(); err != nil {
		return err
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// RunOnce executes a single evaluation run and exits. Used for scheduled
// batch execution instead of serving HTTP.
func (a *App) RunOnce(ctx context.Context, targets ...string) error {
	if err := a.initSchema(); err != nil {
		return err
	}
	defer a.closeClients()

	summary, err := a.coord.Run(ctx, targets...)
	if err != nil {
		return err
	}
	a.log.Info("run complete",
		applogger.String("run_id", summary.RunID),
		applogger.Int("selections", summary.Selections),
		applogger.Int("gaps", summary.Gaps))
	return nil
}

func (a *App) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.sink.Init(ctx); err != nil {
		a.log.Error("schema init failed", applogger.Error(err))
		return err
	}
	return nil
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http server stop error", applogger.Error(err))
		}
	}
	a.closeClients()
	a.log.Info("shutdown complete")
	return nil
}

func (a *App) closeClients() {
	if err := a.pub.Close(); err != nil {
		a.log.Error("publisher close error", applogger.Error(err))
	}
	if err := a.sink.Close(); err != nil {
		a.log.Error("result sink close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Error("clickhouse close error", applogger.Error(err))
		}
	}
}

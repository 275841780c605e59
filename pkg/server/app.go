package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TarLab/internal/service/ratelimit"
	"TarLab/pkg/config"
	xhttp "TarLab/pkg/http"
	pkgkafka "TarLab/pkg/kafka"
	applogger "TarLab/pkg/logger"
	"TarLab/pkg/queue"
)

// Components are the optional moving parts of the application. Nil members
// are skipped.
type Components struct {
	Handler     xhttp.Handler
	Consumer    *pkgkafka.Consumer
	JobsHandler pkgkafka.MessageHandler
	Queue       *queue.RedisQueue
	QueueJob    queue.Job
	Limiter     *ratelimit.Limiter
	// Closers are closed in order after every worker has stopped.
	Closers []NamedCloser
}

// NamedCloser is a resource released on shutdown.
type NamedCloser struct {
	Name   string
	Closer io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	c          Components
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	if log == nil {
		log = applogger.Nop()
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return &App{
		cfg: cfg,
		log: log,
		c:   c,
		httpServer: xhttp.NewServer(c.Handler,
			xhttp.WithHost(cfg.Server.Host),
			xhttp.WithPort(cfg.Server.Port),
			xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
			xhttp.WithCORS(cfg.Server.CORS),
			xhttp.WithMetricsPath(metricsPath),
			xhttp.WithLogger(log),
		),
	}
}

// HTTPServer exposes the HTTP server, mainly for tests.
func (a *App) HTTPServer() *xhttp.Server { return a.httpServer }

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done, then
// shuts down gracefully.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		a.shutdown()
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) start(ctx context.Context) error {
	if a.c.Consumer != nil && a.c.JobsHandler != nil {
		a.c.Consumer.RegisterHandler(a.c.JobsHandler)
		if err := a.c.Consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.c.JobsHandler.Topic()))
	}

	if a.c.Queue != nil && a.c.QueueJob != nil {
		a.c.Queue.RegisterJob(a.c.QueueJob)
		if err := a.c.Queue.Start(); err != nil {
			a.log.Error("job queue start error", applogger.Error(err))
			return err
		}
		a.log.Info("job queue started", applogger.Int("workers", a.cfg.Queue.Workers))
	}

	if a.c.Limiter != nil {
		go a.sweep(ctx, a.c.Limiter)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// sweep drops idle rate limiter buckets once a minute.
func (a *App) sweep(ctx context.Context, l *ratelimit.Limiter) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Sweep(); n > 0 {
				a.log.Debug("rate limiter swept", applogger.Int("keys", n), applogger.Int("remaining", l.Len()))
			}
		}
	}
}

// shutdown stops intake first, then workers, then infrastructure clients.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.c.Queue != nil {
		if err := a.c.Queue.Stop(ctx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}

	for _, nc := range a.c.Closers {
		if nc.Closer == nil {
			continue
		}
		if err := nc.Closer.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", nc.Name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	a.log.RemoveCollector()
}

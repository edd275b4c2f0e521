package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalDesk/internal/service/ratelimit"
	"SignalDesk/internal/usecase"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"
	pkgkafka "SignalDesk/pkg/kafka"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/queue"
)

const limiterSweepEvery = time.Minute

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	collector  *usecase.TickCollector
	processor  *usecase.TickProcessor
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	scheduler  *usecase.WatchlistScheduler
	queue      queue.Runner
	limiter    *ratelimit.Limiter
	closers    []namedCloser
}

// Option attaches an optional component. Components left unset are skipped at start and stop.
type Option func(*App)

func WithCollector(c *usecase.TickCollector) Option {
	return func(a *App) { a.collector = c }
}

func WithTickProcessor(p *usecase.TickProcessor) Option {
	return func(a *App) { a.processor = p }
}

func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.kh = h
	}
}

func WithScheduler(s *usecase.WatchlistScheduler) Option {
	return func(a *App) { a.scheduler = s }
}

func WithQueue(q queue.Runner) Option {
	return func(a *App) { a.queue = q }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *App) { a.limiter = l }
}

// WithCloser registers an infrastructure client closed at the end of shutdown, in registration order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) { a.closers = append(a.closers, namedCloser{name: name, c: c}) }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, l: l, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		a.l.Error("app.start_failed", applogger.Error(err))
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.l.Info("app.shutdown_signal")
	return a.shutdown()
}

func (a *App) start(ctx context.Context) error {
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
		a.l.Info("queue.started")
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			return err
		}
		a.l.Info("collector.started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.l.Info("kafka.consumer_started", applogger.String("topic", a.kh.Topic()))
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
	}

	if a.limiter != nil {
		go a.sweepLimiter(ctx)
	}

	return a.httpServer.Start()
}

// sweepLimiter drops buckets of clients that have been idle for a while.
func (a *App) sweepLimiter(ctx context.Context) {
	t := time.NewTicker(limiterSweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(5 * limiterSweepEvery); n > 0 {
				a.l.Debug("ratelimit.swept", applogger.Int("buckets", n))
			}
		}
	}
}

// shutdown stops intake first, then the HTTP server, then workers, then infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.l.Warn("collector.stop_error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka.consumer_stop_error", applogger.Error(err))
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	var httpErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http.shutdown_error", applogger.Error(err))
		httpErr = err
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("queue.stop_error", applogger.Error(err))
		}
	}
	if a.processor != nil {
		a.processor.Close()
	}
	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.l.Warn("close_error", applogger.String("component", nc.name), applogger.Error(err))
		}
	}

	a.l.Info("app.shutdown_complete")
	return httpErr
}

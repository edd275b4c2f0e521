package usecase

import (
	"context"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	mid "SignalDesk/internal/middleware"
	applogger "SignalDesk/pkg/logger"
)

// TickCollector reads ticks from a live stream and hands them to the pipeline (or processor).
type TickCollector struct {
	stream  drepo.TickStream
	proc    *TickProcessor
	metrics drepo.Metrics
	pipe    *mid.TickPipeline
	l       *applogger.Logger
	done    chan struct{}
}

func NewTickCollector(stream drepo.TickStream, proc *TickProcessor, metrics drepo.Metrics, pipe *mid.TickPipeline, l *applogger.Logger) *TickCollector {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &TickCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, l: l, done: make(chan struct{})}
}

// IsConnected returns true if the tick stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes in the background until ctx is cancelled.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	go c.run(ctx)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *TickCollector) Done() <-chan struct{} { return c.done }

func (c *TickCollector) run(ctx context.Context) {
	defer close(c.done)
	for {
		ticks, errs := c.stream.Read(ctx)
		c.consume(ctx, ticks, errs)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		if !c.reconnect(ctx) {
			return
		}
	}
}

// consume returns when the stream reports an error, its channels close, or ctx ends.
func (c *TickCollector) consume(ctx context.Context, ticks <-chan *models.Tick, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil {
				c.l.Warn("collector.stream_error", applogger.Error(err))
				return
			}
		case t, ok := <-ticks:
			if !ok {
				return
			}
			if t == nil {
				continue
			}
			var err error
			if c.pipe != nil {
				err = c.pipe.Process(ctx, t)
			} else {
				err = c.proc.Process(ctx, t)
			}
			if err != nil {
				c.l.Debug("collector.process_failed", applogger.String("symbol", t.Symbol), applogger.Error(err))
			}
		}
	}
}

func (c *TickCollector) reconnect(ctx context.Context) bool {
	backoff := time.Second
	for attempt := 1; ; attempt++ {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			c.l.Info("collector.reconnected", applogger.Int("attempt", attempt))
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.l.Warn("collector.reconnect_failed", applogger.Int("attempt", attempt), applogger.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
		backoff = min(2*backoff, 30*time.Second)
	}
}

// Processor returns the underlying TickProcessor for lifecycle management.
func (c *TickCollector) Processor() *TickProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}

package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/util"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.Tick) error
}

// TickPipeline sits between the live tick stream and the TickProcessor. It validates and
// normalizes ticks, coalesces bursts per symbol, and buffers when downstream fails.
type TickPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	minGap  time.Duration
	bufCh   chan *models.Tick
	stopCh  chan struct{}
	now     func() time.Time

	mu      sync.Mutex
	started bool
	last    map[string]time.Time // per-symbol last forwarded time
	pending map[string]float64   // volume of coalesced ticks not yet forwarded
}

type PipelineOption func(*TickPipeline)

// WithMinInterval forwards at most one tick per symbol per d; the volume of skipped ticks is
// carried by the next forwarded one.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *TickPipeline) {
		if d >= 0 {
			p.minGap = d
		}
	}
}

// WithBufferSize sets the retry buffer used when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.Tick, n)
		}
	}
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) PipelineOption {
	return func(p *TickPipeline) { p.now = now }
}

func NewTickPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		proc:    proc,
		metrics: metrics,
		minGap:  250 * time.Millisecond,
		bufCh:   make(chan *models.Tick, 1000),
		stopCh:  make(chan struct{}),
		now:     time.Now,
		last:    make(map[string]time.Time),
		pending: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = nopMetrics{}
	}
	return p
}

// Start launches background flushing of buffered ticks.
func (p *TickPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case t := <-p.bufCh:
				if err := p.proc.Process(ctx, t); err != nil {
					backoff = min(backoff*2, 2*time.Second)
					p.metrics.RecordError("pipeline_flush")
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					}
					select {
					case p.bufCh <- t:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *TickPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Process validates, coalesces and forwards a tick, buffering on downstream errors.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick) error {
	start := p.now()
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	out := *t
	out.Symbol = util.NormalizeSymbol(out.Symbol)
	out.Timestamp = util.UnixSeconds(out.Timestamp)

	if !p.admit(&out, start) {
		return nil
	}

	if err := p.proc.Process(ctx, &out); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- &out:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", p.now().Sub(start).Seconds())
	return nil
}

// Buffered returns the number of ticks waiting for a retry.
func (p *TickPipeline) Buffered() int { return len(p.bufCh) }

// admit decides whether t is forwarded now. Coalesced volume is added to an admitted tick.
func (p *TickPipeline) admit(t *models.Tick, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.last[t.Symbol]; ok && p.minGap > 0 && now.Sub(last) < p.minGap {
		p.pending[t.Symbol] += t.Volume
		p.metrics.RecordError("pipeline_coalesce")
		return false
	}
	p.last[t.Symbol] = now
	t.Volume += p.pending[t.Symbol]
	delete(p.pending, t.Symbol)
	return true
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price <= 0 || t.Volume < 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return fmt.Errorf("invalid price/volume")
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordMessageSent(string, string)     {}
func (nopMetrics) RecordError(string)                   {}
func (nopMetrics) RecordLastPrice(string, float64)      {}
func (nopMetrics) RecordLatency(string, float64)        {}
func (nopMetrics) RecordAnalysis(string, string)        {}
func (nopMetrics) RecordCacheLookup(string, bool)       {}
func (nopMetrics) RecordConfidence(string, string, int) {}

package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
)

// Tick forwarding backends.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// TickProcessor feeds live ticks into the candle store and forwards them to the configured backend.
type TickProcessor struct {
	ingestor drepo.TickIngestor
	pub      drepo.TickPublisher
	store    drepo.TickStorage
	metrics  drepo.Metrics
	backend  string
}

// NewTickProcessor creates a TickProcessor. pub and store may be nil when their backend is unused.
func NewTickProcessor(
	ingestor drepo.TickIngestor,
	pub drepo.TickPublisher,
	store drepo.TickStorage,
	metrics drepo.Metrics,
	backend string,
) *TickProcessor {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if backend == "" {
		backend = BackendNone
	}
	return &TickProcessor{ingestor: ingestor, pub: pub, store: store, metrics: metrics, backend: backend}
}

// Backend reports where ticks are forwarded after ingestion.
func (p *TickProcessor) Backend() string { return p.backend }

// Process ingests one tick and routes it to the backend.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	start := time.Now()
	if p.ingestor != nil {
		p.ingestor.Ingest(*t)
	}

	var err error
	switch p.backend {
	case BackendNone:
	case BackendKafka:
		err = p.pub.Publish(ctx, t)
	case BackendClickHouse:
		err = p.store.Store(ctx, t)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process tick: %w", err)
	}

	p.metrics.RecordMessageSent(p.backend, t.Symbol)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch ingests and forwards several ticks at once.
func (p *TickProcessor) ProcessBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	start := time.Now()
	if p.ingestor != nil {
		for _, t := range ticks {
			p.ingestor.Ingest(*t)
		}
	}

	var err error
	switch p.backend {
	case BackendNone:
	case BackendKafka:
		err = p.pub.PublishBatch(ctx, ticks)
	case BackendClickHouse:
		err = p.store.StoreBatch(ctx, ticks)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, t := range ticks {
		p.metrics.RecordMessageSent(p.backend, t.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close releases the forwarding backends.
func (p *TickProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	pkgkafka "SignalDesk/pkg/kafka"
	"SignalDesk/pkg/util"
)

// KafkaTicksHandler consumes {symbol, t, c, v} messages into the candle store and, when
// configured, the raw tick table.
type KafkaTicksHandler struct {
	topic    string
	ingestor domrepo.TickIngestor
	storage  domrepo.TickStorage
	metrics  domrepo.Metrics
	now      func() time.Time
}

func NewKafkaTicksHandler(topic string, ingestor domrepo.TickIngestor, storage domrepo.TickStorage, metrics domrepo.Metrics) *KafkaTicksHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &KafkaTicksHandler{topic: topic, ingestor: ingestor, storage: storage, metrics: metrics, now: time.Now}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var t models.Tick
	if err := json.Unmarshal(b, &t); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode tick: %w", err)
	}
	t.Symbol = util.NormalizeSymbol(t.Symbol)
	t.Timestamp = util.UnixSeconds(t.Timestamp)
	if t.Symbol == "" || t.Timestamp <= 0 || t.Price <= 0 {
		// malformed ticks are dropped, retrying would not fix them
		h.metrics.RecordError("consumer_invalid")
		return nil
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", h.now().Sub(time.Unix(t.Timestamp, 0)).Seconds())

	if h.ingestor != nil {
		h.ingestor.Ingest(t)
	}
	h.metrics.RecordLastPrice(t.Symbol, t.Price)

	if h.storage == nil {
		return nil
	}
	start := time.Now()
	err := h.storage.Store(ctx, &t)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return fmt.Errorf("store tick: %w", err)
	}
	h.metrics.RecordMessageSent("clickhouse", t.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)

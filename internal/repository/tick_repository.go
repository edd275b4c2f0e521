package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	pkgch "SignalDesk/pkg/clickhouse"
	pkgkafka "SignalDesk/pkg/kafka"
	"SignalDesk/pkg/util"
)

// ClickHouseTickStorage implements TickStorage for ClickHouse. The one-minute candle table is
// fed from the tick table by a materialized view.
type ClickHouseTickStorage struct {
	ch      *pkgch.Client
	db      *sql.DB
	table   string
	source  string
	ttlDays int
}

// NewClickHouseTickStorage creates ClickHouse tick storage.
func NewClickHouseTickStorage(ch *pkgch.Client, source string, ttlDays int) *ClickHouseTickStorage {
	if source == "" {
		source = "finnhub"
	}
	return &ClickHouseTickStorage{ch: ch, db: ch.DB(), table: pkgch.TicksTable, source: source, ttlDays: ttlDays}
}

func (s *ClickHouseTickStorage) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, pkgch.SchemaStatements(s.ttlDays))
}

func (s *ClickHouseTickStorage) Store(ctx context.Context, t *models.Tick) error {
	return s.StoreBatch(ctx, []*models.Tick{t})
}

// StoreBatch inserts multi-row VALUES in chunks of 2000 rows. event_id makes replays idempotent
// once ReplacingMergeTree merges.
func (s *ClickHouseTickStorage) StoreBatch(ctx context.Context, ticks []*models.Tick) error {
	const chunkSize = 2000
	for start := 0; start < len(ticks); start += chunkSize {
		end := min(start+chunkSize, len(ticks))

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*6)
		for _, t := range ticks[start:end] {
			if t == nil || t.Symbol == "" || t.Timestamp == 0 {
				continue
			}
			sym := util.NormalizeSymbol(t.Symbol)
			sec := util.UnixSeconds(t.Timestamp)
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args,
				time.Unix(sec, 0).UTC(),
				sym,
				t.Price,
				t.Volume,
				s.source,
				fmt.Sprintf("%s-%d-%g", sym, t.Timestamp, t.Price),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, volume, source, event_id) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert ticks: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseTickStorage) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Tick, error) {
	q := fmt.Sprintf("SELECT symbol, ts, price, volume FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, util.NormalizeSymbol(symbol), from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []*models.Tick
	for rows.Next() {
		var t models.Tick
		var ts time.Time
		if err := rows.Scan(&t.Symbol, &ts, &t.Price, &t.Volume); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.Timestamp = ts.Unix()
		ticks = append(ticks, &t)
	}
	return ticks, rows.Err()
}

func (s *ClickHouseTickStorage) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *ClickHouseTickStorage) Close() error {
	return nil // pool owned by pkg/clickhouse.Client
}

// producer is the slice of *pkgkafka.Producer the publishers need.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaTickPublisher implements TickPublisher for Kafka, keyed by symbol.
type KafkaTickPublisher struct {
	producer producer
	topic    string
}

func NewKafkaTickPublisher(p *pkgkafka.Producer, topic string) *KafkaTickPublisher {
	return &KafkaTickPublisher{producer: p, topic: topic}
}

func (p *KafkaTickPublisher) Publish(ctx context.Context, t *models.Tick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), t)
}

func (p *KafkaTickPublisher) PublishBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(ticks))
	for i, t := range ticks {
		msgs[i] = pkgkafka.Message{Key: []byte(t.Symbol), Value: t}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaTickPublisher) Close() error {
	return nil // producer is shared with the signal publisher and closed by the app
}

// KafkaSignalPublisher writes confluence results to the signals topic keyed by symbol.
type KafkaSignalPublisher struct {
	producer producer
	topic    string
}

func NewKafkaSignalPublisher(p *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: p, topic: topic}
}

func (p *KafkaSignalPublisher) PublishSignal(ctx context.Context, r *models.ConfluenceResult) error {
	if r == nil {
		return nil
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(r.PrimarySignal.Symbol), r); err != nil {
		return fmt.Errorf("publish signal %s: %w", r.PrimarySignal.ID, err)
	}
	return nil
}

// Close is a no-op; the producer is shared with tick publishing and closed by its owner.
func (p *KafkaSignalPublisher) Close() error { return nil }

var (
	_ repository.TickStorage     = (*ClickHouseTickStorage)(nil)
	_ repository.TickPublisher   = (*KafkaTickPublisher)(nil)
	_ repository.SignalPublisher = (*KafkaSignalPublisher)(nil)
)

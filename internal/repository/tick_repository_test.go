package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"SignalDesk/internal/domain/models"
	pkgkafka "SignalDesk/pkg/kafka"
)

type recordingProducer struct {
	topics []string
	keys   []string
	values []any
	err    error
}

func (p *recordingProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, string(key))
	p.values = append(p.values, value)
	return p.err
}

func (p *recordingProducer) PublishBatch(ctx context.Context, topic string, msgs []pkgkafka.Message) error {
	for _, m := range msgs {
		if err := p.Publish(ctx, topic, m.Key, m.Value); err != nil {
			return err
		}
	}
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestKafkaSignalPublisherKeysBySymbol(t *testing.T) {
	rp := &recordingProducer{}
	pub := &KafkaSignalPublisher{producer: rp, topic: "signals"}
	r := &models.ConfluenceResult{PrimarySignal: models.Signal{ID: "abc", Symbol: "BTCUSDT", Direction: models.Call}}
	if err := pub.PublishSignal(context.Background(), r); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(rp.keys) != 1 || rp.keys[0] != "BTCUSDT" || rp.topics[0] != "signals" {
		t.Fatalf("unexpected publish %+v", rp)
	}
	b, err := json.Marshal(rp.values[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded models.ConfluenceResult
	if err := json.Unmarshal(b, &decoded); err != nil || decoded.PrimarySignal.Direction != models.Call {
		t.Fatalf("payload must carry the direction text: %s", b)
	}

	if err := pub.PublishSignal(context.Background(), nil); err != nil || len(rp.keys) != 1 {
		t.Fatalf("nil result must be skipped")
	}
}

func TestKafkaSignalPublisherWrapsErrors(t *testing.T) {
	boom := errors.New("broker down")
	pub := &KafkaSignalPublisher{producer: &recordingProducer{err: boom}, topic: "signals"}
	err := pub.PublishSignal(context.Background(), &models.ConfluenceResult{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestKafkaTickPublisherBatch(t *testing.T) {
	rp := &recordingProducer{}
	pub := &KafkaTickPublisher{producer: rp, topic: "ticks"}
	ticks := []*models.Tick{{Symbol: "A", Price: 1}, {Symbol: "B", Price: 2}}
	if err := pub.PublishBatch(context.Background(), ticks); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(rp.keys) != 2 || rp.keys[1] != "B" {
		t.Fatalf("unexpected keys %v", rp.keys)
	}
	if err := pub.PublishBatch(context.Background(), nil); err != nil || len(rp.keys) != 2 {
		t.Fatalf("empty batch must be a no-op")
	}
}

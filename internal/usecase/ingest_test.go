package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	mid "SignalDesk/internal/middleware"
	"SignalDesk/internal/repository"
)

type memStorage struct {
	mu    sync.Mutex
	ticks []*models.Tick
	err   error
}

func (s *memStorage) Init(context.Context) error { return nil }
func (s *memStorage) Store(ctx context.Context, t *models.Tick) error {
	return s.StoreBatch(ctx, []*models.Tick{t})
}
func (s *memStorage) StoreBatch(_ context.Context, ticks []*models.Tick) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.ticks = append(s.ticks, ticks...)
	s.mu.Unlock()
	return nil
}
func (s *memStorage) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Tick, error) {
	return nil, nil
}
func (s *memStorage) Health(context.Context) error { return nil }
func (s *memStorage) Close() error                 { return nil }

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

type memTickPublisher struct {
	memStorage
}

func (p *memTickPublisher) Publish(ctx context.Context, t *models.Tick) error { return p.Store(ctx, t) }
func (p *memTickPublisher) PublishBatch(ctx context.Context, ticks []*models.Tick) error {
	return p.StoreBatch(ctx, ticks)
}

func TestKafkaTicksHandler(t *testing.T) {
	store := repository.NewMemoryCandleStore(0)
	storage := &memStorage{}
	h := NewKafkaTicksHandler("ticks", store, storage, nil)
	if h.Topic() != "ticks" {
		t.Fatalf("topic: %s", h.Topic())
	}

	ts := time.Date(2024, 10, 10, 12, 0, 5, 0, time.UTC)
	msgs := []string{
		`{"symbol":"btcusdt","t":` + itoa(ts.UnixMilli()) + `,"c":100,"v":1}`,
		`{"symbol":"BTCUSDT","t":` + itoa(ts.Unix()+30) + `,"c":102,"v":2}`,
		`{"symbol":"","t":1,"c":1,"v":1}`,
		`{"symbol":"BTCUSDT","t":` + itoa(ts.Unix()) + `,"c":0,"v":1}`,
	}
	for _, m := range msgs {
		if err := h.Handle(context.Background(), []byte(m)); err != nil {
			t.Fatalf("handle %s: %v", m, err)
		}
	}
	if err := h.Handle(context.Background(), []byte(`{not json`)); err == nil {
		t.Fatalf("expected decode error")
	}

	cs, _ := store.GetLatestNCandles(context.Background(), "BTCUSDT", 10, domrepo.TF1m)
	if len(cs) != 1 || cs[0].Open != 100 || cs[0].Close != 102 || cs[0].Volume != 3 {
		t.Fatalf("unexpected candles %+v", cs)
	}
	if storage.count() != 2 {
		t.Fatalf("expected 2 stored ticks, got %d", storage.count())
	}

	storage.err = errors.New("clickhouse down")
	if err := h.Handle(context.Background(), []byte(msgs[1])); err == nil {
		t.Fatalf("expected storage error to surface for retry")
	}
}

func TestTickProcessorRouting(t *testing.T) {
	tick := func() *models.Tick { return &models.Tick{Symbol: "AAPL", Timestamp: 1728561600, Price: 10, Volume: 1} }

	cases := []struct {
		backend   string
		published int
		stored    int
		wantErr   bool
	}{
		{BackendNone, 0, 0, false},
		{BackendKafka, 1, 0, false},
		{BackendClickHouse, 0, 1, false},
		{"s3", 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			store := repository.NewMemoryCandleStore(0)
			pub, storage := &memTickPublisher{}, &memStorage{}
			p := NewTickProcessor(store, pub, storage, nil, tc.backend)
			err := p.Process(context.Background(), tick())
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v", err)
			}
			if pub.count() != tc.published || storage.count() != tc.stored {
				t.Fatalf("published %d stored %d", pub.count(), storage.count())
			}
			if cs, _ := store.GetLatestNCandles(context.Background(), "AAPL", 1, domrepo.TF1m); len(cs) != 1 {
				t.Fatalf("tick not ingested")
			}
		})
	}

	p := NewTickProcessor(nil, nil, nil, nil, "")
	if p.Backend() != BackendNone {
		t.Fatalf("default backend: %s", p.Backend())
	}
	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil tick")
	}
}

type fakeStream struct {
	mu         sync.Mutex
	reads      int
	reconnects int
	connected  bool
	batches    [][]*models.Tick
}

func (s *fakeStream) Connect(context.Context) error   { s.connected = true; return nil }
func (s *fakeStream) Subscribe(context.Context) error { return nil }
func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}
func (s *fakeStream) Close() error      { s.connected = false; return nil }
func (s *fakeStream) IsConnected() bool { return s.connected }

// Read serves one batch per call, then reports a read error so the collector reconnects.
// Once batches run out it blocks until ctx ends.
func (s *fakeStream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 16)
	errs := make(chan error, 1)
	s.mu.Lock()
	i := s.reads
	s.reads++
	s.mu.Unlock()
	if i >= len(s.batches) {
		go func() {
			<-ctx.Done()
			close(ticks)
			close(errs)
		}()
		return ticks, errs
	}
	for _, t := range s.batches[i] {
		ticks <- t
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		errs <- errors.New("connection reset")
	}()
	return ticks, errs
}

func TestTickCollectorReconnects(t *testing.T) {
	base := time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC).Unix()
	stream := &fakeStream{batches: [][]*models.Tick{
		{{Symbol: "AAPL", Timestamp: base, Price: 10, Volume: 1}},
		{{Symbol: "AAPL", Timestamp: base + 61, Price: 11, Volume: 1}},
	}}
	store := repository.NewMemoryCandleStore(0)
	proc := NewTickProcessor(store, nil, nil, nil, BackendNone)
	pipe := mid.NewTickPipeline(proc, nil, mid.WithMinInterval(0))
	c := NewTickCollector(stream, proc, nil, pipe, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.IsConnected() {
		t.Fatalf("expected connected")
	}

	// each batch is followed by a delayed read error, so wait for both candles and both reconnects
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cs, _ := store.GetLatestNCandles(context.Background(), "AAPL", 5, domrepo.TF1m)
		stream.mu.Lock()
		reconnects := stream.reconnects
		stream.mu.Unlock()
		if len(cs) == 2 && reconnects >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("collector did not stop")
	}
	_ = c.Shutdown(context.Background())

	cs, _ := store.GetLatestNCandles(context.Background(), "AAPL", 5, domrepo.TF1m)
	if len(cs) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(cs))
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.reconnects < 2 {
		t.Fatalf("expected reconnects after each read error, got %d", stream.reconnects)
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

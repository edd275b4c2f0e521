package repository

import (
	"context"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
)

func TestIngestBuildsMinuteCandles(t *testing.T) {
	s := NewMemoryCandleStore(0)
	base := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC).Unix()
	s.Ingest(models.Tick{Symbol: "btc", Timestamp: base + 1, Price: 100, Volume: 1})
	s.Ingest(models.Tick{Symbol: "BTC", Timestamp: base + 20, Price: 105, Volume: 2})
	s.Ingest(models.Tick{Symbol: "BTC", Timestamp: (base + 40) * 1000, Price: 98, Volume: 1})
	s.Ingest(models.Tick{Symbol: "BTC", Timestamp: base + 61, Price: 101, Volume: 4})

	cs, err := s.GetLatestNCandles(context.Background(), "BTC", 10, domrepo.TF1m)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(cs) != 2 {
		t.Fatalf("want 2 candles, got %d", len(cs))
	}
	c := cs[0]
	if c.Open != 100 || c.High != 105 || c.Low != 98 || c.Close != 98 || c.Volume != 4 {
		t.Fatalf("unexpected first candle %+v", c)
	}
	if cs[1].Open != 101 || cs[1].Bucket.Sub(c.Bucket) != time.Minute {
		t.Fatalf("unexpected second candle %+v", cs[1])
	}
}

func TestIngestIgnoresInvalidTicks(t *testing.T) {
	s := NewMemoryCandleStore(0)
	s.Ingest(models.Tick{Symbol: "", Timestamp: 1, Price: 1})
	s.Ingest(models.Tick{Symbol: "X", Timestamp: 0, Price: 1})
	s.Ingest(models.Tick{Symbol: "X", Timestamp: 10, Price: 0})
	if len(s.Symbols()) != 0 {
		t.Fatalf("invalid ticks must be ignored")
	}
}

func TestFoldHigherTimeframe(t *testing.T) {
	s := NewMemoryCandleStore(0)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		p := 100 + float64(i)
		s.Put(models.Candle{Bucket: start.Add(time.Duration(i) * time.Minute), Symbol: "ETH", Open: p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 1})
	}
	cs, err := s.GetLatestNCandles(context.Background(), "eth", 10, domrepo.TF5m)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(cs) != 3 {
		t.Fatalf("want 3 five-minute candles, got %d", len(cs))
	}
	first := cs[0]
	if first.Open != 100 || first.High != 105 || first.Low != 99 || first.Close != 104.5 || first.Volume != 5 {
		t.Fatalf("unexpected fold %+v", first)
	}
	if last := cs[2]; last.Volume != 2 || !last.Bucket.Equal(start.Add(10*time.Minute)) {
		t.Fatalf("unexpected partial bucket %+v", last)
	}

	ranged, _ := s.GetCandles(context.Background(), "ETH", start.Add(5*time.Minute), start.Add(10*time.Minute), domrepo.TF5m)
	if len(ranged) != 2 {
		t.Fatalf("want 2 ranged candles, got %d", len(ranged))
	}
	if _, err := s.GetLatestNCandles(context.Background(), "ETH", 1, domrepo.Timeframe("2m")); err == nil {
		t.Fatalf("expected unsupported timeframe error")
	}
}

func TestRetentionTrimsOldest(t *testing.T) {
	s := NewMemoryCandleStore(3)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Put(models.Candle{Bucket: start.Add(time.Duration(i) * time.Minute), Symbol: "X", Close: float64(i)})
	}
	cs, _ := s.GetLatestNCandles(context.Background(), "X", 0, domrepo.TF1m)
	if len(cs) != 3 || cs[0].Close != 2 {
		t.Fatalf("unexpected retention %+v", cs)
	}
}

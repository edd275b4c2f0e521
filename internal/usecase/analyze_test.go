package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/repository"
	"SignalDesk/internal/service/cache"
	"SignalDesk/internal/services/timing"
)

var testNow = time.Date(2024, 10, 10, 12, 0, 20, 0, time.UTC)

type countingStore struct {
	domrepo.FeatureStore
	calls atomic.Int32
}

func (s *countingStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	s.calls.Add(1)
	return s.FeatureStore.GetLatestNCandles(ctx, symbol, n, tf)
}

type recordingPublisher struct {
	n    atomic.Int32
	last *models.ConfluenceResult
	err  error
}

func (p *recordingPublisher) PublishSignal(_ context.Context, r *models.ConfluenceResult) error {
	p.n.Add(1)
	p.last = r
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type stubSentiment struct {
	calls atomic.Int32
	score float64
	err   error
}

func (s *stubSentiment) Sentiment(context.Context, string) (*models.SentimentSnapshot, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &models.SentimentSnapshot{Score: s.score, Impact: "medium"}, nil
}

// uptrendStore holds 150 one-minute candles rising by 0.5 per bar for AAPL.
func uptrendStore() *repository.MemoryCandleStore {
	st := repository.NewMemoryCandleStore(0)
	start := testNow.Truncate(time.Minute).Add(-150 * time.Minute)
	for i := 0; i < 150; i++ {
		p := 100 + 0.5*float64(i)
		st.Put(models.Candle{
			Bucket: start.Add(time.Duration(i) * time.Minute),
			Symbol: "AAPL",
			Open:   p - 0.25,
			High:   p + 0.1,
			Low:    p - 0.3,
			Close:  p,
			Volume: 1000,
		})
	}
	return st
}

func newTestAnalyzer(store domrepo.FeatureStore, opts ...AnalyzerOption) *Analyzer {
	clock := timing.NewFixedClock(testNow)
	engine := NewSignalAnalyzer(store, nil, clock, 0)
	conf := NewConfluenceAggregator(engine, []domrepo.Timeframe{domrepo.TF1m}, nil)
	return NewAnalyzer(engine, conf, cache.NewResultCache(clock), opts...)
}

func TestAnalyzeIsMemoized(t *testing.T) {
	store := &countingStore{FeatureStore: uptrendStore()}
	pub := &recordingPublisher{}
	a := newTestAnalyzer(store, WithSignalPublisher(pub))

	first, err := a.Analyze(context.Background(), AnalyzeParams{Symbol: "aapl", Interval: "1"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	loads := store.calls.Load()
	second, err := a.Analyze(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: "1"})
	if err != nil {
		t.Fatalf("analyze again: %v", err)
	}
	if first != second {
		t.Fatalf("expected the cached result pointer")
	}
	if store.calls.Load() != loads {
		t.Fatalf("store read again on cache hit: %d -> %d", loads, store.calls.Load())
	}
	if pub.n.Load() != 1 || pub.last != first {
		t.Fatalf("expected one publication of the fresh result, got %d", pub.n.Load())
	}
}

func TestAnalyzeIntervalAliasesShareCache(t *testing.T) {
	store := &countingStore{FeatureStore: uptrendStore()}
	pub := &recordingPublisher{}
	a := newTestAnalyzer(store, WithSignalPublisher(pub))

	first, err := a.Analyze(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: "1m"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	loads := store.calls.Load()
	for _, in := range []string{"1", "1M", " 1 "} {
		res, err := a.Analyze(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: in})
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if res != first {
			t.Fatalf("%q: expected the cached result", in)
		}
	}
	if store.calls.Load() != loads || pub.n.Load() != 1 {
		t.Fatalf("aliases recomputed: loads %d -> %d, publications %d", loads, store.calls.Load(), pub.n.Load())
	}
	if first.PrimarySignal.Interval != "1" {
		t.Fatalf("want canonical interval label, got %q", first.PrimarySignal.Interval)
	}

	m1, err := a.AnalyzeMarket(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: "1m"})
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	m2, err := a.AnalyzeMarket(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: "1"})
	if err != nil {
		t.Fatalf("market again: %v", err)
	}
	if m1 != m2 {
		t.Fatalf("market aliases should share a cache entry")
	}
}

func TestAnalyzeUptrend(t *testing.T) {
	a := newTestAnalyzer(uptrendStore())
	res, err := a.Analyze(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: "1"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	sig := res.PrimarySignal
	if sig.Direction != models.Call || res.ConfluenceDirection != models.Call {
		t.Fatalf("expected CALL, got %s / %s", sig.Direction, res.ConfluenceDirection)
	}
	if sig.Confidence < 60 || sig.Confidence > 96 {
		t.Fatalf("adjusted confidence out of range: %d", sig.Confidence)
	}
	if sig.IsValid != (sig.Confidence >= 65) {
		t.Fatalf("is_valid inconsistent with confidence %d", sig.Confidence)
	}
	if res.OverallConfluence < 0 || res.OverallConfluence > 95 {
		t.Fatalf("overall out of range: %d", res.OverallConfluence)
	}
	// 40s left in the minute
	if sig.EntryDelaySeconds != 40 || res.CountdownSeconds != 40 {
		t.Fatalf("entry delay: got %d", sig.EntryDelaySeconds)
	}
	if sig.ID == "" || sig.EntryPrice != 174.5 {
		t.Fatalf("unexpected signal %+v", sig)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	a := newTestAnalyzer(uptrendStore())
	cases := []struct {
		name string
		p    AnalyzeParams
		want error
	}{
		{"no data", AnalyzeParams{Symbol: "MSFT", Interval: "1"}, models.ErrInsufficientMarketData},
		{"bad interval", AnalyzeParams{Symbol: "AAPL", Interval: "7"}, models.ErrUnsupportedInterval},
		{"blank symbol", AnalyzeParams{Symbol: "  ", Interval: "1"}, models.ErrInvalidSymbol},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Analyze(context.Background(), tc.p)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
			_, err = a.AnalyzeMarket(context.Background(), tc.p)
			if !errors.Is(err, tc.want) {
				t.Fatalf("market: want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	down := &stubSentiment{err: errors.New("sentiment service down")}
	a := newTestAnalyzer(uptrendStore(), WithSentimentProvider(down))
	if _, err := a.Analyze(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: "1"}); err != nil {
		t.Fatalf("sentiment failure must not fail analysis: %v", err)
	}

	up := &stubSentiment{score: 40}
	a = newTestAnalyzer(uptrendStore(), WithSentimentProvider(up))
	for i := 0; i < 2; i++ {
		if _, err := a.AnalyzeMarket(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: "1"}); err != nil {
			t.Fatalf("market: %v", err)
		}
	}
	if up.calls.Load() != 1 {
		t.Fatalf("sentiment should be cached, got %d calls", up.calls.Load())
	}

	explicit := -20.0
	if _, err := a.Analyze(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: "1", Sentiment: &explicit}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if up.calls.Load() != 1 {
		t.Fatalf("explicit sentiment must bypass the provider")
	}
}

func TestAnalyzePublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	a := newTestAnalyzer(uptrendStore(), WithSignalPublisher(pub))
	if _, err := a.Analyze(context.Background(), AnalyzeParams{Symbol: "AAPL", Interval: "1"}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if pub.n.Load() != 1 {
		t.Fatalf("expected one publish attempt")
	}
}

func TestStrategiesAreCached(t *testing.T) {
	a := newTestAnalyzer(uptrendStore())
	first, err := a.Strategies(context.Background())
	if err != nil || len(first) == 0 {
		t.Fatalf("strategies: %v (%d)", err, len(first))
	}
	second, _ := a.Strategies(context.Background())
	if &first[0] != &second[0] {
		t.Fatalf("expected cached catalog")
	}
}

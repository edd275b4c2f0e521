package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/repository"
	"SignalDesk/internal/services/timing"
)

func frame(tf domrepo.Timeframe, d models.Direction, conf int, strength float64) *TimeframeAnalysis {
	return &TimeframeAnalysis{
		Timeframe:  tf,
		Snapshot:   models.IndicatorSnapshot{TrendStrength: strength},
		Vote:       models.DirectionVote{Direction: d},
		Validation: models.ValidationOutcome{Confidence: conf},
	}
}

func TestAggregate(t *testing.T) {
	cases := []struct {
		name    string
		frames  []*TimeframeAnalysis
		dir     models.Direction
		overall int
	}{
		{"empty", nil, models.Neutral, 0},
		{"unanimous call", []*TimeframeAnalysis{
			frame(domrepo.TF5m, models.Call, 80, 60),
			frame(domrepo.TF1h, models.Call, 70, 60),
		}, models.Call, 95},
		{"balanced", []*TimeframeAnalysis{
			frame(domrepo.TF5m, models.Call, 50, 60), // 1.8 * 50
			frame(domrepo.TF1m, models.Put, 90, 60),  // 1.0 * 90
		}, models.Neutral, 0},
		{"slight lean stays neutral", []*TimeframeAnalysis{
			frame(domrepo.TF5m, models.Call, 50, 60),
			frame(domrepo.TF1m, models.Put, 80, 60),
		}, models.Neutral, 6},
		{"longer put wins", []*TimeframeAnalysis{
			frame(domrepo.TF5m, models.Call, 20, 60), // 36
			frame(domrepo.TF1h, models.Put, 90, 60),  // 126
		}, models.Put, 56},
		{"neutral votes ignored", []*TimeframeAnalysis{
			frame(domrepo.TF5m, models.Neutral, 90, 60),
		}, models.Neutral, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir, overall := Aggregate(domrepo.TF5m, tc.frames)
			if dir != tc.dir || overall != tc.overall {
				t.Fatalf("want %s/%d, got %s/%d", tc.dir, tc.overall, dir, overall)
			}
		})
	}
}

func TestReadjustBounds(t *testing.T) {
	low := frame(domrepo.TF5m, models.Call, 10, 10)
	out := Readjust(low, models.Neutral, 0)
	if out.Confidence != 60 || out.IsValid {
		t.Fatalf("low: %+v", out)
	}

	high := frame(domrepo.TF5m, models.Call, 100, 90)
	high.Regime = models.StrongUptrend
	out = Readjust(high, models.Call, 95)
	if out.Confidence != 96 || !out.IsValid || out.WarningLevel != models.WarningNone {
		t.Fatalf("high: %+v", out)
	}

	against := frame(domrepo.TF5m, models.Put, 80, 40)
	out = Readjust(against, models.Call, 60)
	// 80 - min(20, 15)
	if out.Confidence != 65 || !out.IsValid {
		t.Fatalf("against: %+v", out)
	}
	if n := len(out.Reasons); n == 0 || out.Reasons[n-1] != "confluence CALL (60%)" {
		t.Fatalf("missing confluence reason: %v", out.Reasons)
	}
}

// gatedStore serves candles from a memory store. Timeframes listed in missing return no
// candles, or their error when one is set. With barrier > 0 every read waits until that many
// reads are in flight.
type gatedStore struct {
	*repository.MemoryCandleStore
	missing map[domrepo.Timeframe]error
	barrier int

	mu      sync.Mutex
	arrived int
	all     chan struct{}
	seen    []domrepo.Timeframe
}

func newGatedStore(missing map[domrepo.Timeframe]error, barrier int) *gatedStore {
	st := repository.NewMemoryCandleStore(0)
	start := testNow.Truncate(time.Minute).Add(-600 * time.Minute)
	for i := 0; i < 600; i++ {
		p := 100 + 0.05*float64(i) + math.Sin(float64(i)/7)
		st.Put(models.Candle{
			Bucket: start.Add(time.Duration(i) * time.Minute),
			Symbol: "AAPL",
			Open:   p - 0.1,
			High:   p + 0.3,
			Low:    p - 0.3,
			Close:  p,
			Volume: 1000 + float64(i%5)*20,
		})
	}
	return &gatedStore{MemoryCandleStore: st, missing: missing, barrier: barrier, all: make(chan struct{})}
}

func (s *gatedStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	s.mu.Lock()
	s.seen = append(s.seen, tf)
	s.arrived++
	if s.arrived == s.barrier {
		close(s.all)
	}
	s.mu.Unlock()
	if s.barrier > 0 {
		select {
		case <-s.all:
		case <-time.After(2 * time.Second):
			return nil, errors.New("reads were not issued concurrently")
		}
	}
	if err, ok := s.missing[tf]; ok {
		return nil, err
	}
	return s.MemoryCandleStore.GetLatestNCandles(ctx, symbol, n, tf)
}

func newAggregator(store domrepo.FeatureStore) *ConfluenceAggregator {
	engine := NewSignalAnalyzer(store, nil, timing.NewFixedClock(testNow), 0)
	return NewConfluenceAggregator(engine, DefaultTimeframes, nil)
}

func frameSet(frames []models.TimeframeSignal) map[string]models.TimeframeSignal {
	out := make(map[string]models.TimeframeSignal, len(frames))
	for _, f := range frames {
		out[f.Timeframe] = f
	}
	return out
}

func TestTimeframesAppendsSelected(t *testing.T) {
	c := newAggregator(newGatedStore(nil, 0))
	if got := c.Timeframes(domrepo.TF5m); len(got) != 4 {
		t.Fatalf("5m is already in the set: %v", got)
	}
	got := c.Timeframes(domrepo.TF4h)
	if len(got) != 5 || got[4] != domrepo.TF4h {
		t.Fatalf("want 4h appended, got %v", got)
	}
	if len(DefaultTimeframes) != 4 {
		t.Fatalf("default set mutated: %v", DefaultTimeframes)
	}
}

func TestRunFansOutAndWeighsTimeframes(t *testing.T) {
	store := newGatedStore(map[domrepo.Timeframe]error{domrepo.TF1h: nil}, len(DefaultTimeframes))
	res, primary, err := newAggregator(store).Run(context.Background(), "AAPL", "5", domrepo.TF5m, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if primary == nil || primary.Timeframe != domrepo.TF5m {
		t.Fatalf("primary should be the 5m analysis: %+v", primary)
	}
	if len(store.seen) != len(DefaultTimeframes) {
		t.Fatalf("expected one read per timeframe, got %v", store.seen)
	}

	frames := frameSet(res.Timeframes)
	if _, ok := frames["1h"]; ok {
		t.Fatalf("1h has no candles and must be left out: %+v", res.Timeframes)
	}
	for _, tf := range []string{"1m", "5m", "15m"} {
		if _, ok := frames[tf]; !ok {
			t.Fatalf("missing %s frame: %+v", tf, res.Timeframes)
		}
	}

	// selected 1.8, longer 1.4, shorter 1.0, each scaled by strength/60
	weights := map[string]float64{"1m": 1.0, "5m": 1.8, "15m": 1.4}
	var call, put float64
	for _, f := range res.Timeframes {
		w := weights[f.Timeframe]
		w *= f.Strength / 60
		v := w * float64(f.Confidence)
		switch f.Direction {
		case models.Call:
			call += v
		case models.Put:
			put += v
		}
	}
	want := 0
	if total := call + put; total > 0 {
		want = int(math.Min(math.Round(math.Abs(call-put)/total*100), 95))
	}
	if res.OverallConfluence != want {
		t.Fatalf("overall: want %d, got %d (frames %+v)", want, res.OverallConfluence, res.Timeframes)
	}
	if res.OverallConfluence < 0 || res.OverallConfluence > 95 {
		t.Fatalf("overall out of range: %d", res.OverallConfluence)
	}
	if c := res.PrimarySignal.Confidence; c < 60 || c > 96 {
		t.Fatalf("adjusted confidence out of range: %d", c)
	}
	if res.PrimarySignal.IsValid != (res.PrimarySignal.Confidence >= 65) {
		t.Fatalf("validity does not follow confidence: %+v", res.PrimarySignal)
	}
}

func TestRunAddsSelectedInterval(t *testing.T) {
	store := newGatedStore(map[domrepo.Timeframe]error{domrepo.TF1h: nil}, 0)
	res, primary, err := newAggregator(store).Run(context.Background(), "AAPL", "240", domrepo.TF4h, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if primary.Timeframe != domrepo.TF4h || res.PrimarySignal.Interval != "240" {
		t.Fatalf("primary: %s / %s", primary.Timeframe, res.PrimarySignal.Interval)
	}
	frames := frameSet(res.Timeframes)
	if _, ok := frames["4h"]; !ok {
		t.Fatalf("selected 4h frame missing: %+v", res.Timeframes)
	}
	if _, ok := frames["1h"]; ok {
		t.Fatalf("1h has no candles and must be left out: %+v", res.Timeframes)
	}
	if len(store.seen) != 5 {
		t.Fatalf("expected five reads, got %v", store.seen)
	}
}

func TestRunSelectedTimeframeFailureIsFatal(t *testing.T) {
	store := newGatedStore(map[domrepo.Timeframe]error{domrepo.TF15m: nil}, 0)
	_, _, err := newAggregator(store).Run(context.Background(), "AAPL", "15", domrepo.TF15m, nil)
	if !errors.Is(err, models.ErrInsufficientMarketData) {
		t.Fatalf("want insufficient data, got %v", err)
	}

	boom := errors.New("store down")
	store = newGatedStore(map[domrepo.Timeframe]error{domrepo.TF5m: boom}, 0)
	if _, _, err := newAggregator(store).Run(context.Background(), "AAPL", "5", domrepo.TF5m, nil); !errors.Is(err, boom) {
		t.Fatalf("want store error, got %v", err)
	}
}

func TestRunSkipsFailingOtherTimeframe(t *testing.T) {
	store := newGatedStore(map[domrepo.Timeframe]error{domrepo.TF15m: errors.New("store down")}, 0)
	res, _, err := newAggregator(store).Run(context.Background(), "AAPL", "1", domrepo.TF1m, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	frames := frameSet(res.Timeframes)
	if _, ok := frames["15m"]; ok || len(frames) != 3 {
		t.Fatalf("want 1m, 5m, 1h only, got %+v", res.Timeframes)
	}
}

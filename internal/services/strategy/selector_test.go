package strategy

import (
	"testing"

	"SignalDesk/internal/domain/models"
)

func TestEveryRegimeHasKnownStrategies(t *testing.T) {
	for _, r := range models.Regimes {
		keys := compatible[r]
		if len(keys) == 0 {
			t.Fatalf("regime %s has no strategies", r)
		}
		for _, k := range keys {
			if _, ok := Lookup(k); !ok {
				t.Fatalf("regime %s references unknown strategy %q", r, k)
			}
		}
	}
}

func TestSelectStrongTrend(t *testing.T) {
	snap := models.IndicatorSnapshot{Price: 170, RSI: 100, TrendStrength: 90, Volatility: 0.003}
	got := NewSelector().Select(models.StrongUptrend, snap)
	if got.Key != TrendFollowing {
		t.Fatalf("want %s, got %s", TrendFollowing, got.Key)
	}
}

func TestRankTiesKeepCatalogOrder(t *testing.T) {
	snap := models.IndicatorSnapshot{
		Price:     100,
		RSI:       50,
		Bollinger: models.Bollinger{PercentB: 0.5},
		Levels:    models.Levels{Support: 50, Resistance: 150},
	}
	ranked := NewSelector().Rank(models.Sideways, snap)
	want := []string{SupportResistance, RSIDivergence, BollingerReversion}
	if len(ranked) != len(want) {
		t.Fatalf("want %d candidates, got %d", len(want), len(ranked))
	}
	for i, k := range want {
		if ranked[i].Strategy.Key != k || ranked[i].Score != baseScore {
			t.Fatalf("rank %d: want %s@%v, got %s@%v", i, k, baseScore, ranked[i].Strategy.Key, ranked[i].Score)
		}
	}
}

func TestRankPrefersStretchedRSI(t *testing.T) {
	snap := models.IndicatorSnapshot{
		Price:     100,
		RSI:       85,
		Bollinger: models.Bollinger{PercentB: 0.6},
		Levels:    models.Levels{Support: 50, Resistance: 150},
	}
	if got := NewSelector().Select(models.Sideways, snap); got.Key != RSIDivergence {
		t.Fatalf("want %s, got %s", RSIDivergence, got.Key)
	}
}

func TestMACDCrossoverScoresSignFlip(t *testing.T) {
	snap := models.IndicatorSnapshot{
		Price:  100,
		MACD:   models.MACD{Histogram: 0.2, PreviousHistogram: -0.1},
		Levels: models.Levels{Support: 50, Resistance: 150},
	}
	if got := NewSelector().Select(models.Uptrend, snap); got.Key != MACDCrossover {
		t.Fatalf("want %s, got %s", MACDCrossover, got.Key)
	}
}

// neutralSnapshot gives every sideways candidate the base score, so ranking falls back to
// catalog order.
func neutralSnapshot() models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Price:     100,
		RSI:       50,
		Bollinger: models.Bollinger{PercentB: 0.5},
		Levels:    models.Levels{Support: 50, Resistance: 150},
	}
}

func assertSidewaysCandidates(t *testing.T, ranked []models.StrategyScore) {
	t.Helper()
	got := make(map[string]bool, len(ranked))
	for _, r := range ranked {
		got[r.Strategy.Key] = true
	}
	for _, k := range compatible[models.Sideways] {
		if !got[k] {
			t.Fatalf("missing sideways candidate %s in %+v", k, ranked)
		}
	}
	if len(got) != len(compatible[models.Sideways]) {
		t.Fatalf("unexpected candidates %+v", ranked)
	}
}

func TestUnknownRegimeFallsBackToSideways(t *testing.T) {
	s := NewSelector()
	ranked := s.Rank(models.Regime(42), neutralSnapshot())
	assertSidewaysCandidates(t, ranked)
	if ranked[0].Strategy.Key != SupportResistance {
		t.Fatalf("want %s first, got %s", SupportResistance, ranked[0].Strategy.Key)
	}

	// stretched readings still pick among the sideways strategies only
	assertSidewaysCandidates(t, s.Rank(models.Regime(42), models.IndicatorSnapshot{Price: 100}))
}

func TestUnknownKeysFailClosed(t *testing.T) {
	s := &Selector{
		catalog: catalog,
		compatible: map[models.Regime][]string{
			models.Uptrend:  {"does_not_exist"},
			models.Sideways: compatible[models.Sideways],
		},
	}
	assertSidewaysCandidates(t, s.Rank(models.Uptrend, models.IndicatorSnapshot{Price: 100}))
	if got := s.Select(models.Uptrend, neutralSnapshot()); got.Key != SupportResistance {
		t.Fatalf("want sideways fallback, got %s", got.Key)
	}
}

func TestCatalogIsCopied(t *testing.T) {
	c := Catalog()
	c[0].Name = "mutated"
	if d, _ := Lookup(c[0].Key); d.Name == "mutated" {
		t.Fatalf("catalog mutated through copy")
	}
}

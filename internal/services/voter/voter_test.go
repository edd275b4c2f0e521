package voter

import (
	"math"
	"testing"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/services/indicators"
)

func series(n int, start, step float64) models.Series {
	s := models.Series{Prices: make([]float64, n), Volumes: make([]float64, n)}
	for i := 0; i < n; i++ {
		s.Prices[i] = start + step*float64(i)
		s.Volumes[i] = 1000
	}
	return s
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestUptrendVotesCall(t *testing.T) {
	s := series(150, 100, 0.5)
	snap := indicators.Compute(s)
	v := Vote(Input{Regime: indicators.ClassifyRegime(s.Prices, s.Volumes), Snapshot: snap, Series: s})
	if v.Direction != models.Call {
		t.Fatalf("want CALL, got %s (bull %v bear %v)", v.Direction, v.Bullish, v.Bearish)
	}
	if !approx(v.Bullish, 4.5) || !approx(v.Bearish, 2.3) {
		t.Fatalf("tally: want 4.5/2.3, got %v/%v (%v)", v.Bullish, v.Bearish, v.Factors)
	}
}

func TestFlatTieResolvesToPut(t *testing.T) {
	s := series(100, 100, 0)
	v := Vote(Input{Regime: models.Sideways, Snapshot: indicators.Compute(s), Series: s})
	if v.Bullish != 0 || v.Bearish != 0 {
		t.Fatalf("flat series must not vote, got %v/%v", v.Bullish, v.Bearish)
	}
	if v.Direction != models.Put {
		t.Fatalf("tie must resolve to PUT, got %s", v.Direction)
	}
}

func TestRSIBands(t *testing.T) {
	cases := []struct {
		rsi        float64
		bull, bear float64
	}{
		{25, 1.5, 0},
		{75, 0, 1.5},
		{60, 0.5, 0},
		{40, 0, 0.5},
		{50, 0, 0},
	}
	for _, c := range cases {
		snap := models.IndicatorSnapshot{RSI: c.rsi, Bollinger: models.Bollinger{PercentB: 0.5}}
		v := Vote(Input{Regime: models.Sideways, Snapshot: snap})
		if !approx(v.Bullish, c.bull) || !approx(v.Bearish, c.bear) {
			t.Errorf("rsi %v: want %v/%v, got %v/%v", c.rsi, c.bull, c.bear, v.Bullish, v.Bearish)
		}
	}
}

func TestMACDWeights(t *testing.T) {
	base := models.IndicatorSnapshot{RSI: 50, Bollinger: models.Bollinger{PercentB: 0.5}}
	base.MACD = models.MACD{Histogram: 0.3, PreviousHistogram: 0.1}
	if v := Vote(Input{Regime: models.Sideways, Snapshot: base}); !approx(v.Bullish, 1.5) {
		t.Fatalf("accelerating: want 1.5, got %v", v.Bullish)
	}
	base.MACD = models.MACD{Histogram: 0.1, PreviousHistogram: 0.3}
	if v := Vote(Input{Regime: models.Sideways, Snapshot: base}); !approx(v.Bullish, 0.7) {
		t.Fatalf("decelerating: want 0.7, got %v", v.Bullish)
	}
	base.MACD = models.MACD{Histogram: -0.3, PreviousHistogram: -0.1}
	if v := Vote(Input{Regime: models.Sideways, Snapshot: base}); !approx(v.Bearish, 1.5) {
		t.Fatalf("accelerating down: want 1.5, got %v", v.Bearish)
	}
}

func TestSentiment(t *testing.T) {
	snap := models.IndicatorSnapshot{RSI: 50, Bollinger: models.Bollinger{PercentB: 0.5}}
	strong, mild := 80.0, -20.0
	if v := Vote(Input{Regime: models.Sideways, Snapshot: snap, Sentiment: &strong}); !approx(v.Bullish, 1) || v.Direction != models.Call {
		t.Fatalf("strong sentiment: %+v", v)
	}
	if v := Vote(Input{Regime: models.Sideways, Snapshot: snap, Sentiment: &mild}); !approx(v.Bearish, 0.4) {
		t.Fatalf("mild sentiment: want 0.4, got %v", v.Bearish)
	}
}

func TestRegimeAndTrendStrength(t *testing.T) {
	snap := models.IndicatorSnapshot{RSI: 50, TrendStrength: 80, Bollinger: models.Bollinger{PercentB: 0.5}}
	v := Vote(Input{Regime: models.StrongDowntrend, Snapshot: snap})
	// regime 2.0 + mid band with trend 1.2 + strong trend 1.5
	if !approx(v.Bearish, 4.7) || v.Bullish != 0 || v.Direction != models.Put {
		t.Fatalf("unexpected vote %+v", v)
	}
	v = Vote(Input{Regime: models.Uptrend, Snapshot: snap})
	if !approx(v.Bullish, 3.7) {
		t.Fatalf("uptrend: want 3.7, got %v", v.Bullish)
	}
}

func TestVolumeConfirmation(t *testing.T) {
	s := models.Series{
		Prices:  []float64{100, 100, 100, 100, 100, 100.5},
		Volumes: []float64{10, 10, 10, 10, 10, 30},
	}
	snap := models.IndicatorSnapshot{RSI: 50, Bollinger: models.Bollinger{PercentB: 0.5}}
	v := Vote(Input{Regime: models.Sideways, Snapshot: snap, Series: s})
	if !approx(v.Bullish, 0.5) {
		t.Fatalf("want 0.5 volume vote, got %v (%v)", v.Bullish, v.Factors)
	}
}

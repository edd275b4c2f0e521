package voter

import (
	"fmt"
	"math"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/services/indicators"
)

const (
	momentumLookback = 5
	volumePeriod     = 5
	sentimentCutoff  = 30.0
)

// Input is everything the voter looks at. Sentiment is optional.
type Input struct {
	Regime    models.Regime
	Snapshot  models.IndicatorSnapshot
	Series    models.Series
	Sentiment *float64
}

type tally struct {
	bull, bear float64
	factors    []string
}

func (t *tally) add(d models.Direction, w float64, why string) {
	if w == 0 {
		return
	}
	switch d {
	case models.Call:
		t.bull += w
	case models.Put:
		t.bear += w
	case models.Neutral:
		return
	}
	t.factors = append(t.factors, fmt.Sprintf("%s %s %+.2f", why, d, w))
}

// Vote tallies weighted bullish and bearish evidence. CALL requires bullish > bearish,
// so an exact tie resolves to PUT.
func Vote(in Input) models.DirectionVote {
	var t tally
	snap := in.Snapshot
	bias := in.Regime.Bias()

	switch in.Regime {
	case models.StrongUptrend, models.StrongDowntrend:
		t.add(bias, 2.0, "regime "+in.Regime.String())
	case models.Uptrend, models.Downtrend:
		t.add(bias, 1.0, "regime "+in.Regime.String())
	case models.Sideways, models.Volatile:
	}

	switch rsi := snap.RSI; {
	case rsi < 30:
		t.add(models.Call, 1.5, "rsi oversold")
	case rsi > 70:
		t.add(models.Put, 1.5, "rsi overbought")
	case rsi >= 55:
		t.add(models.Call, 0.5, "rsi bullish momentum")
	case rsi <= 45:
		t.add(models.Put, 0.5, "rsi bearish momentum")
	}

	switch h, prev := snap.MACD.Histogram, snap.MACD.PreviousHistogram; {
	case h > 0 && h > prev:
		t.add(models.Call, 1.5, "macd accelerating")
	case h > 0:
		t.add(models.Call, 0.7, "macd positive")
	case h < 0 && h < prev:
		t.add(models.Put, 1.5, "macd accelerating")
	case h < 0:
		t.add(models.Put, 0.7, "macd negative")
	}

	switch pb := snap.Bollinger.PercentB; {
	case pb > 0.8:
		t.add(models.Put, 0.8, "near upper band")
	case pb < 0.2:
		t.add(models.Call, 0.8, "near lower band")
	case bias != models.Neutral:
		t.add(bias, 1.2, "mid band with trend")
	case pb > 0.5:
		t.add(models.Call, 1.2, "mid band upper half")
	case pb < 0.5:
		t.add(models.Put, 1.2, "mid band lower half")
	}

	if snap.TrendStrength > 70 {
		t.add(bias, 1.5, "strong trend")
	}

	switch ch := indicators.Change(in.Series.Prices, momentumLookback); {
	case ch > 0.01:
		t.add(models.Call, 1.0, "recent rally")
	case ch < -0.01:
		t.add(models.Put, 1.0, "recent drop")
	}

	if ratio, ok := indicators.VolumeRatio(in.Series.Volumes, volumePeriod); ok && ratio > 1 {
		switch last := indicators.Change(in.Series.Prices, 1); {
		case last > 0:
			t.add(models.Call, 0.5, "volume confirms")
		case last < 0:
			t.add(models.Put, 0.5, "volume confirms")
		}
	}

	if in.Sentiment != nil {
		s := *in.Sentiment
		switch {
		case s > sentimentCutoff:
			t.add(models.Call, 1.0, "sentiment")
		case s < -sentimentCutoff:
			t.add(models.Put, 1.0, "sentiment")
		case s > 0:
			t.add(models.Call, s/50, "sentiment")
		case s < 0:
			t.add(models.Put, math.Abs(s)/50, "sentiment")
		}
	}

	dir := models.Put
	if t.bull > t.bear {
		dir = models.Call
	}
	return models.DirectionVote{Direction: dir, Bullish: t.bull, Bearish: t.bear, Factors: t.factors}
}

package validator

import (
	"fmt"
	"math"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/services/indicators"
)

const (
	baseConfidence   = 70
	validThreshold   = 65
	divergenceWindow = 10
	levelProximity   = 0.005
	volumePeriod     = 5
	staleWindow      = 10
	staleMove        = 0.03
)

// Input is the proposed signal plus the readings it was derived from.
type Input struct {
	Direction models.Direction
	Regime    models.Regime
	Snapshot  models.IndicatorSnapshot
	Series    models.Series
}

type scorer struct {
	confidence int
	reasons    []string
}

func (s *scorer) adjust(delta int, format string, args ...any) {
	s.confidence += delta
	s.reasons = append(s.reasons, fmt.Sprintf("%+d ", delta)+fmt.Sprintf(format, args...))
}

// Validate runs the ordered confidence checks. It is pure: identical input gives identical output.
func Validate(in Input) models.ValidationOutcome {
	s := &scorer{confidence: baseConfidence}
	snap := in.Snapshot
	prices := in.Series.Prices

	// 1. divergence
	if divergence(prices, in.Direction) {
		s.adjust(10, "RSI divergence supports %s", in.Direction)
	}

	// 2. regime alignment
	switch aligned := regimeAlignment(in.Regime, in.Direction); {
	case aligned > 0:
		s.adjust(12, "regime %s aligned with %s", in.Regime, in.Direction)
	case aligned < 0:
		s.adjust(-15, "regime %s against %s", in.Regime, in.Direction)
	}

	// 3. trend strength
	switch ts := snap.TrendStrength; {
	case ts > 75:
		s.adjust(8, "strong trend (%.0f)", ts)
	case ts < 40:
		s.adjust(-10, "weak trend (%.0f)", ts)
	}

	// 4. level proximity
	if NearLevel(snap, in.Direction) {
		if in.Direction == models.Call {
			s.adjust(15, "price near support %.2f", snap.Levels.Support)
		} else {
			s.adjust(15, "price near resistance %.2f", snap.Levels.Resistance)
		}
	}

	// 5. MACD confirmation
	if macdConfirms(snap.MACD, in.Direction) {
		s.adjust(12, "MACD momentum accelerating in signal direction")
	}

	// 6. volume trend
	if ratio, ok := indicators.VolumeRatio(in.Series.Volumes, volumePeriod); ok {
		switch {
		case ratio > 1.3:
			s.adjust(10, "volume rising (x%.2f)", ratio)
		case ratio < 0.7:
			s.adjust(-8, "volume fading (x%.2f)", ratio)
		}
	}

	// 7. volatility filter
	switch v := snap.Volatility; {
	case v > indicators.VolatilityHigh:
		s.adjust(-int(math.Min(math.Round(v*500), 25)), "high volatility (%.4f)", v)
	case v < indicators.VolatilityLow:
		s.adjust(5, "calm market (%.4f)", v)
	}

	// 8. candle pattern
	if name, ok := candlePattern(prices, in.Direction); ok {
		s.adjust(15, "%s pattern", name)
	}

	// 9. stale entry
	if move := indicators.Change(prices, staleWindow); len(prices) > staleWindow && in.Direction.Sign()*move > staleMove {
		s.adjust(-10, "move already extended (%.1f%%)", move*100)
	}

	conf := s.confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 100 {
		conf = 100
	}
	return models.ValidationOutcome{
		IsValid:      conf >= validThreshold,
		Confidence:   conf,
		Reasons:      s.reasons,
		WarningLevel: WarningFor(conf),
	}
}

// WarningFor grades a confidence value.
func WarningFor(confidence int) models.WarningLevel {
	switch {
	case confidence < 60:
		return models.WarningHigh
	case confidence < 70:
		return models.WarningMedium
	case confidence < 80:
		return models.WarningLow
	default:
		return models.WarningNone
	}
}

// regimeAlignment is +1 aligned, -1 against, 0 neutral. Sideways counts as aligned with either side.
func regimeAlignment(r models.Regime, d models.Direction) int {
	switch r {
	case models.Sideways:
		return 1
	case models.Volatile:
		return 0
	case models.StrongUptrend, models.Uptrend, models.Downtrend, models.StrongDowntrend:
		if r.Bias() == d {
			return 1
		}
		return -1
	}
	return 0
}

// NearLevel reports whether price sits within 0.5% of support (CALL) or resistance (PUT).
func NearLevel(snap models.IndicatorSnapshot, d models.Direction) bool {
	if snap.Price == 0 {
		return false
	}
	level := snap.Levels.Resistance
	if d == models.Call {
		level = snap.Levels.Support
	}
	return math.Abs(snap.Price-level)/snap.Price <= levelProximity
}

func macdConfirms(m models.MACD, d models.Direction) bool {
	switch d {
	case models.Call:
		return m.Histogram > 0 && m.Histogram > m.PreviousHistogram
	case models.Put:
		return m.Histogram < 0 && m.Histogram < m.PreviousHistogram
	case models.Neutral:
	}
	return false
}

// divergence: CALL when price prints a new low that RSI does not confirm, PUT on the mirror.
func divergence(prices []float64, d models.Direction) bool {
	n := len(prices)
	if n < divergenceWindow+2 {
		return false
	}
	last := prices[n-1]
	window := prices[n-1-divergenceWindow : n-1]
	idx := n - 1 - divergenceWindow
	for i, p := range window {
		j := n - 1 - divergenceWindow + i
		if (d == models.Call && p < prices[idx]) || (d == models.Put && p > prices[idx]) {
			idx = j
		}
	}
	prior := prices[idx]
	rsiNow := indicators.RSI(prices, indicators.RSIPeriod)
	rsiThen := indicators.RSI(prices[:idx+1], indicators.RSIPeriod)
	switch d {
	case models.Call:
		return last < prior && rsiNow > rsiThen
	case models.Put:
		return last > prior && rsiNow < rsiThen
	case models.Neutral:
	}
	return false
}

// candlePattern inspects the last three closes (c2 oldest, c0 latest).
func candlePattern(prices []float64, d models.Direction) (string, bool) {
	n := len(prices)
	if n < 3 {
		return "", false
	}
	c2, c1, c0 := prices[n-3], prices[n-2], prices[n-1]
	switch d {
	case models.Call:
		if c1 < c2 && c0 > c2 {
			return "bullish engulfing", true
		}
		if c1 < c2 && c0 > c1 && c0-c1 > 0.5*(c2-c1) {
			return "hammer", true
		}
	case models.Put:
		if c1 > c2 && c0 < c2 {
			return "bearish engulfing", true
		}
		if c1 > c2 && c0 < c1 && c1-c0 > 0.5*(c1-c2) {
			return "shooting star", true
		}
	case models.Neutral:
	}
	return "", false
}

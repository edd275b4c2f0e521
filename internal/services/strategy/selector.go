package strategy

import (
	"math"
	"sort"

	"SignalDesk/internal/domain/models"
)

const baseScore = 50.0

// Selector ranks compatible strategies for the current readings.
type Selector struct {
	catalog    []models.StrategyDefinition
	compatible map[models.Regime][]string
}

// NewSelector returns a selector over the built-in catalog.
func NewSelector() *Selector {
	return &Selector{catalog: catalog, compatible: compatible}
}

// Select returns the best-fit strategy. It is a label only and never drives direction.
func (s *Selector) Select(regime models.Regime, snap models.IndicatorSnapshot) models.StrategyDefinition {
	ranked := s.Rank(regime, snap)
	if len(ranked) == 0 {
		return s.catalog[0]
	}
	return ranked[0].Strategy
}

// Rank scores every compatible strategy, highest first; ties keep catalog order.
func (s *Selector) Rank(regime models.Regime, snap models.IndicatorSnapshot) []models.StrategyScore {
	defs := s.candidates(regime)
	if len(defs) == 0 {
		defs = s.candidates(models.Sideways)
	}
	out := make([]models.StrategyScore, 0, len(defs))
	for _, d := range defs {
		out = append(out, models.StrategyScore{Strategy: d, Score: baseScore + fitness(d.Key, snap)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// candidates resolves the regime's keys against the catalog, dropping unknown keys,
// and returns them in catalog order.
func (s *Selector) candidates(regime models.Regime) []models.StrategyDefinition {
	keys, ok := s.compatible[regime]
	if !ok {
		return nil
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out []models.StrategyDefinition
	for _, d := range s.catalog {
		if want[d.Key] {
			out = append(out, d)
		}
	}
	return out
}

func fitness(key string, snap models.IndicatorSnapshot) float64 {
	m := snap.MACD
	switch key {
	case TrendFollowing:
		return snap.TrendStrength * 0.3
	case IchimokuCloud:
		v := snap.TrendStrength * 0.2
		if m.Histogram != 0 {
			v += 5
		}
		return v
	case MomentumBreakout:
		if accelerating(m) {
			return 15
		}
		return 0
	case MACDCrossover:
		if m.Histogram != 0 && m.PreviousHistogram != 0 && (m.Histogram > 0) != (m.PreviousHistogram > 0) {
			return 20
		}
		return 5
	case SupportResistance:
		return math.Max(0, 20-levelDistance(snap)*1000)
	case RSIDivergence:
		return math.Abs(snap.RSI-50) * 0.6
	case BollingerReversion:
		return math.Abs(snap.Bollinger.PercentB-0.5) * 30
	case BollingerBreakout:
		return math.Max(0, 20-bandDistance(snap)*4)
	case VolatilityBreakout:
		return math.Min(snap.Volatility*1000, 20)
	}
	return 0
}

func accelerating(m models.MACD) bool {
	return (m.Histogram > 0 && m.Histogram > m.PreviousHistogram) ||
		(m.Histogram < 0 && m.Histogram < m.PreviousHistogram)
}

// levelDistance is the relative distance from price to the nearest support/resistance level.
func levelDistance(snap models.IndicatorSnapshot) float64 {
	if snap.Price == 0 {
		return math.Inf(1)
	}
	d := math.Min(math.Abs(snap.Price-snap.Levels.Support), math.Abs(snap.Price-snap.Levels.Resistance))
	return d / snap.Price
}

// bandDistance is the distance to the nearest band in units of volatility.
func bandDistance(snap models.IndicatorSnapshot) float64 {
	if snap.Price == 0 {
		return math.Inf(1)
	}
	b := snap.Bollinger
	d := math.Min(math.Abs(snap.Price-b.Upper), math.Abs(snap.Price-b.Lower)) / snap.Price
	if d == 0 {
		return 0
	}
	if snap.Volatility <= 0 {
		return math.Inf(1)
	}
	return d / snap.Volatility
}

package indicators

import (
	"math"

	"SignalDesk/internal/domain/models"
)

const (
	strongTrendThreshold = 70.0
	trendThreshold       = 40.0
	minTrendMove         = 0.002
)

// ClassifyRegime maps price/volume behaviour onto one of the six regimes. It never fails;
// ambiguous or too-short input is Sideways.
func ClassifyRegime(prices, volumes []float64) models.Regime {
	if len(prices) < 3 {
		return models.Sideways
	}
	return classify(TrendStrength(prices, volumes), Volatility(prices), Change(prices, TrendWindow))
}

func classify(strength, volatility, net float64) models.Regime {
	switch {
	case volatility > VolatilityHigh:
		return models.Volatile
	case strength >= strongTrendThreshold && net > 0:
		return models.StrongUptrend
	case strength >= strongTrendThreshold && net < 0:
		return models.StrongDowntrend
	case strength >= trendThreshold && math.Abs(net) > minTrendMove && net > 0:
		return models.Uptrend
	case strength >= trendThreshold && math.Abs(net) > minTrendMove && net < 0:
		return models.Downtrend
	default:
		return models.Sideways
	}
}

package strategy

import "SignalDesk/internal/domain/models"

// Strategy keys in catalog declaration order.
const (
	TrendFollowing     = "trend_following"
	IchimokuCloud      = "ichimoku_cloud"
	MomentumBreakout   = "momentum_breakout"
	MACDCrossover      = "macd_crossover"
	SupportResistance  = "support_resistance"
	RSIDivergence      = "rsi_divergence"
	BollingerReversion = "bollinger_reversion"
	BollingerBreakout  = "bollinger_breakout"
	VolatilityBreakout = "volatility_breakout"
)

var catalog = []models.StrategyDefinition{
	{
		Key:           TrendFollowing,
		Name:          "Trend Following",
		Description:   "Rides an established trend while momentum and volume agree.",
		MinConfidence: 70, MaxConfidence: 92,
		Indicators: []string{"trend_strength", "macd", "volume"},
		Regimes:    []models.Regime{models.StrongUptrend, models.Uptrend, models.Downtrend, models.StrongDowntrend},
		Timeframes: []string{"5m", "15m", "1h"},
	},
	{
		Key:           IchimokuCloud,
		Name:          "Ichimoku Cloud",
		Description:   "Follows price holding above or below its equilibrium in a strong trend.",
		MinConfidence: 72, MaxConfidence: 90,
		Indicators: []string{"trend_strength", "macd"},
		Regimes:    []models.Regime{models.StrongUptrend, models.StrongDowntrend},
		Timeframes: []string{"15m", "1h", "4h"},
	},
	{
		Key:           MomentumBreakout,
		Name:          "Momentum Breakout",
		Description:   "Enters when an accelerating MACD histogram confirms a strong move.",
		MinConfidence: 68, MaxConfidence: 90,
		Indicators: []string{"macd", "rsi", "volume"},
		Regimes:    []models.Regime{models.StrongUptrend, models.StrongDowntrend},
		Timeframes: []string{"1m", "5m", "15m"},
	},
	{
		Key:           MACDCrossover,
		Name:          "MACD Crossover",
		Description:   "Trades the histogram changing sign inside a moderate trend.",
		MinConfidence: 65, MaxConfidence: 85,
		Indicators: []string{"macd"},
		Regimes:    []models.Regime{models.Uptrend, models.Downtrend},
		Timeframes: []string{"5m", "15m", "1h"},
	},
	{
		Key:           SupportResistance,
		Name:          "Support & Resistance",
		Description:   "Fades price at the edges of its recent range.",
		MinConfidence: 65, MaxConfidence: 88,
		Indicators: []string{"support_resistance", "rsi"},
		Regimes:    []models.Regime{models.Uptrend, models.Downtrend, models.Sideways},
		Timeframes: []string{"1m", "5m", "15m"},
	},
	{
		Key:           RSIDivergence,
		Name:          "RSI Divergence",
		Description:   "Looks for exhaustion when RSI is stretched away from its midline.",
		MinConfidence: 62, MaxConfidence: 85,
		Indicators: []string{"rsi"},
		Regimes:    []models.Regime{models.Sideways, models.Volatile},
		Timeframes: []string{"1m", "5m"},
	},
	{
		Key:           BollingerReversion,
		Name:          "Bollinger Reversion",
		Description:   "Expects price stretched to a band to return towards the middle band.",
		MinConfidence: 62, MaxConfidence: 84,
		Indicators: []string{"bollinger", "rsi"},
		Regimes:    []models.Regime{models.Sideways},
		Timeframes: []string{"1m", "5m", "15m"},
	},
	{
		Key:           BollingerBreakout,
		Name:          "Bollinger Breakout",
		Description:   "Trades expansion when price presses against a band in a volatile market.",
		MinConfidence: 60, MaxConfidence: 82,
		Indicators: []string{"bollinger", "volatility"},
		Regimes:    []models.Regime{models.Volatile},
		Timeframes: []string{"1m", "5m"},
	},
	{
		Key:           VolatilityBreakout,
		Name:          "Volatility Breakout",
		Description:   "Follows the side that breaks out once dispersion widens.",
		MinConfidence: 60, MaxConfidence: 80,
		Indicators: []string{"volatility", "volume"},
		Regimes:    []models.Regime{models.Volatile},
		Timeframes: []string{"1m", "5m"},
	},
}

// regime -> compatible strategies, best first
var compatible = map[models.Regime][]string{
	models.StrongUptrend:   {TrendFollowing, IchimokuCloud, MomentumBreakout},
	models.StrongDowntrend: {TrendFollowing, IchimokuCloud, MomentumBreakout},
	models.Uptrend:         {TrendFollowing, MACDCrossover, SupportResistance},
	models.Downtrend:       {TrendFollowing, MACDCrossover, SupportResistance},
	models.Sideways:        {SupportResistance, RSIDivergence, BollingerReversion},
	models.Volatile:        {BollingerBreakout, VolatilityBreakout, RSIDivergence},
}

// Catalog returns a copy of the strategy table in declaration order.
func Catalog() []models.StrategyDefinition {
	out := make([]models.StrategyDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a catalog entry by key.
func Lookup(key string) (models.StrategyDefinition, bool) {
	for _, d := range catalog {
		if d.Key == key {
			return d, true
		}
	}
	return models.StrategyDefinition{}, false
}

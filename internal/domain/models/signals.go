package models

import "time"

// StrategyDefinition is a static catalog entry. Shared read-only.
type StrategyDefinition struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	MinConfidence int      `json:"min_confidence"`
	MaxConfidence int      `json:"max_confidence"`
	Indicators    []string `json:"indicators"`
	Regimes       []Regime `json:"regimes"`
	Timeframes    []string `json:"timeframes"`
}

// StrategyScore pairs a catalog entry with its fitness for the current readings.
type StrategyScore struct {
	Strategy StrategyDefinition `json:"strategy"`
	Score    float64            `json:"score"`
}

// DirectionVote is the weighted bullish/bearish tally behind a direction.
type DirectionVote struct {
	Direction Direction `json:"direction"`
	Bullish   float64   `json:"bullish"`
	Bearish   float64   `json:"bearish"`
	Factors   []string  `json:"factors,omitempty"`
}

// ValidationOutcome is produced fresh per validation call.
type ValidationOutcome struct {
	IsValid      bool         `json:"is_valid"`
	Confidence   int          `json:"confidence"`
	Reasons      []string     `json:"reasons"`
	WarningLevel WarningLevel `json:"warning_level"`
}

// SentimentSnapshot is an optional external market mood reading.
type SentimentSnapshot struct {
	Score     float64   `json:"score"`  // -100..100
	Impact    string    `json:"impact"` // low, medium, high
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimeframeSignal summarises one analyzed horizon.
type TimeframeSignal struct {
	Timeframe  string    `json:"timeframe"`
	Direction  Direction `json:"direction"`
	Confidence int       `json:"confidence"`
	Strength   float64   `json:"strength"`
	Regime     Regime    `json:"regime"`
}

// SignalIndicators are the readings surfaced to users; levels are rounded to 2 decimals.
type SignalIndicators struct {
	RSI           float64 `json:"rsi"`
	MACDHistogram float64 `json:"macd_histogram"`
	PercentB      float64 `json:"percent_b"`
	Support       float64 `json:"support"`
	Resistance    float64 `json:"resistance"`
	TrendStrength float64 `json:"trend_strength"`
	Volatility    float64 `json:"volatility"`
}

// Signal is the full signal object for one timeframe.
type Signal struct {
	ID                string           `json:"id"`
	Symbol            string           `json:"symbol"`
	Interval          string           `json:"interval"`
	Direction         Direction        `json:"direction"`
	Confidence        int              `json:"confidence"`
	IsValid           bool             `json:"is_valid"`
	WarningLevel      WarningLevel     `json:"warning_level"`
	Regime            Regime           `json:"regime"`
	Strategy          string           `json:"strategy"`
	Reasons           []string         `json:"reasons"`
	Indicators        SignalIndicators `json:"indicators"`
	EntryPrice        float64          `json:"entry_price"`
	EntryDelaySeconds int              `json:"entry_delay_seconds"`
	EntryTime         time.Time        `json:"entry_time"`
	ExpiryMinutes     int              `json:"expiry_minutes"`
	ExpiryTime        time.Time        `json:"expiry_time"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// ConfluenceResult is the externally visible outcome of a multi-timeframe analysis.
type ConfluenceResult struct {
	PrimarySignal       Signal            `json:"primary_signal"`
	Timeframes          []TimeframeSignal `json:"timeframes"`
	OverallConfluence   int               `json:"overall_confluence"`
	ConfluenceDirection Direction         `json:"confluence_direction"`
	CountdownSeconds    int               `json:"countdown_seconds"`
}

// MarketAnalysisResult is the single-timeframe variant of an analysis.
type MarketAnalysisResult struct {
	Signal     Signal             `json:"signal"`
	Indicators IndicatorSnapshot  `json:"indicators"`
	Strategy   StrategyDefinition `json:"strategy"`
	Vote       DirectionVote      `json:"vote"`
	Validation ValidationOutcome  `json:"validation"`
}

package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientMarketData is returned when there is no price series to analyze.
	ErrInsufficientMarketData = errors.New("insufficient market data")
	ErrUnsupportedInterval    = errors.New("unsupported interval")
	ErrInvalidSymbol          = errors.New("invalid symbol")
)

// Direction is the side of a signal. Neutral only appears as a confluence outcome.
type Direction int8

const (
	Neutral Direction = 0
	Call    Direction = 1
	Put     Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Call:
		return "CALL"
	case Put:
		return "PUT"
	case Neutral:
		return "NEUTRAL"
	}
	return fmt.Sprintf("Direction(%d)", int8(d))
}

// Sign returns +1 for CALL, -1 for PUT and 0 for NEUTRAL.
func (d Direction) Sign() float64 { return float64(d) }

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "CALL":
		*d = Call
	case "PUT":
		*d = Put
	case "NEUTRAL", "":
		*d = Neutral
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}

// Regime is the coarse market classification. The set is closed.
type Regime uint8

const (
	Sideways Regime = iota
	StrongUptrend
	Uptrend
	Downtrend
	StrongDowntrend
	Volatile
)

// Regimes lists every regime in declaration order.
var Regimes = []Regime{Sideways, StrongUptrend, Uptrend, Downtrend, StrongDowntrend, Volatile}

func (r Regime) String() string {
	switch r {
	case Sideways:
		return "SIDEWAYS"
	case StrongUptrend:
		return "STRONG_UPTREND"
	case Uptrend:
		return "UPTREND"
	case Downtrend:
		return "DOWNTREND"
	case StrongDowntrend:
		return "STRONG_DOWNTREND"
	case Volatile:
		return "VOLATILE"
	}
	return fmt.Sprintf("Regime(%d)", uint8(r))
}

func (r Regime) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Regime) UnmarshalText(b []byte) error {
	for _, v := range Regimes {
		if strings.EqualFold(v.String(), string(b)) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown regime %q", b)
}

// Bias returns the direction a regime leans to; Sideways and Volatile have none.
func (r Regime) Bias() Direction {
	switch r {
	case StrongUptrend, Uptrend:
		return Call
	case StrongDowntrend, Downtrend:
		return Put
	case Sideways, Volatile:
		return Neutral
	}
	return Neutral
}

// IsStrong reports whether the regime is one of the two strong trend states.
func (r Regime) IsStrong() bool { return r == StrongUptrend || r == StrongDowntrend }

// WarningLevel grades how risky a validated signal is.
type WarningLevel string

const (
	WarningNone   WarningLevel = "none"
	WarningLow    WarningLevel = "low"
	WarningMedium WarningLevel = "medium"
	WarningHigh   WarningLevel = "high"
)

// MACD holds the latest MACD values plus the histogram one bar earlier.
type MACD struct {
	Line              float64 `json:"line"`
	Signal            float64 `json:"signal"`
	Histogram         float64 `json:"histogram"`
	PreviousHistogram float64 `json:"previous_histogram"`
}

// Bollinger holds the latest band values.
type Bollinger struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	PercentB float64 `json:"percent_b"`
}

// Levels are the support/resistance extremes over the lookback window.
type Levels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// IndicatorSnapshot is computed fresh per call and never mutated afterwards.
type IndicatorSnapshot struct {
	Price         float64   `json:"price"`
	RSI           float64   `json:"rsi"`
	MACD          MACD      `json:"macd"`
	Bollinger     Bollinger `json:"bollinger"`
	Levels        Levels    `json:"levels"`
	TrendStrength float64   `json:"trend_strength"`
	Volatility    float64   `json:"volatility"`
}

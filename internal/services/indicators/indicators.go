package indicators

import (
	"math"

	"github.com/markcheno/go-talib"

	"SignalDesk/internal/domain/models"
)

// Protocol thresholds shared by the voter, validator and timing optimizer.
const (
	VolatilityLow    = 0.005
	VolatilityTiming = 0.015
	VolatilityHigh   = 0.020
)

const (
	RSIPeriod         = 14
	MACDFast          = 12
	MACDSlow          = 26
	MACDSignal        = 9
	BollingerPeriod   = 20
	BollingerStdDev   = 2.0
	LevelsLookback    = 50
	TrendWindow       = 20
	VolatilityWindow  = 20
	neutralRSI        = 50.0
	neutralPercentB   = 0.5
	histogramEpsilon  = 1e-9
	bandWidthEpsilon  = 1e-9
	trendMoveSaturate = 0.02
)

// RSI returns the Wilder RSI of the latest point, or 50 when it cannot be computed.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 || flat(prices) {
		return neutralRSI
	}
	out := talib.Rsi(prices, period)
	v := out[len(out)-1]
	if !finite(v) {
		return neutralRSI
	}
	return v
}

// MACD returns line/signal/histogram for the latest point. PreviousHistogram is left zero;
// Compute fills it from the series minus its last point.
func MACD(prices []float64, fast, slow, signal int) models.MACD {
	if fast <= 0 || slow <= 0 || signal <= 0 || len(prices) < slow+signal-1 {
		return models.MACD{}
	}
	line, sig, hist := talib.Macd(prices, fast, slow, signal)
	i := len(prices) - 1
	m := models.MACD{Line: line[i], Signal: sig[i], Histogram: hist[i]}
	if !finite(m.Line) || !finite(m.Signal) || !finite(m.Histogram) {
		return models.MACD{}
	}
	if math.Abs(m.Histogram) <= histogramEpsilon {
		m.Histogram = 0
	}
	return m
}

// Bollinger returns the latest bands. Zero-width bands, relative to the middle band, yield %B of 0.5.
func Bollinger(prices []float64, period int, mult float64) models.Bollinger {
	if len(prices) == 0 {
		return models.Bollinger{PercentB: neutralPercentB}
	}
	price := prices[len(prices)-1]
	if period <= 0 || len(prices) < period || flat(tail(prices, period)) {
		return models.Bollinger{Upper: price, Middle: price, Lower: price, PercentB: neutralPercentB}
	}
	// talib derives the deviation from E[x²]-E[x]², which leaves residual width on flat input.
	upper, middle, lower := talib.BBands(prices, period, mult, mult, talib.SMA)
	i := len(prices) - 1
	b := models.Bollinger{Upper: upper[i], Middle: middle[i], Lower: lower[i], PercentB: neutralPercentB}
	if !finite(b.Upper) || !finite(b.Lower) || !finite(b.Middle) {
		return models.Bollinger{Upper: price, Middle: price, Lower: price, PercentB: neutralPercentB}
	}
	if width := b.Upper - b.Lower; width > bandWidthEpsilon*math.Max(1, math.Abs(b.Middle)) {
		b.PercentB = (price - b.Lower) / width
	}
	return b
}

// SupportResistance returns the min and max over the trailing lookback window.
func SupportResistance(prices []float64, lookback int) models.Levels {
	w := tail(prices, lookback)
	if len(w) == 0 {
		return models.Levels{}
	}
	lv := models.Levels{Support: w[0], Resistance: w[0]}
	for _, p := range w[1:] {
		lv.Support = math.Min(lv.Support, p)
		lv.Resistance = math.Max(lv.Resistance, p)
	}
	return lv
}

// TrendStrength scores 0..100 how persistently and how far price moved over the trend window,
// with volume on the moves in the net direction as confirmation.
func TrendStrength(prices, volumes []float64) float64 {
	n := len(prices)
	if n < 3 {
		return 0
	}
	window := TrendWindow
	if window > n-1 {
		window = n - 1
	}
	start := n - 1 - window

	var ups, downs int
	for i := start + 1; i < n; i++ {
		switch d := prices[i] - prices[i-1]; {
		case d > 0:
			ups++
		case d < 0:
			downs++
		}
	}
	net := relChange(prices[start], prices[n-1])
	persistence := math.Abs(float64(ups-downs)) / float64(window)
	magnitude := math.Min(math.Abs(net)/trendMoveSaturate, 1)

	var confirm float64
	if net != 0 && len(volumes) == n {
		var aligned, all float64
		var nAligned int
		for i := start + 1; i < n; i++ {
			all += volumes[i]
			if d := prices[i] - prices[i-1]; d != 0 && (d > 0) == (net > 0) {
				aligned += volumes[i]
				nAligned++
			}
		}
		if all > 0 && nAligned > 0 {
			ratio := (aligned / float64(nAligned)) / (all / float64(window))
			confirm = clamp(ratio/2, 0, 1)
		}
	}

	s := 100 * (0.45*persistence + 0.35*magnitude + 0.20*confirm)
	return clamp(s, 0, 100)
}

// Volatility is the mean absolute relative change over the trailing window.
func Volatility(prices []float64) float64 {
	w := tail(prices, VolatilityWindow+1)
	if len(w) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(w); i++ {
		sum += math.Abs(relChange(w[i-1], w[i]))
	}
	return sum / float64(len(w)-1)
}

// Change returns the relative move of the last price against the price lookback points earlier.
// Shorter series use their first point.
func Change(prices []float64, lookback int) float64 {
	n := len(prices)
	if n < 2 || lookback <= 0 {
		return 0
	}
	from := n - 1 - lookback
	if from < 0 {
		from = 0
	}
	return relChange(prices[from], prices[n-1])
}

// VolumeRatio compares the latest volume against the average of the preceding period values.
// ok is false when there is no usable average.
func VolumeRatio(volumes []float64, period int) (ratio float64, ok bool) {
	n := len(volumes)
	if n < 2 || period <= 0 {
		return 0, false
	}
	prior := volumes[:n-1]
	prior = tail(prior, period)
	var sum float64
	for _, v := range prior {
		sum += v
	}
	avg := sum / float64(len(prior))
	if avg <= 0 {
		return 0, false
	}
	return volumes[n-1] / avg, true
}

// Compute bundles every indicator for the latest point of the series.
func Compute(s models.Series) models.IndicatorSnapshot {
	macd := MACD(s.Prices, MACDFast, MACDSlow, MACDSignal)
	if s.Len() > 1 {
		macd.PreviousHistogram = MACD(s.Prices[:s.Len()-1], MACDFast, MACDSlow, MACDSignal).Histogram
	}
	return models.IndicatorSnapshot{
		Price:         s.Last(),
		RSI:           RSI(s.Prices, RSIPeriod),
		MACD:          macd,
		Bollinger:     Bollinger(s.Prices, BollingerPeriod, BollingerStdDev),
		Levels:        SupportResistance(s.Prices, LevelsLookback),
		TrendStrength: TrendStrength(s.Prices, s.Volumes),
		Volatility:    Volatility(s.Prices),
	}
}

func relChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from
}

func tail(xs []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(xs) > n {
		return xs[len(xs)-n:]
	}
	return xs
}

func flat(xs []float64) bool {
	if len(xs) == 0 {
		return true
	}
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

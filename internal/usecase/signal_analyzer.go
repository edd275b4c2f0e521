package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/services/indicators"
	"SignalDesk/internal/services/strategy"
	"SignalDesk/internal/services/timing"
	"SignalDesk/internal/services/validator"
	"SignalDesk/internal/services/voter"
	"SignalDesk/pkg/util"
)

// DefaultLookback is the number of candles pulled per timeframe.
const DefaultLookback = 150

var signalNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("signaldesk/signal"))

// TimeframeAnalysis is the engine output for one timeframe.
type TimeframeAnalysis struct {
	Timeframe  domrepo.Timeframe
	Series     models.Series
	LastBucket time.Time
	Snapshot   models.IndicatorSnapshot
	Regime     models.Regime
	Strategy   models.StrategyDefinition
	Vote       models.DirectionVote
	Validation models.ValidationOutcome
}

// SignalAnalyzer runs the single-timeframe pipeline: indicators, regime, strategy, vote, validation.
type SignalAnalyzer struct {
	store    domrepo.FeatureStore
	selector *strategy.Selector
	clock    timing.Clock
	lookback int
}

func NewSignalAnalyzer(store domrepo.FeatureStore, selector *strategy.Selector, clock timing.Clock, lookback int) *SignalAnalyzer {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if clock == nil {
		clock = timing.SystemClock{}
	}
	if selector == nil {
		selector = strategy.NewSelector()
	}
	return &SignalAnalyzer{store: store, selector: selector, clock: clock, lookback: lookback}
}

// AnalyzeTimeframe loads candles for tf and evaluates them. An empty series is ErrInsufficientMarketData.
func (a *SignalAnalyzer) AnalyzeTimeframe(ctx context.Context, symbol string, tf domrepo.Timeframe, sentiment *float64) (*TimeframeAnalysis, error) {
	cs, err := a.store.GetLatestNCandles(ctx, symbol, a.lookback, tf)
	if err != nil {
		return nil, fmt.Errorf("load %s %s candles: %w", symbol, tf, err)
	}
	if len(cs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", symbol, tf, models.ErrInsufficientMarketData)
	}
	ta := a.Evaluate(models.SeriesFromCandles(cs), sentiment)
	ta.Timeframe = tf
	ta.LastBucket = cs[len(cs)-1].Bucket
	return ta, nil
}

// Evaluate is the pure engine over an in-memory series.
func (a *SignalAnalyzer) Evaluate(series models.Series, sentiment *float64) *TimeframeAnalysis {
	snap := indicators.Compute(series)
	regime := indicators.ClassifyRegime(series.Prices, series.Volumes)
	vote := voter.Vote(voter.Input{Regime: regime, Snapshot: snap, Series: series, Sentiment: sentiment})
	return &TimeframeAnalysis{
		Series:   series,
		Snapshot: snap,
		Regime:   regime,
		Strategy: a.selector.Select(regime, snap),
		Vote:     vote,
		Validation: validator.Validate(validator.Input{
			Direction: vote.Direction,
			Regime:    regime,
			Snapshot:  snap,
			Series:    series,
		}),
	}
}

// BuildSignal turns an analysis into the user-facing signal, adding entry and expiry timing.
func (a *SignalAnalyzer) BuildSignal(symbol, interval string, ta *TimeframeAnalysis, outcome models.ValidationOutcome) models.Signal {
	now := a.clock.Now()
	delay, entry := timing.Entry(a.clock)
	expiry := timing.ExpiryMinutes(interval, ta.Snapshot.TrendStrength, ta.Snapshot.Volatility)
	snap := ta.Snapshot
	return models.Signal{
		ID:           signalID(symbol, interval, ta.LastBucket, ta.Vote.Direction),
		Symbol:       symbol,
		Interval:     interval,
		Direction:    ta.Vote.Direction,
		Confidence:   outcome.Confidence,
		IsValid:      outcome.IsValid,
		WarningLevel: outcome.WarningLevel,
		Regime:       ta.Regime,
		Strategy:     ta.Strategy.Name,
		Reasons:      outcome.Reasons,
		Indicators: models.SignalIndicators{
			RSI:           snap.RSI,
			MACDHistogram: snap.MACD.Histogram,
			PercentB:      snap.Bollinger.PercentB,
			Support:       util.Round2(snap.Levels.Support),
			Resistance:    util.Round2(snap.Levels.Resistance),
			TrendStrength: snap.TrendStrength,
			Volatility:    snap.Volatility,
		},
		EntryPrice:        util.Round2(snap.Price),
		EntryDelaySeconds: delay,
		EntryTime:         entry,
		ExpiryMinutes:     expiry,
		ExpiryTime:        entry.Add(time.Duration(expiry) * time.Minute),
		GeneratedAt:       now,
	}
}

func signalID(symbol, interval string, bucket time.Time, d models.Direction) string {
	name := fmt.Sprintf("%s|%s|%d|%s", symbol, interval, bucket.Unix(), d)
	return uuid.NewSHA1(signalNamespace, []byte(name)).String()
}

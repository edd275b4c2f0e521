package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/services/indicators"
	"SignalDesk/internal/services/validator"
	applogger "SignalDesk/pkg/logger"
)

const (
	weightSelected    = 1.8
	weightLonger      = 1.4
	weightOther       = 1.0
	neutralShareGap   = 0.15
	maxConfluence     = 95
	minAdjusted       = 60
	maxAdjusted       = 96
	momentumLookback  = 5
	strongTrendAdjust = 70.0
)

// DefaultTimeframes is the fixed confluence set.
var DefaultTimeframes = []domrepo.Timeframe{domrepo.TF1m, domrepo.TF5m, domrepo.TF15m, domrepo.TF1h}

// ConfluenceAggregator runs the pipeline on every timeframe and folds the results.
type ConfluenceAggregator struct {
	analyzer   *SignalAnalyzer
	timeframes []domrepo.Timeframe
	l          *applogger.Logger
}

func NewConfluenceAggregator(analyzer *SignalAnalyzer, timeframes []domrepo.Timeframe, l *applogger.Logger) *ConfluenceAggregator {
	if len(timeframes) == 0 {
		timeframes = DefaultTimeframes
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ConfluenceAggregator{analyzer: analyzer, timeframes: timeframes, l: l}
}

// Timeframes returns the analysis set for a selected timeframe, appending it when missing.
func (c *ConfluenceAggregator) Timeframes(selected domrepo.Timeframe) []domrepo.Timeframe {
	out := make([]domrepo.Timeframe, 0, len(c.timeframes)+1)
	found := false
	for _, tf := range c.timeframes {
		out = append(out, tf)
		found = found || tf == selected
	}
	if !found {
		out = append(out, selected)
	}
	return out
}

// Run analyzes every timeframe concurrently. Only a failure of the selected timeframe is fatal;
// other timeframes without data are left out of the vote.
func (c *ConfluenceAggregator) Run(ctx context.Context, symbol, interval string, selected domrepo.Timeframe, sentiment *float64) (*models.ConfluenceResult, *TimeframeAnalysis, error) {
	tfs := c.Timeframes(selected)

	type item struct {
		ta  *TimeframeAnalysis
		err error
	}
	results := make([]item, len(tfs))
	var wg sync.WaitGroup
	for i, tf := range tfs {
		wg.Add(1)
		go func(i int, tf domrepo.Timeframe) {
			defer wg.Done()
			ta, err := c.analyzer.AnalyzeTimeframe(ctx, symbol, tf, sentiment)
			results[i] = item{ta, err}
		}(i, tf)
	}
	wg.Wait()

	var primary *TimeframeAnalysis
	analyses := make([]*TimeframeAnalysis, 0, len(tfs))
	for i, it := range results {
		if it.err != nil {
			if tfs[i] == selected {
				return nil, nil, it.err
			}
			if !errors.Is(it.err, models.ErrInsufficientMarketData) {
				c.l.Warn("confluence.timeframe_failed",
					applogger.String("symbol", symbol),
					applogger.String("tf", string(tfs[i])),
					applogger.Error(it.err),
				)
			}
			continue
		}
		if tfs[i] == selected {
			primary = it.ta
		}
		analyses = append(analyses, it.ta)
	}

	dir, overall := Aggregate(selected, analyses)
	outcome := Readjust(primary, dir, overall)
	signal := c.analyzer.BuildSignal(symbol, interval, primary, outcome)

	frames := make([]models.TimeframeSignal, 0, len(analyses))
	for _, ta := range analyses {
		frames = append(frames, models.TimeframeSignal{
			Timeframe:  string(ta.Timeframe),
			Direction:  ta.Vote.Direction,
			Confidence: ta.Validation.Confidence,
			Strength:   ta.Snapshot.TrendStrength,
			Regime:     ta.Regime,
		})
	}

	return &models.ConfluenceResult{
		PrimarySignal:       signal,
		Timeframes:          frames,
		OverallConfluence:   overall,
		ConfluenceDirection: dir,
		CountdownSeconds:    signal.EntryDelaySeconds,
	}, primary, nil
}

// Aggregate weighs each timeframe's vote by its horizon relative to the selected one and by
// its trend strength. NEUTRAL unless one side's share leads by more than 15 points.
func Aggregate(selected domrepo.Timeframe, analyses []*TimeframeAnalysis) (models.Direction, int) {
	var call, put float64
	for _, ta := range analyses {
		w := weightOther
		switch {
		case ta.Timeframe == selected:
			w = weightSelected
		case ta.Timeframe.Longer(selected):
			w = weightLonger
		}
		w *= ta.Snapshot.TrendStrength / 60
		v := w * float64(ta.Validation.Confidence)
		switch ta.Vote.Direction {
		case models.Call:
			call += v
		case models.Put:
			put += v
		case models.Neutral:
		}
	}
	total := call + put
	if total <= 0 {
		return models.Neutral, 0
	}
	overall := int(math.Min(math.Round(math.Abs(call-put)/total*100), maxConfluence))
	callShare, putShare := call/total, put/total
	switch {
	case callShare-putShare > neutralShareGap:
		return models.Call, overall
	case putShare-callShare > neutralShareGap:
		return models.Put, overall
	default:
		return models.Neutral, overall
	}
}

// Readjust moves the primary timeframe's confidence with the confluence outcome and clamps
// it to [60,96].
func Readjust(primary *TimeframeAnalysis, dir models.Direction, overall int) models.ValidationOutcome {
	out := primary.Validation
	d := primary.Vote.Direction
	snap := primary.Snapshot
	conf := float64(out.Confidence)

	switch {
	case dir == models.Neutral:
		conf -= 5
	case dir == d:
		conf += math.Min(15, float64(overall)/8)
	default:
		conf -= math.Min(20, float64(overall)/4)
	}
	if snap.TrendStrength > strongTrendAdjust && primary.Regime.Bias() == d {
		conf += 5
	}
	if validator.NearLevel(snap, d) {
		conf += 5
	}
	if d.Sign()*indicators.Change(primary.Series.Prices, momentumLookback) > 0 {
		conf += 3
	}

	c := int(math.Round(conf))
	if c < minAdjusted {
		c = minAdjusted
	}
	if c > maxAdjusted {
		c = maxAdjusted
	}
	reasons := make([]string, len(out.Reasons), len(out.Reasons)+1)
	copy(reasons, out.Reasons)
	reasons = append(reasons, fmt.Sprintf("confluence %s (%d%%)", dir, overall))
	return models.ValidationOutcome{
		IsValid:      c >= 65,
		Confidence:   c,
		Reasons:      reasons,
		WarningLevel: validator.WarningFor(c),
	}
}

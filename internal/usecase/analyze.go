package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	domsvc "SignalDesk/internal/domain/service"
	"SignalDesk/internal/service/cache"
	"SignalDesk/internal/services/strategy"
	pkgcache "SignalDesk/pkg/cache"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/util"
)

const (
	opConfluence = "confluence"
	opMarket     = "market"
	opSentiment  = "sentiment"
	opStrategies = "strategies"
)

// AnalyzeParams identifies one analysis. A nil Sentiment falls back to the sentiment provider.
type AnalyzeParams struct {
	Symbol    string
	Interval  string
	Sentiment *float64
}

// Analyzer is the entry point used by handlers and the scheduler. Results are memoized per
// (operation, symbol, interval, sentiment); only fresh computations publish or record confidence.
type Analyzer struct {
	engine     *SignalAnalyzer
	confluence *ConfluenceAggregator
	cache      *cache.ResultCache
	ttls       cache.TTLs
	sentiment  domsvc.SentimentProvider
	publisher  domrepo.SignalPublisher
	metrics    domrepo.Metrics
	l          *applogger.Logger
}

type AnalyzerOption func(*Analyzer)

func WithSentimentProvider(p domsvc.SentimentProvider) AnalyzerOption {
	return func(a *Analyzer) { a.sentiment = p }
}

func WithSignalPublisher(p domrepo.SignalPublisher) AnalyzerOption {
	return func(a *Analyzer) { a.publisher = p }
}

func WithMetrics(m domrepo.Metrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

func WithTTLs(t cache.TTLs) AnalyzerOption {
	return func(a *Analyzer) { a.ttls = t }
}

func WithAnalyzerLogger(l *applogger.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.l = l }
}

func NewAnalyzer(engine *SignalAnalyzer, confluence *ConfluenceAggregator, rc *cache.ResultCache, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		engine:     engine,
		confluence: confluence,
		cache:      rc,
		ttls:       cache.DefaultTTLs(),
		metrics:    nopMetrics{},
		l:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = cache.NewResultCache(engine.clock)
	}
	return a
}

// Analyze runs the multi-timeframe confluence analysis.
func (a *Analyzer) Analyze(ctx context.Context, p AnalyzeParams) (*models.ConfluenceResult, error) {
	symbol, interval, tf, err := a.normalize(p)
	if err != nil {
		return nil, err
	}
	sentiment := a.resolveSentiment(ctx, symbol, p.Sentiment)
	key := pkgcache.GenerateKeyWithParams(opConfluence, symbol, string(tf), sentiment)

	start := time.Now()
	res, hit, err := cache.GetOrCompute(ctx, a.cache, key, a.ttls.Confluence, func(ctx context.Context) (*models.ConfluenceResult, error) {
		r, _, err := a.confluence.Run(ctx, symbol, interval, tf, sentiment)
		if err != nil {
			return nil, err
		}
		a.onFresh(ctx, r)
		return r, nil
	})
	a.metrics.RecordCacheLookup(opConfluence, hit)
	if err != nil {
		a.metrics.RecordAnalysis(opConfluence, resultLabel(err))
		return nil, err
	}
	a.metrics.RecordAnalysis(opConfluence, "ok")
	a.metrics.RecordLatency("analyze_"+opConfluence, time.Since(start).Seconds())
	a.l.Debug("analyze.done",
		applogger.String("symbol", symbol),
		applogger.String("interval", interval),
		applogger.Bool("cache_hit", hit),
		applogger.Stringer("direction", res.PrimarySignal.Direction),
		applogger.Int("confidence", res.PrimarySignal.Confidence),
	)
	return res, nil
}

// AnalyzeMarket runs the single-timeframe analysis for the selected interval.
func (a *Analyzer) AnalyzeMarket(ctx context.Context, p AnalyzeParams) (*models.MarketAnalysisResult, error) {
	symbol, interval, tf, err := a.normalize(p)
	if err != nil {
		return nil, err
	}
	sentiment := a.resolveSentiment(ctx, symbol, p.Sentiment)
	key := pkgcache.GenerateKeyWithParams(opMarket, symbol, string(tf), sentiment)

	res, hit, err := cache.GetOrCompute(ctx, a.cache, key, a.ttls.Market, func(ctx context.Context) (*models.MarketAnalysisResult, error) {
		ta, err := a.engine.AnalyzeTimeframe(ctx, symbol, tf, sentiment)
		if err != nil {
			return nil, err
		}
		return &models.MarketAnalysisResult{
			Signal:     a.engine.BuildSignal(symbol, interval, ta, ta.Validation),
			Indicators: ta.Snapshot,
			Strategy:   ta.Strategy,
			Vote:       ta.Vote,
			Validation: ta.Validation,
		}, nil
	})
	a.metrics.RecordCacheLookup(opMarket, hit)
	if err != nil {
		a.metrics.RecordAnalysis(opMarket, resultLabel(err))
		return nil, err
	}
	a.metrics.RecordAnalysis(opMarket, "ok")
	return res, nil
}

// Strategies returns the strategy catalog, cached for the strategy TTL.
func (a *Analyzer) Strategies(ctx context.Context) ([]models.StrategyDefinition, error) {
	res, hit, err := cache.GetOrCompute(ctx, a.cache, pkgcache.GenerateKeyWithParams(opStrategies), a.ttls.Strategies,
		func(context.Context) (*[]models.StrategyDefinition, error) {
			c := strategy.Catalog()
			return &c, nil
		})
	a.metrics.RecordCacheLookup(opStrategies, hit)
	if err != nil {
		return nil, err
	}
	return *res, nil
}

func (a *Analyzer) normalize(p AnalyzeParams) (string, string, domrepo.Timeframe, error) {
	symbol := util.NormalizeSymbol(p.Symbol)
	if symbol == "" {
		return "", "", "", fmt.Errorf("symbol required: %w", models.ErrInvalidSymbol)
	}
	interval := p.Interval
	if interval == "" {
		interval = "5"
	}
	tf, ok := domrepo.ParseInterval(interval)
	if !ok {
		return "", "", "", fmt.Errorf("%q: %w", interval, models.ErrUnsupportedInterval)
	}
	// aliases of one timeframe share a cache entry, so the label must not depend on spelling
	return symbol, tf.IntervalLabel(), tf, nil
}

// resolveSentiment prefers the caller's value; provider failures degrade to no sentiment.
func (a *Analyzer) resolveSentiment(ctx context.Context, symbol string, explicit *float64) *float64 {
	if explicit != nil || a.sentiment == nil {
		return explicit
	}
	key := pkgcache.GenerateKeyWithParams(opSentiment, symbol)
	snap, hit, err := cache.GetOrCompute(ctx, a.cache, key, a.ttls.Sentiment, func(ctx context.Context) (*models.SentimentSnapshot, error) {
		return a.sentiment.Sentiment(ctx, symbol)
	})
	a.metrics.RecordCacheLookup(opSentiment, hit)
	if err != nil || snap == nil {
		if err != nil {
			a.metrics.RecordError("sentiment")
			a.l.Warn("analyze.sentiment_unavailable", applogger.String("symbol", symbol), applogger.Error(err))
		}
		return nil
	}
	s := snap.Score
	return &s
}

func (a *Analyzer) onFresh(ctx context.Context, r *models.ConfluenceResult) {
	sig := r.PrimarySignal
	a.metrics.RecordConfidence(sig.Symbol, sig.Interval, sig.Confidence)
	a.metrics.RecordLastPrice(sig.Symbol, sig.EntryPrice)
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishSignal(ctx, r); err != nil {
		a.metrics.RecordError("publish_signal")
		a.l.Warn("analyze.publish_failed", applogger.String("symbol", sig.Symbol), applogger.Error(err))
		return
	}
	a.metrics.RecordMessageSent("kafka", sig.Symbol)
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientMarketData):
		return "insufficient_data"
	case errors.Is(err, models.ErrUnsupportedInterval), errors.Is(err, models.ErrInvalidSymbol):
		return "invalid"
	default:
		return "error"
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordMessageSent(string, string)     {}
func (nopMetrics) RecordError(string)                   {}
func (nopMetrics) RecordLastPrice(string, float64)      {}
func (nopMetrics) RecordLatency(string, float64)        {}
func (nopMetrics) RecordAnalysis(string, string)        {}
func (nopMetrics) RecordCacheLookup(string, bool)       {}
func (nopMetrics) RecordConfidence(string, string, int) {}

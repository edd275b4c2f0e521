package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/config"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/queue"
)

// AnalyzeJobType is the queue message type for watchlist analyses.
const AnalyzeJobType = "signal.analyze"

// WatchItem is one (symbol, interval) pair on the watchlist.
type WatchItem struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// ParseWatchlist turns SYMBOL:INTERVAL entries into items.
func ParseWatchlist(entries []string) ([]WatchItem, error) {
	out := make([]WatchItem, 0, len(entries))
	for _, e := range entries {
		sym, iv, err := config.ParseWatch(e)
		if err != nil {
			return nil, err
		}
		out = append(out, WatchItem{Symbol: sym, Interval: iv})
	}
	return out, nil
}

// Dispatcher hands a watchlist item to whatever runs the analysis.
type Dispatcher interface {
	Dispatch(ctx context.Context, item WatchItem) error
}

// DirectDispatcher analyzes in the calling goroutine.
type DirectDispatcher struct {
	an *Analyzer
}

func NewDirectDispatcher(an *Analyzer) *DirectDispatcher { return &DirectDispatcher{an: an} }

func (d *DirectDispatcher) Dispatch(ctx context.Context, item WatchItem) error {
	_, err := d.an.Analyze(ctx, AnalyzeParams{Symbol: item.Symbol, Interval: item.Interval})
	return err
}

// QueueDispatcher enqueues an AnalyzeJob message.
type QueueDispatcher struct {
	q queue.QueueService
}

func NewQueueDispatcher(q queue.QueueService) *QueueDispatcher { return &QueueDispatcher{q: q} }

func (d *QueueDispatcher) Dispatch(ctx context.Context, item WatchItem) error {
	return d.q.PublishMessage(ctx, AnalyzeJobType, item)
}

// AnalyzeJob runs a queued watchlist analysis. Missing market data is not retried.
type AnalyzeJob struct {
	an *Analyzer
	l  *applogger.Logger
}

func NewAnalyzeJob(an *Analyzer, l *applogger.Logger) *AnalyzeJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &AnalyzeJob{an: an, l: l}
}

func (j *AnalyzeJob) Name() string { return "watchlist-analyze" }
func (j *AnalyzeJob) Type() string { return AnalyzeJobType }

func (j *AnalyzeJob) Handle(ctx context.Context, payload interface{}) error {
	item, err := queue.ParsePayload[WatchItem](payload)
	if err != nil {
		return fmt.Errorf("analyze job payload: %w", err)
	}
	_, err = j.an.Analyze(ctx, AnalyzeParams{Symbol: item.Symbol, Interval: item.Interval})
	if errors.Is(err, models.ErrInsufficientMarketData) {
		j.l.Debug("watchlist.no_data", applogger.String("symbol", item.Symbol))
		return nil
	}
	return err
}

// WatchlistScheduler periodically dispatches every watchlist item. A run that is still going
// when the next tick fires is not overlapped.
type WatchlistScheduler struct {
	items      []WatchItem
	every      time.Duration
	workers    int
	timeout    time.Duration
	dispatcher Dispatcher
	l          *applogger.Logger
	cron       *gocron.Scheduler
	cancel     context.CancelFunc
}

func NewWatchlistScheduler(items []WatchItem, every time.Duration, workers int, d Dispatcher, l *applogger.Logger) *WatchlistScheduler {
	if every < time.Second {
		every = time.Minute
	}
	if workers <= 0 {
		workers = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &WatchlistScheduler{
		items:      items,
		every:      every,
		workers:    workers,
		timeout:    every,
		dispatcher: d,
		l:          l.With(applogger.String("component", "watchlist")),
		cron:       gocron.NewScheduler(time.UTC),
	}
}

// Start schedules RunOnce every interval, first run immediately.
func (s *WatchlistScheduler) Start(ctx context.Context) error {
	if len(s.items) == 0 {
		s.l.Info("watchlist.empty")
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	_, err := s.cron.Every(int(s.every / time.Second)).Seconds().SingletonMode().Do(func() {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		s.RunOnce(runCtx)
	})
	if err != nil {
		s.cancel()
		return fmt.Errorf("schedule watchlist: %w", err)
	}
	s.cron.StartAsync()
	s.l.Info("watchlist.started", applogger.Int("items", len(s.items)), applogger.Duration("every", s.every))
	return nil
}

// RunOnce dispatches every item with bounded concurrency and returns how many failed.
func (s *WatchlistScheduler) RunOnce(ctx context.Context) int {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	failed := make([]bool, len(s.items))
	for i, it := range s.items {
		i, it := i, it
		g.Go(func() error {
			if err := s.dispatcher.Dispatch(gctx, it); err != nil {
				failed[i] = true
				s.l.Warn("watchlist.dispatch_failed",
					applogger.String("symbol", it.Symbol),
					applogger.String("interval", it.Interval),
					applogger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return n
}

func (s *WatchlistScheduler) Stop() {
	s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/util"
)

// MemoryCandleStore keeps one-minute candles per symbol built from ticks. Higher timeframes
// are folded from the one-minute buckets on read.
type MemoryCandleStore struct {
	mu        sync.RWMutex
	bySymbol  map[string][]models.Candle // ascending by bucket
	maxPerSym int
}

// NewMemoryCandleStore keeps at most maxPerSymbol one-minute candles per symbol (default 10080, one week).
func NewMemoryCandleStore(maxPerSymbol int) *MemoryCandleStore {
	if maxPerSymbol <= 0 {
		maxPerSymbol = 7 * 24 * 60
	}
	return &MemoryCandleStore{bySymbol: make(map[string][]models.Candle), maxPerSym: maxPerSymbol}
}

// Ingest folds a tick into its one-minute bucket. Late ticks update older buckets in place.
func (s *MemoryCandleStore) Ingest(t models.Tick) {
	if t.Symbol == "" || t.Timestamp <= 0 || t.Price <= 0 {
		return
	}
	symbol := util.NormalizeSymbol(t.Symbol)
	bucket := time.Unix(util.UnixSeconds(t.Timestamp), 0).UTC().Truncate(time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.bySymbol[symbol]
	i := sort.Search(len(cs), func(i int) bool { return !cs[i].Bucket.Before(bucket) })
	if i < len(cs) && cs[i].Bucket.Equal(bucket) {
		c := &cs[i]
		c.High = max(c.High, t.Price)
		c.Low = min(c.Low, t.Price)
		c.Close = t.Price
		c.Volume += t.Volume
		return
	}
	c := models.Candle{Bucket: bucket, Symbol: symbol, Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price, Volume: t.Volume}
	cs = append(cs, models.Candle{})
	copy(cs[i+1:], cs[i:])
	cs[i] = c
	if len(cs) > s.maxPerSym {
		cs = append([]models.Candle(nil), cs[len(cs)-s.maxPerSym:]...)
	}
	s.bySymbol[symbol] = cs
}

// Put stores complete one-minute candles, replacing buckets that already exist.
func (s *MemoryCandleStore) Put(candles ...models.Candle) {
	for _, c := range candles {
		sym := util.NormalizeSymbol(c.Symbol)
		c.Symbol = sym
		c.Bucket = c.Bucket.UTC().Truncate(time.Minute)
		s.mu.Lock()
		cs := s.bySymbol[sym]
		i := sort.Search(len(cs), func(i int) bool { return !cs[i].Bucket.Before(c.Bucket) })
		if i < len(cs) && cs[i].Bucket.Equal(c.Bucket) {
			cs[i] = c
		} else {
			cs = append(cs, models.Candle{})
			copy(cs[i+1:], cs[i:])
			cs[i] = c
		}
		if len(cs) > s.maxPerSym {
			cs = append([]models.Candle(nil), cs[len(cs)-s.maxPerSym:]...)
		}
		s.bySymbol[sym] = cs
		s.mu.Unlock()
	}
}

func (s *MemoryCandleStore) GetCandles(_ context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	folded, err := s.fold(symbol, tf)
	if err != nil {
		return nil, err
	}
	out := make([]models.Candle, 0, len(folded))
	for _, c := range folded {
		if !c.Bucket.Before(from) && !c.Bucket.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryCandleStore) GetLatestNCandles(_ context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	folded, err := s.fold(symbol, tf)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(folded) > n {
		folded = folded[len(folded)-n:]
	}
	return folded, nil
}

// Symbols lists the symbols that have data.
func (s *MemoryCandleStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.bySymbol))
	for k := range s.bySymbol {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fold aggregates the one-minute series into tf buckets. The result is a fresh slice.
func (s *MemoryCandleStore) fold(symbol string, tf domrepo.Timeframe) ([]models.Candle, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return nil, errUnsupportedTimeframe(tf)
	}
	s.mu.RLock()
	src := s.bySymbol[util.NormalizeSymbol(symbol)]
	base := make([]models.Candle, len(src))
	copy(base, src)
	s.mu.RUnlock()

	d := tf.Duration()
	if d == time.Minute {
		return base, nil
	}
	out := make([]models.Candle, 0, len(base)/int(d/time.Minute)+1)
	for _, c := range base {
		b := c.Bucket.Truncate(d)
		if n := len(out); n > 0 && out[n-1].Bucket.Equal(b) {
			last := &out[n-1]
			last.High = max(last.High, c.High)
			last.Low = min(last.Low, c.Low)
			last.Close = c.Close
			last.Volume += c.Volume
			continue
		}
		c.Bucket = b
		out = append(out, c)
	}
	return out, nil
}

func errUnsupportedTimeframe(tf domrepo.Timeframe) error {
	return fmt.Errorf("unsupported timeframe: %s", tf)
}

var (
	_ domrepo.FeatureStore = (*MemoryCandleStore)(nil)
	_ domrepo.TickIngestor = (*MemoryCandleStore)(nil)
)

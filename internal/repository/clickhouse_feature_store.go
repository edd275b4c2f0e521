package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	pkgch "SignalDesk/pkg/clickhouse"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/util"
)

// CHFeatureStore implements FeatureStore on top of the one-minute candle table. Longer
// timeframes are aggregated by ClickHouse at query time.
type CHFeatureStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client, table string) *CHFeatureStore {
	if table == "" {
		table = pkgch.CandlesTable
	}
	return &CHFeatureStore{db: ch.DB(), table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// candle columns folded to the requested bucket width; %[1]d is the width in seconds.
const foldedColumns = `
        toStartOfInterval(bucket, INTERVAL %[1]d SECOND) AS b,
        symbol,
        argMin(open, bucket)  AS o,
        max(high)             AS h,
        min(low)              AS lo,
        argMax(close, bucket) AS c,
        sum(vol)              AS v`

func (s *CHFeatureStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	secs, err := bucketSeconds(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT %s
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket < ?
        GROUP BY b, symbol
        HAVING b >= ? AND b <= ?
        ORDER BY b ASC
    `
	q := fmt.Sprintf(qtpl, fmt.Sprintf(foldedColumns, secs), s.table)
	sym := util.NormalizeSymbol(symbol)
	end := to.Add(tf.Duration())
	return s.query(ctx, "get_candles", tf, sym, q, sym, from, end, from, to)
}

func (s *CHFeatureStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	secs, err := bucketSeconds(tf)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 1
	}
	const qtpl = `
        SELECT * FROM (
            SELECT %s
            FROM %s
            WHERE symbol = ?
            GROUP BY b, symbol
            ORDER BY b DESC
            LIMIT ?
        ) ORDER BY b ASC
    `
	q := fmt.Sprintf(qtpl, fmt.Sprintf(foldedColumns, secs), s.table)
	sym := util.NormalizeSymbol(symbol)
	return s.query(ctx, "latest_candles", tf, sym, q, sym, n)
}

func (s *CHFeatureStore) query(ctx context.Context, op string, tf domrepo.Timeframe, symbol, q string, args ...any) ([]models.Candle, error) {
	start := time.Now()
	fields := []applogger.Field{
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse "+op+" query error", append(fields, applogger.Error(err))...)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.l.Error("clickhouse "+op+" scan error", append(fields, applogger.Error(err))...)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Bucket = c.Bucket.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse "+op+" rows error", append(fields, applogger.Error(err))...)
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse "+op+" ok", append(fields,
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)...)
	return out, nil
}

func bucketSeconds(tf domrepo.Timeframe) (int64, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return 0, errUnsupportedTimeframe(tf)
	}
	return int64(tf.Duration() / time.Second), nil
}

var _ domrepo.FeatureStore = (*CHFeatureStore)(nil)

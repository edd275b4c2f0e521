package clickhouse

import "fmt"

const (
	Database     = "signaldesk"
	TicksTable   = Database + ".ticks_raw"
	CandlesTable = Database + ".candles_1m"
)

// SchemaStatements returns the idempotent DDL for the tick table and the one-minute candle
// view built from it. ttlDays <= 0 disables retention.
func SchemaStatements(ttlDays int) []string {
	ttl := ""
	if ttlDays > 0 {
		ttl = fmt.Sprintf("TTL toDateTime(ts) + INTERVAL %d DAY", ttlDays)
	}
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + Database,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts       DateTime64(3, 'UTC'),
            symbol   LowCardinality(String),
            price    Float64,
            volume   Float64,
            source   LowCardinality(String),
            event_id String
        ) ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMMDD(ts)
        ORDER BY (symbol, ts, event_id)
        %s`, TicksTable, ttl),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            bucket DateTime('UTC'),
            symbol LowCardinality(String),
            open   SimpleAggregateFunction(any, Float64),
            high   SimpleAggregateFunction(max, Float64),
            low    SimpleAggregateFunction(min, Float64),
            close  SimpleAggregateFunction(anyLast, Float64),
            vol    SimpleAggregateFunction(sum, Float64)
        ) ENGINE = AggregatingMergeTree
        ORDER BY (symbol, bucket)`, CandlesTable),
		fmt.Sprintf(`CREATE MATERIALIZED VIEW IF NOT EXISTS %s_mv TO %s AS
        SELECT toStartOfMinute(ts) AS bucket, symbol,
               argMin(price, ts) AS open, max(price) AS high, min(price) AS low,
               argMax(price, ts) AS close, sum(volume) AS vol
        FROM %s
        GROUP BY bucket, symbol`, CandlesTable, CandlesTable, TicksTable),
	}
}

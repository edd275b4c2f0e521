package repository

import (
	"strings"
	"time"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF3m  Timeframe = "3m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

var durations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF3m:  3 * time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
	TF1w:  7 * 24 * time.Hour,
}

// user-facing interval labels ("5", "Day") mapped to timeframes
var intervalAliases = map[string]Timeframe{
	"1":    TF1m,
	"3":    TF3m,
	"5":    TF5m,
	"15":   TF15m,
	"30":   TF30m,
	"60":   TF1h,
	"240":  TF4h,
	"d":    TF1d,
	"day":  TF1d,
	"1440": TF1d,
	"w":    TF1w,
	"week": TF1w,
}

var intervalLabels = map[Timeframe]string{
	TF1m:  "1",
	TF3m:  "3",
	TF5m:  "5",
	TF15m: "15",
	TF30m: "30",
	TF1h:  "60",
	TF4h:  "240",
	TF1d:  "Day",
	TF1w:  "Week",
}

// IntervalLabel is the canonical user-facing interval for tf ("5", "60", "Day").
// Every alias accepted by ParseInterval maps back to the same label.
func (tf Timeframe) IntervalLabel() string {
	if l, ok := intervalLabels[tf]; ok {
		return l
	}
	return string(tf)
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := durations[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1m }

// Duration returns the bucket width, or zero for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration { return durations[tf] }

// Longer reports whether tf spans strictly more time than other.
func (tf Timeframe) Longer(other Timeframe) bool { return tf.Duration() > other.Duration() }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf, ok := ParseInterval(s)
	if !ok {
		return DefaultTimeframe()
	}
	return tf
}

// ParseInterval accepts timeframe labels ("15m") and interval labels ("15", "Day").
func ParseInterval(s string) (Timeframe, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf, true
	}
	tf, ok := intervalAliases[s]
	return tf, ok
}

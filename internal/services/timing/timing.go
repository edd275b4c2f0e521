package timing

import (
	"math"
	"strings"
	"time"

	"SignalDesk/internal/services/indicators"
)

const (
	minEntryLeadSeconds  = 3
	defaultExpiryMinutes = 5
)

var baseExpiry = map[string]float64{
	"1": 1, "3": 3, "5": 5, "15": 15, "30": 30, "60": 60, "240": 240,
	"1m": 1, "3m": 3, "5m": 5, "15m": 15, "30m": 30, "1h": 60, "4h": 240,
	"day": 1440, "d": 1440, "1d": 1440, "1440": 1440,
	"week": 10080, "w": 10080, "1w": 10080, "10080": 10080,
}

// EntryDelay returns the seconds until the next minute boundary, rolling to the following
// boundary when 3 seconds or fewer remain.
func EntryDelay(now time.Time) int {
	d := 60 - now.Second()
	if d <= minEntryLeadSeconds {
		d += 60
	}
	return d
}

// Entry returns the delay and the absolute entry instant for the clock's current time.
func Entry(c Clock) (int, time.Time) {
	now := c.Now()
	d := EntryDelay(now)
	return d, now.Truncate(time.Second).Add(time.Duration(d) * time.Second)
}

// BaseExpiryMinutes maps an interval label to minutes; unknown labels get 5.
func BaseExpiryMinutes(interval string) float64 {
	if m, ok := baseExpiry[strings.ToLower(strings.TrimSpace(interval))]; ok {
		return m
	}
	return defaultExpiryMinutes
}

// ExpiryMinutes scales the base expiry by trend strength, then by volatility. Only the final
// value is rounded, half away from zero, and it is never below one minute.
func ExpiryMinutes(interval string, trendStrength, volatility float64) int {
	m := BaseExpiryMinutes(interval)
	switch {
	case trendStrength > 80:
		m *= 1.5
	case trendStrength < 40:
		m = math.Max(1, m*0.75)
	}
	switch {
	case volatility > indicators.VolatilityTiming:
		m = math.Max(1, m*0.7)
	case volatility < indicators.VolatilityLow:
		m *= 1.2
	}
	out := int(math.Round(m))
	if out < 1 {
		out = 1
	}
	return out
}

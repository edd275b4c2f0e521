package models

import "time"

// Candle represents an OHLCV record for one timeframe bucket.
type Candle struct {
	Bucket time.Time `json:"bucket"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Tick is a single trade print coming from the ingestion side (Kafka or websocket).
type Tick struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"t"` // unix seconds
	Price     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// Series is the engine input: chronological closes with parallel volumes.
type Series struct {
	Prices  []float64
	Volumes []float64
}

// SeriesFromCandles extracts closes and volumes, oldest first.
func SeriesFromCandles(cs []Candle) Series {
	s := Series{
		Prices:  make([]float64, 0, len(cs)),
		Volumes: make([]float64, 0, len(cs)),
	}
	for _, c := range cs {
		s.Prices = append(s.Prices, c.Close)
		s.Volumes = append(s.Volumes, c.Volume)
	}
	return s
}

// Len returns the number of price points.
func (s Series) Len() int { return len(s.Prices) }

// Last returns the latest close or 0 for an empty series.
func (s Series) Last() float64 {
	if len(s.Prices) == 0 {
		return 0
	}
	return s.Prices[len(s.Prices)-1]
}

// Head returns the series without its latest point.
func (s Series) Head() Series {
	if len(s.Prices) == 0 {
		return s
	}
	out := Series{Prices: s.Prices[:len(s.Prices)-1]}
	if len(s.Volumes) == len(s.Prices) {
		out.Volumes = s.Volumes[:len(s.Volumes)-1]
	}
	return out
}

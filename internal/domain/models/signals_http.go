package models

// Requests for signal HTTP endpoints. Defined in domain for consistency and reuse.

// AnalyzeRequest is shared by /api/analyze and /api/market. Sentiment stays a string so an
// absent value can be told apart from 0.
type AnalyzeRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,max=32,symbol"`
	Interval  string `query:"interval" json:"interval" default:"5" validate:"required,max=8,interval"`
	Sentiment string `query:"sentiment" json:"sentiment" validate:"omitempty,numeric"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32,symbol"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 3m 5m 15m 30m 1h 4h 1d 1w"`
	N      int    `query:"n" json:"n" default:"150" validate:"gte=1,lte=5000"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
}

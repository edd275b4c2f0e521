package sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"SignalDesk/internal/domain/models"
	domsvc "SignalDesk/internal/domain/service"
	"SignalDesk/pkg/config"
)

// HTTPProvider reads sentiment scores from a remote service at GET {url}/sentiment?symbol=.
type HTTPProvider struct {
	base *HTTPServiceBase
	now  func() time.Time
}

func NewHTTPProvider(cfg *config.Config) *HTTPProvider {
	return &HTTPProvider{base: NewHTTPServiceBase(cfg), now: time.Now}
}

type sentimentResponse struct {
	Symbol    string  `json:"symbol"`
	Score     float64 `json:"score"`
	Impact    string  `json:"impact"`
	Source    string  `json:"source"`
	UpdatedAt int64   `json:"updated_at"`
}

// Sentiment returns the score clamped to [-100, 100]. A missing impact is derived from |score|.
func (p *HTTPProvider) Sentiment(ctx context.Context, symbol string) (*models.SentimentSnapshot, error) {
	var sr sentimentResponse
	if err := p.base.GetJSON(ctx, "/sentiment", map[string][]string{"symbol": {symbol}}, &sr); err != nil {
		return nil, fmt.Errorf("sentiment %s: %w", symbol, err)
	}
	if math.IsNaN(sr.Score) || math.IsInf(sr.Score, 0) {
		return nil, fmt.Errorf("sentiment %s: invalid score", symbol)
	}
	score := max(-100, min(100, sr.Score))
	impact := strings.ToLower(sr.Impact)
	switch impact {
	case "low", "medium", "high":
	default:
		impact = impactOf(score)
	}
	updated := p.now().UTC()
	if sr.UpdatedAt > 0 {
		updated = time.Unix(sr.UpdatedAt, 0).UTC()
	}
	return &models.SentimentSnapshot{Score: score, Impact: impact, Source: sr.Source, UpdatedAt: updated}, nil
}

func impactOf(score float64) string {
	switch a := math.Abs(score); {
	case a >= 60:
		return "high"
	case a >= 25:
		return "medium"
	default:
		return "low"
	}
}

var _ domsvc.SentimentProvider = (*HTTPProvider)(nil)

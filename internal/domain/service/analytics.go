package service

import (
	"context"

	"SignalDesk/internal/domain/models"
)

// SentimentProvider yields an external mood reading for a symbol. Optional collaborator.
type SentimentProvider interface {
	Sentiment(ctx context.Context, symbol string) (*models.SentimentSnapshot, error)
}

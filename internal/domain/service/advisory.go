package service

import (
	"context"

	"FlipDesk/internal/domain/models"
)

// AdvisoryPort produces free-text explanations for decisions that are
// already final. Implementations must not be relied on for correctness.
type AdvisoryPort interface {
	ExplainSignal(ctx context.Context, signal models.InvestmentSignal) (models.Advice, error)
	ExplainPositions(ctx context.Context, positions []models.PositionAdvice) (map[int64]models.Advice, error)
}

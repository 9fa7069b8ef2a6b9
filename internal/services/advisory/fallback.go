package advisory

import (
	"context"

	"FlipDesk/internal/domain/models"
	domsvc "FlipDesk/internal/domain/service"
	"FlipDesk/pkg/logger"
)

// Fallback tries primary and answers from secondary when it fails.
type Fallback struct {
	primary   domsvc.AdvisoryPort
	secondary domsvc.AdvisoryPort
	log       *logger.Logger
}

func NewFallback(primary, secondary domsvc.AdvisoryPort, lgr *logger.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, log: lgr}
}

func (f *Fallback) ExplainSignal(ctx context.Context, s models.InvestmentSignal) (models.Advice, error) {
	adv, err := f.primary.ExplainSignal(ctx, s)
	if err == nil {
		return adv, nil
	}
	f.log.Warn("advisory signal fallback", logger.Int64("item_id", s.ItemID), logger.Error(err))
	return f.secondary.ExplainSignal(ctx, s)
}

func (f *Fallback) ExplainPositions(ctx context.Context, positions []models.PositionAdvice) (map[int64]models.Advice, error) {
	adv, err := f.primary.ExplainPositions(ctx, positions)
	if err == nil {
		return adv, nil
	}
	f.log.Warn("advisory positions fallback", logger.Int("positions", len(positions)), logger.Error(err))
	return f.secondary.ExplainPositions(ctx, positions)
}

var _ domsvc.AdvisoryPort = (*Fallback)(nil)

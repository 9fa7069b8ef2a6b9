package advisory

import (
	"context"
	"fmt"
	"time"

	"FlipDesk/internal/domain/models"
	domsvc "FlipDesk/internal/domain/service"
	"FlipDesk/internal/services/reversion"
	"FlipDesk/pkg/cache"
	"FlipDesk/pkg/logger"
	"FlipDesk/pkg/queue"
)

// ExplainMessageType is the queue message type for batch explanations.
const ExplainMessageType = "advisory.explain_signals"

// ExplainRequest asks for explanations of one scan's accepted signals.
type ExplainRequest struct {
	RunID   string                    `json:"run_id"`
	Signals []models.InvestmentSignal `json:"signals"`
}

// AdviceKey is the cache key an item's latest explanation is stored under.
func AdviceKey(itemID int64) string {
	return cache.Key("advice", itemID)
}

// ExplainJob explains signals off the request path and caches the result.
// Suggested prices are constrained before they are stored.
type ExplainJob struct {
	port  domsvc.AdvisoryPort
	cache cache.Service
	ttl   time.Duration
	log   *logger.Logger
}

func NewExplainJob(port domsvc.AdvisoryPort, c cache.Service, ttl time.Duration, lgr *logger.Logger) *ExplainJob {
	return &ExplainJob{port: port, cache: c, ttl: ttl, log: lgr}
}

func (j *ExplainJob) Name() string { return "explain-signals" }
func (j *ExplainJob) Type() string { return ExplainMessageType }

func (j *ExplainJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[ExplainRequest](payload)
	if err != nil {
		return fmt.Errorf("parse explain request: %w", err)
	}

	failed := 0
	for _, s := range req.Signals {
		adv, err := j.port.ExplainSignal(ctx, s)
		if err != nil {
			failed++
			j.log.Warn("explain signal failed", logger.Int64("item_id", s.ItemID), logger.Error(err))
			continue
		}
		if adv.Guidance != nil {
			g := reversion.ConstrainGuidance(*adv.Guidance, s)
			adv.Guidance = &g
		}
		if err := j.cache.Set(ctx, AdviceKey(s.ItemID), adv, j.ttl); err != nil {
			return fmt.Errorf("cache advice %d: %w", s.ItemID, err)
		}
	}

	j.log.Info("signals explained",
		logger.String("run_id", req.RunID),
		logger.Int("signals", len(req.Signals)),
		logger.Int("failed", failed),
	)
	return nil
}

var _ queue.Job = (*ExplainJob)(nil)

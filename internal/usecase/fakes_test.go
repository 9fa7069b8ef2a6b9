package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	"FlipDesk/internal/services/actions"
)

var errSourceDown = errors.New("source down")

// fakeBook serves every session-scoped repository from memory.
type fakeBook struct {
	mu         sync.Mutex
	positions  []models.Position
	theses     []models.Thesis
	alerts     []models.Alert
	orders     []models.Order
	items      []models.Item
	limits     map[int64]int64
	snapshots  map[int64]models.MarketSnapshot
	failing    map[string]bool
	staleSince time.Time
	users      []string
}

func (f *fakeBook) fail(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[name] {
		return errSourceDown
	}
	return nil
}

func (f *fakeBook) seen(sess models.SessionContext) {
	f.mu.Lock()
	f.users = append(f.users, sess.UserID)
	f.mu.Unlock()
}

func (f *fakeBook) ListOpenPositions(_ context.Context, sess models.SessionContext) ([]models.Position, error) {
	f.seen(sess)
	if err := f.fail("positions"); err != nil {
		return nil, err
	}
	return f.positions, nil
}

func (f *fakeBook) ListActiveTheses(_ context.Context, sess models.SessionContext) ([]models.Thesis, error) {
	f.seen(sess)
	if err := f.fail("theses"); err != nil {
		return nil, err
	}
	return f.theses, nil
}

func (f *fakeBook) ListUnresolvedAlerts(_ context.Context, sess models.SessionContext) ([]models.Alert, error) {
	f.seen(sess)
	if err := f.fail("alerts"); err != nil {
		return nil, err
	}
	return f.alerts, nil
}

func (f *fakeBook) ListStaleOrders(_ context.Context, sess models.SessionContext, before time.Time) ([]models.Order, error) {
	f.seen(sess)
	if err := f.fail("orders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.staleSince = before
	f.mu.Unlock()
	return f.orders, nil
}

func (f *fakeBook) ListPool(context.Context) ([]models.Item, error) {
	if err := f.fail("pool"); err != nil {
		return nil, err
	}
	return f.items, nil
}

func (f *fakeBook) GetItem(_ context.Context, id int64) (*models.Item, error) {
	for _, it := range f.items {
		if it.ID == id {
			it := it
			return &it, nil
		}
	}
	return nil, nil
}

func (f *fakeBook) BuyLimits(_ context.Context, ids []int64) (map[int64]int64, error) {
	if err := f.fail("buy_limits"); err != nil {
		return nil, err
	}
	out := map[int64]int64{}
	for _, id := range ids {
		if v, ok := f.limits[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (f *fakeBook) GetSnapshot(_ context.Context, id int64) (*models.MarketSnapshot, error) {
	if err := f.fail("snapshots"); err != nil {
		return nil, err
	}
	s, ok := f.snapshots[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeBook) GetSnapshots(_ context.Context, ids []int64) (map[int64]models.MarketSnapshot, error) {
	if err := f.fail("snapshots"); err != nil {
		return nil, err
	}
	out := map[int64]models.MarketSnapshot{}
	for _, id := range ids {
		if s, ok := f.snapshots[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeBook) repos() NBARepos {
	return NBARepos{Positions: f, Theses: f, Alerts: f, Orders: f, Items: f, Snapshots: f}
}

// fakeSeries serves fixed series per item.
type fakeSeries struct {
	mu     sync.Mutex
	series map[int64]models.PriceSeries
	errs   map[int64]error
	calls  int
}

func (f *fakeSeries) GetSeries(_ context.Context, itemID int64, _ time.Duration, _ float64) (models.PriceSeries, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := f.errs[itemID]; err != nil {
		return nil, err
	}
	return f.series[itemID], nil
}

// recordingMetrics keeps counts for assertions.
type recordingMetrics struct {
	mu      sync.Mutex
	stages  map[string]int
	sources map[string]int
	queued  int
	visible int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{stages: map[string]int{}, sources: map[string]int{}}
}

func (m *recordingMetrics) RecordStageOutcome(stage, reason string) {
	m.mu.Lock()
	m.stages[stage+":"+reason]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordSourceError(source string) {
	m.mu.Lock()
	m.sources[source]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordActions(queued, visible int) {
	m.mu.Lock()
	m.queued, m.visible = queued, visible
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordError(string)            {}
func (m *recordingMetrics) RecordLatency(string, float64) {}

var _ domrepo.Metrics = (*recordingMetrics)(nil)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func (f *fakeBook) inputs() actions.Inputs {
	return actions.Inputs{Positions: f.positions, Theses: f.theses}
}

// stubVerdicts returns canned verdicts per item; unknown items are rejected
// at stage 0.
type stubVerdicts map[int64]models.Verdict

func (s stubVerdicts) Analyze(item models.Item, _ models.PriceSeries) models.Verdict {
	if v, ok := s[item.ID]; ok {
		v.ItemID = item.ID
		return v
	}
	return models.Verdict{ItemID: item.ID, Stage: models.StagePre, Reason: models.ReasonNoSuppression}
}

// Signal returns the canned verdict's signal; items without one have no
// usable history.
func (s stubVerdicts) Signal(item models.Item, _ models.PriceSeries) (*models.InvestmentSignal, models.ReasonCode) {
	if v, ok := s[item.ID]; ok && v.Signal != nil {
		return v.Signal, models.ReasonNone
	}
	return nil, models.ReasonInsufficientHistory
}

func accepted(id int64, grade models.Grade, potential, confidence float64) models.Verdict {
	return models.Verdict{
		ItemID:     id,
		Accepted:   true,
		Stage:      models.StageDone,
		Confidence: confidence,
		Signal: &models.InvestmentSignal{
			ItemID:                id,
			InvestmentGrade:       grade,
			ReversionPotentialPct: potential,
			ConfidenceScore:       confidence,
			MediumTerm:            models.TimeframeStats{CurrentDeviationPct: potential},
		},
	}
}

type fakePublisher struct {
	mu      sync.Mutex
	runID   string
	signals []models.InvestmentSignal
	err     error
}

func (p *fakePublisher) PublishSignals(_ context.Context, runID string, signals []models.InvestmentSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID, p.signals = runID, signals
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeJournal struct {
	mu      sync.Mutex
	records []domrepo.ScanRecord
}

func (j *fakeJournal) RecordScan(_ context.Context, res *models.ScanResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, domrepo.ScanRecord{
		RunID:      res.RunID,
		StartedAt:  res.StartedAt,
		DurationMs: res.Duration.Milliseconds(),
		Funnel:     res.Funnel,
	})
	return nil
}

func (j *fakeJournal) RecentScans(_ context.Context, since time.Time, limit int) ([]domrepo.ScanRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domrepo.ScanRecord
	for _, r := range j.records {
		if !r.StartedAt.Before(since) {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (j *fakeJournal) Close() error { return nil }

type sentMessage struct {
	msgType string
	payload interface{}
}

type fakeQueue struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	q.sent = append(q.sent, sentMessage{msgType, payload})
	q.mu.Unlock()
	return nil
}

// fakePort is a scripted advisory port.
type fakePort struct {
	mu        sync.Mutex
	signal    models.Advice
	positions map[int64]models.Advice
	err       error
	calls     int
}

func (p *fakePort) ExplainSignal(context.Context, models.InvestmentSignal) (models.Advice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.signal, p.err
}

func (p *fakePort) ExplainPositions(context.Context, []models.PositionAdvice) (map[int64]models.Advice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.positions, p.err
}

// priced is an accepted verdict with sell levels around current.
func priced(id int64, current, target, confidence float64) models.Verdict {
	v := accepted(id, models.GradeA, (target-current)/current*100, confidence)
	v.Signal.CurrentPrice = current
	v.Signal.TargetSellPrice = target
	v.Signal.StretchSellPrice = target * 1.1
	v.Signal.StopLoss = current * 0.9
	return v
}

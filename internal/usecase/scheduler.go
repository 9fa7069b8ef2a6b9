package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"FlipDesk/pkg/logger"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

type scheduledJob struct {
	name    string
	fn      JobFunc
	running atomic.Bool
}

// Scheduler runs named jobs on cron specs with seconds. A tick that finds
// its job still running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	log    *logger.Logger
	mu     sync.Mutex
	jobs   map[string]*scheduledJob
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(lgr *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		log:    lgr,
		jobs:   map[string]*scheduledJob{},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job. An empty spec registers it for RunNow only.
func (s *Scheduler) Register(spec, name string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	job := &scheduledJob{name: name, fn: fn}
	if spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.run(job) }); err != nil {
			return fmt.Errorf("register %s schedule %q: %w", name, spec, err)
		}
	}
	s.jobs[name] = job
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("scheduled", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow runs a job immediately. It reports false when the job is unknown
// or already running.
func (s *Scheduler) RunNow(name string) bool {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.run(job)
}

func (s *Scheduler) run(job *scheduledJob) bool {
	if !job.running.CompareAndSwap(false, true) {
		s.log.Debug("job still running, tick skipped", logger.String("job", job.name))
		return false
	}
	defer job.running.Store(false)

	start := time.Now()
	if err := job.fn(s.ctx); err != nil {
		s.log.Error("scheduled job failed", logger.String("job", job.name), logger.Error(err))
		return true
	}
	s.log.Debug("scheduled job done", logger.String("job", job.name), logger.Duration("took", time.Since(start)))
	return true
}

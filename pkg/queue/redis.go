package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"FlipDesk/pkg/logger"
)

const (
	popTimeout = time.Second
	pumpEvery  = time.Second
	pumpBatch  = 100
)

// RedisQueue is a list-backed work queue. Failed messages wait in a sorted
// set until their backoff expires, then rejoin the list; messages that keep
// failing end up in a capped dead-letter list.
type RedisQueue struct {
	log    *logger.Logger
	cfg    QueueConfig
	client *redis.Client
	prefix string
	now    func() time.Time

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix namespaces the queue keys.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.prefix = prefix }
}

func NewRedisQueue(lgr *logger.Logger, cfg *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	c := QueueConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.DeadLetterCap <= 0 {
		c.DeadLetterCap = 1000
	}
	q := &RedisQueue{
		log:    lgr,
		cfg:    c,
		client: client,
		prefix: "flipdesk:queue",
		now:    time.Now,
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (r *RedisQueue) queueKey() string { return r.prefix + ":messages" }
func (r *RedisQueue) retryKey() string { return r.prefix + ":retry" }
func (r *RedisQueue) dlqKey() string   { return r.prefix + ":dlq" }

// RegisterJob adds a handler. The first job registered for a type wins.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[job.Type()]; dup {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start checks the connection and launches the workers and the retry pump.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}
	r.wg.Add(1)
	go r.pump(ctx)

	r.log.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.Int("jobs", len(r.jobs)),
		logger.String("prefix", r.prefix))
	return nil
}

// Stop cancels the workers and waits for in-flight messages until ctx ends.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop queue: %w", ctx.Err())
	}
}

// PublishMessage implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	_, known := r.jobs[msgType]
	running := r.running
	r.mu.RUnlock()
	if !known {
		return fmt.Errorf("no job registered for %q", msgType)
	}
	if !running {
		return errors.New("queue not running")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	data, err := json.Marshal(Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: r.now()})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), string(data)).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}

func (r *RedisQueue) work(ctx context.Context) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		res, err := r.client.BRPop(ctx, popTimeout, r.queueKey()).Result()
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
			continue
		default:
			r.log.Error("queue pop failed", logger.Error(err))
			sleepCtx(ctx, time.Second)
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.log.Error("drop undecodable message", logger.Error(err))
			continue
		}
		r.dispatch(ctx, msg)
	}
}

func (r *RedisQueue) dispatch(ctx context.Context, msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		msg.LastError = "no job registered"
		r.deadLetter(msg)
		return
	}

	start := r.now()
	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		r.log.Debug("message handled",
			logger.String("job", job.Name()),
			logger.Duration("took", r.now().Sub(start)))
		return
	}
	if ctx.Err() != nil {
		// Shutting down: put it back at the consuming end.
		if perr := r.client.RPush(context.Background(), r.queueKey(), mustEncode(msg)).Err(); perr != nil {
			r.log.Error("requeue on shutdown failed", logger.String("id", msg.ID), logger.Error(perr))
		}
		return
	}

	msg.LastError = err.Error()
	if msg.Attempts >= r.cfg.RetryLimit {
		r.log.Error("message failed permanently",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempts", msg.Attempts+1),
			logger.Error(err))
		r.deadLetter(msg)
		return
	}
	msg.Attempts++
	at := r.now().Add(r.cfg.RetryDelay << (msg.Attempts - 1))
	r.log.Warn("message failed, retrying",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err))
	if zerr := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: mustEncode(msg)}).Err(); zerr != nil {
		r.log.Error("schedule retry failed", logger.String("id", msg.ID), logger.Error(zerr))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	ctx := context.Background()
	key := r.dlqKey()
	if err := r.client.LPush(ctx, key, mustEncode(msg)).Err(); err != nil {
		r.log.Error("dead-letter failed", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	if err := r.client.LTrim(ctx, key, 0, r.cfg.DeadLetterCap-1).Err(); err != nil {
		r.log.Warn("dead-letter trim failed", logger.Error(err))
	}
}

func (r *RedisQueue) pump(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(pumpEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.promoteDue(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("retry pump failed", logger.Error(err))
			}
		}
	}
}

// promoteDue moves retries whose backoff has expired back onto the queue.
// Only the caller whose ZREM succeeds re-enqueues, so concurrent pumps do
// not duplicate a message.
func (r *RedisQueue) promoteDue(ctx context.Context) (int, error) {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(r.now().Unix(), 10),
		Count: pumpBatch,
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, m := range due {
		n, err := r.client.ZRem(ctx, r.retryKey(), m).Result()
		if err != nil {
			return moved, err
		}
		if n == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.queueKey(), m).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func mustEncode(msg Message) string {
	b, _ := json.Marshal(msg)
	return string(b)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Publisher ships a digest batch. pkg/kafka's producer satisfies it.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig controls digest shipping. A digest is flushed every
// TimeInterval or once CountThreshold distinct call sites have fired.
type CollectionConfig struct {
	TimeInterval   time.Duration
	CountThreshold int
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one call site's warn/error activity within a flush
// window. Fields holds the most recent occurrence's fields.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

type digestKey struct {
	level, caller, message string
}

// LogCollector folds repeated warnings and errors into counted entries so a
// hot failure loop ships one line per window, not thousands.
type LogCollector struct {
	cfg     CollectionConfig
	mu      sync.Mutex
	pending map[digestKey]*AggregatedLogEntry
	out     chan []AggregatedLogEntry
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewLogCollector(cfg *CollectionConfig) *LogCollector {
	c := &LogCollector{
		cfg:     *cfg,
		pending: make(map[digestKey]*AggregatedLogEntry),
		out:     make(chan []AggregatedLogEntry, 4),
		stop:    make(chan struct{}),
	}
	if c.cfg.TimeInterval <= 0 {
		c.cfg.TimeInterval = 30 * time.Second
	}
	if c.cfg.CountThreshold <= 0 {
		c.cfg.CountThreshold = 100
	}
	c.wg.Add(2)
	go c.tick()
	go c.send()
	return c
}

// AddLog records one occurrence.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	k := digestKey{level: level, caller: caller, message: message}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.pending[k]; ok {
		e.Count++
		e.LastSeen = now
		e.Fields = fields
	} else {
		c.pending[k] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	if len(c.pending) >= c.cfg.CountThreshold {
		c.flushLocked()
	}
}

// flushLocked hands the pending digest to the sender. If the sender is
// backed up the batch is dropped rather than blocking the logging caller.
func (c *LogCollector) flushLocked() {
	if len(c.pending) == 0 {
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.pending))
	for _, e := range c.pending {
		batch = append(batch, *e)
	}
	c.pending = make(map[digestKey]*AggregatedLogEntry)
	select {
	case c.out <- batch:
	default:
		fmt.Fprintf(os.Stderr, "log digest dropped: %d entries\n", len(batch))
	}
}

func (c *LogCollector) tick() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			close(c.out)
			return
		}
	}
}

func (c *LogCollector) send() {
	defer c.wg.Done()
	for batch := range c.out {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "log digest publish to %s failed: %v\n", c.cfg.Topic, err)
		}
		cancel()
	}
}

// Close flushes what is pending and waits until it has been published.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// callerAt returns "dir/file.go:line" for the frame skip levels above the
// caller of callerAt.
func callerAt(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
}

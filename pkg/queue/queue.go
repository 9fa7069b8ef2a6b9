// Package queue moves background work through Redis lists.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService enqueues one message for the job registered under msgType.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Job handles every message of one type.
type Job interface {
	Name() string
	Type() string
	// Handle receives the payload as json.RawMessage.
	Handle(ctx context.Context, payload interface{}) error
}

type QueueConfig struct {
	Workers    int
	RetryLimit int
	// RetryDelay is the first backoff; each further attempt doubles it.
	RetryDelay time.Duration
	// DeadLetterCap bounds the dead-letter list.
	DeadLetterCap int64
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
	LastError string          `json:"last_error,omitempty"`
}

// ParsePayload decodes a job payload into T. Values already of type T pass
// through untouched.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		return decodePayload[T](p)
	case []byte:
		return decodePayload[T](p)
	case nil:
		return nil, fmt.Errorf("empty payload")
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("re-encode payload %T: %w", payload, err)
		}
		return decodePayload[T](raw)
	}
}

func decodePayload[T any](raw []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService enqueues messages for asynchronous processing.
type QueueService interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// QueueConfig contains the configuration for the queue.
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // time delay between retries
	JobTimeout time.Duration // upper bound for one Handle call; zero means none
	// Retryable decides whether a failed message is retried; nil retries every error.
	Retryable func(error) bool
}

// Message represents a message in the queue.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
	LastError string          `json:"last_error,omitempty"`
}

type attemptKey struct{}

type attempt struct {
	n     int
	final bool
}

// WithAttempt records the delivery attempt of the message being handled.
func WithAttempt(ctx context.Context, n int, final bool) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt{n: n, final: final})
}

// LastAttempt reports whether a failure of the current delivery is final,
// that is no retry will follow. Outside of the queue it is always true.
func LastAttempt(ctx context.Context) bool {
	a, ok := ctx.Value(attemptKey{}).(attempt)
	return !ok || a.final
}

// AttemptFromContext returns the 1-based delivery attempt, or 0 outside of
// the queue.
func AttemptFromContext(ctx context.Context) int {
	a, _ := ctx.Value(attemptKey{}).(attempt)
	return a.n
}

// ParsePayload decodes a message payload into T.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	var result T
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &result, nil
}

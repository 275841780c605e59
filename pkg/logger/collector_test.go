package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
	err     error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return p.err
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	fields := map[string]interface{}{"variant": "constant"}
	c.AddLog("error", "estimation failed", fields, "usecase/estimator.go:10")
	c.AddLog("error", "estimation failed", fields, "usecase/estimator.go:10")
	c.AddLog("warn", "cache miss", nil, "usecase/estimator.go:20")
	c.Close()

	require.Len(t, pub.batches, 1)
	assert.Equal(t, []string{"logs"}, pub.topics)
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, map[string]int{"estimation failed": 2, "cache miss": 1}, counts)
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	var failures int
	var mu sync.Mutex
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Publisher:      pub,
		OnPublishError: func(error) { mu.Lock(); failures++; mu.Unlock() },
	})
	c.AddLog("error", "a", nil, "x:1")
	c.AddLog("error", "b", nil, "x:2")
	c.Close()

	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)
	assert.Equal(t, 1, failures)
}

func TestLoggerWithCollector(t *testing.T) {
	pub := &recordingPublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})
	child := l.With(String("component", "test"))

	child.Error("boom", Error(errors.New("x")), Float64("rho", -0.5))
	child.Info("ignored")
	l.RemoveCollector()

	require.Len(t, pub.batches, 1)
	entry := pub.batches[0][0]
	assert.Equal(t, "boom", entry.Message)
	assert.Equal(t, "x", entry.Fields["error"])
	assert.Equal(t, -0.5, entry.Fields["rho"])
}

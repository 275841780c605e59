package repository

import (
	"context"
	"fmt"
	"time"

	"TarLab/internal/domain/models"
	"TarLab/internal/domain/repository"

	"github.com/sony/gobreaker"
)

// messageProducer is the subset of pkg/kafka.Producer used here.
type messageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaResultPublisher publishes result events keyed by run id, so all
// events for one run land on the same partition.
type KafkaResultPublisher struct {
	producer messageProducer
	topic    string
	cb       *gobreaker.CircuitBreaker
	metrics  repository.Metrics
}

func NewKafkaResultPublisher(producer messageProducer, topic string, metrics repository.Metrics) *KafkaResultPublisher {
	return &KafkaResultPublisher{
		producer: producer,
		topic:    topic,
		cb:       NewBreaker("kafka-results"),
		metrics:  metrics,
	}
}

func (p *KafkaResultPublisher) PublishResult(ctx context.Context, ev *models.ResultEvent) error {
	key := ev.RunID
	if key == "" {
		key = ev.JobID
	}
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.producer.Publish(ctx, p.topic, []byte(key), ev)
	})
	if err != nil {
		p.metrics.RecordError("publish_result")
		return fmt.Errorf("publish result: %w", err)
	}
	p.metrics.RecordMessageSent(p.topic)
	return nil
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NewBreaker opens after 3 consecutive failures, or when more than 5% of at
// least 20 calls in a minute failed, and half-opens after 30s.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	})
}

// BreakerRunStore guards writes to a remote RunStore with a circuit breaker
// so an unavailable database fails fast instead of stalling every request.
type BreakerRunStore struct {
	repository.RunStore
	cb *gobreaker.CircuitBreaker
}

func NewBreakerRunStore(inner repository.RunStore, name string) *BreakerRunStore {
	return &BreakerRunStore{RunStore: inner, cb: NewBreaker(name)}
}

func (s *BreakerRunStore) SaveRun(ctx context.Context, run *models.Run, points []models.RSSPoint) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.RunStore.SaveRun(ctx, run, points)
	})
	return err
}

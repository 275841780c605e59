package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TarLab/internal/domain/models"
	drepo "TarLab/internal/domain/repository"
	jobmetrics "TarLab/internal/service/metrics"
	pkgkafka "TarLab/pkg/kafka"
)

// KafkaJobsHandler consumes estimation jobs from the jobs topic.
type KafkaJobsHandler struct {
	topic   string
	est     *EstimationUseCase
	metrics drepo.Metrics
}

func NewKafkaJobsHandler(topic string, est *EstimationUseCase, metrics drepo.Metrics) *KafkaJobsHandler {
	return &KafkaJobsHandler{topic: topic, est: est, metrics: metrics}
}

func (h *KafkaJobsHandler) Topic() string { return h.topic }

// Handle runs one job. Malformed payloads and input errors are marked
// permanent so the consumer dead-letters them without retrying.
func (h *KafkaJobsHandler) Handle(ctx context.Context, b []byte) error {
	var job models.EstimationJob
	if err := json.Unmarshal(b, &job); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		jobmetrics.JobErrors.WithLabelValues("kafka", "decode").Inc()
		return pkgkafka.Permanent(fmt.Errorf("%w: %v", ErrInvalidJob, err))
	}
	if err := DecodeJob(ctx, &job); err != nil {
		jobmetrics.JobErrors.WithLabelValues("kafka", "invalid").Inc()
		return pkgkafka.Permanent(err)
	}
	if job.ID == "" {
		job.ID = pkgkafka.TraceIDFromContext(ctx)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	start := time.Now()
	_, err := h.est.RunJob(ctx, &job, pkgkafka.LastAttempt(ctx))
	jobmetrics.JobLatency.WithLabelValues("kafka", string(job.Variant)).Observe(time.Since(start).Seconds())
	if err != nil {
		jobmetrics.JobErrors.WithLabelValues("kafka", outcome(err)).Inc()
		if IsPermanent(err) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	return nil
}

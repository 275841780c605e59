package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TarLab/internal/domain/models"
	jobmetrics "TarLab/internal/service/metrics"
	"TarLab/pkg/queue"
)

// EstimateJob handles "estimate" messages from the Redis queue.
type EstimateJob struct {
	est *EstimationUseCase
}

func NewEstimateJob(est *EstimationUseCase) *EstimateJob {
	return &EstimateJob{est: est}
}

func (j *EstimateJob) Name() string { return "tar-estimate" }

func (j *EstimateJob) Type() string { return JobTypeEstimate }

func (j *EstimateJob) Handle(ctx context.Context, msgID string, payload json.RawMessage) error {
	job, err := queue.ParsePayload[models.EstimationJob](payload)
	if err != nil {
		jobmetrics.JobErrors.WithLabelValues("queue", "decode").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if err := DecodeJob(ctx, job); err != nil {
		jobmetrics.JobErrors.WithLabelValues("queue", "invalid").Inc()
		return err
	}
	if job.ID == "" {
		job.ID = msgID
	}

	start := time.Now()
	_, err = j.est.RunJob(ctx, job, queue.LastAttempt(ctx))
	jobmetrics.JobLatency.WithLabelValues("queue", string(job.Variant)).Observe(time.Since(start).Seconds())
	if err != nil {
		jobmetrics.JobErrors.WithLabelValues("queue", outcome(err)).Inc()
	}
	return err
}

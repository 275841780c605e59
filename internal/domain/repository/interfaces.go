package repository

import (
	"context"
	"errors"
	"time"

	"TarLab/internal/domain/models"
)

// ErrRunNotFound is returned by RunStore lookups for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// RunStore persists estimation runs and their RSS diagnostics.
type RunStore interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run *models.Run, points []models.RSSPoint) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	Points(ctx context.Context, id string) ([]models.RSSPoint, error)
	ListRuns(ctx context.Context, since time.Time, limit int) ([]*models.Run, error)
	Health(ctx context.Context) error
	Close() error
}

// JobStateStore tracks asynchronous jobs until their result expires.
type JobStateStore interface {
	SetJobState(ctx context.Context, st *models.JobState) error
	GetJobState(ctx context.Context, id string) (*models.JobState, error)
}

// ResultPublisher announces finished estimations.
type ResultPublisher interface {
	PublishResult(ctx context.Context, ev *models.ResultEvent) error
	Close() error
}

type Metrics interface {
	RecordEstimation(variant, outcome string, seconds float64, candidates, evaluations int)
	RecordCacheLookup(hit bool)
	RecordMessageSent(topic string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

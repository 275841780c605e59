package models

import "time"

// SimulateRequest parameterises a synthetic series. Pointer fields keep an
// explicit zero distinct from "use the default".
type SimulateRequest struct {
	Seed          uint64   `json:"seed" default:"1"`
	N             int      `json:"n" default:"5001" validate:"gte=3,lte=200000"`
	Noise         float64  `json:"noise" default:"8" validate:"gt=0"`
	Rho           *float64 `json:"rho" default:"-0.5" validate:"gt=-2,lte=0"`
	Threshold     *float64 `json:"threshold" default:"10" validate:"gte=0"`
	// ThresholdLast, when set (0 included), moves the threshold linearly to it.
	ThresholdLast *float64 `json:"threshold_last,omitempty" validate:"omitempty,gte=0"`
	Start         float64  `json:"start"`
	// Estimate, when set, runs that search on the generated series.
	Estimate       Variant `json:"estimate,omitempty" validate:"omitempty,oneof=constant timevarying"`
	MaxCandidates  int     `json:"max_candidates" validate:"gte=0"`
	MinRegimeShare float64 `json:"min_regime_share,omitempty" validate:"omitempty,gt=0,lte=0.5"`
}

// SimulateResponse returns the generated levels and an optional estimate.
type SimulateResponse struct {
	Seed          uint64               `json:"seed"`
	Rho           float64              `json:"rho"`
	Threshold     float64              `json:"threshold"`
	ThresholdLast *float64             `json:"threshold_last,omitempty"`
	Levels        []float64            `json:"levels"`
	Constant      *ConstantEstimate    `json:"constant,omitempty"`
	TimeVarying   *TimeVaryingEstimate `json:"timevarying,omitempty"`
}

// EstimationJob is the payload of asynchronous estimations, from the Redis
// queue or the jobs topic.
type EstimationJob struct {
	ID      string          `json:"id,omitempty"`
	Variant Variant         `json:"variant" validate:"required,oneof=constant timevarying"`
	Request EstimateRequest `json:"request"`
}

// JobStatus is the lifecycle state of an asynchronous estimation.
type JobStatus string

const (
	JobQueued JobStatus = "queued"
	// JobRetrying marks a transient failure that will be delivered again.
	JobRetrying JobStatus = "retrying"
	JobDone   JobStatus = "done"
	JobFailed JobStatus = "failed"
)

// ResultEvent is published once per finished job or estimation. Attempts
// that will be retried are not published.
type ResultEvent struct {
	JobID       string               `json:"job_id,omitempty"`
	RunID       string               `json:"run_id,omitempty"`
	Variant     Variant              `json:"variant"`
	Status      JobStatus            `json:"status"`
	Error       string               `json:"error,omitempty"`
	Constant    *ConstantEstimate    `json:"constant,omitempty"`
	TimeVarying *TimeVaryingEstimate `json:"timevarying,omitempty"`
	FinishedAt  time.Time            `json:"finished_at"`
}

// JobState is what GET /api/tar/jobs/:id reports.
type JobState struct {
	ID     string       `json:"id"`
	Status JobStatus    `json:"status"`
	Error  string       `json:"error,omitempty"`
	Result *ResultEvent `json:"result,omitempty"`
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"TarLab/internal/domain/models"
	drepo "TarLab/internal/domain/repository"
	"TarLab/internal/services/simulate"
	"TarLab/internal/services/tar"
	apphttp "TarLab/pkg/http"
	"TarLab/pkg/logger"
)

// SubmitJob records the job as queued and pushes it to the Redis queue.
func (u *EstimationUseCase) SubmitJob(ctx context.Context, job *models.EstimationJob) (*models.JobState, error) {
	if u.queue == nil {
		return nil, ErrQueueDisabled
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	st := &models.JobState{ID: job.ID, Status: models.JobQueued}
	if err := u.setJobState(ctx, st); err != nil {
		return nil, err
	}
	if _, err := u.queue.Enqueue(ctx, JobTypeEstimate, job); err != nil {
		u.metrics.RecordError("enqueue")
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return st, nil
}

// GetJob returns the state of an asynchronous job.
func (u *EstimationUseCase) GetJob(ctx context.Context, id string) (*models.JobState, error) {
	if u.jobs == nil {
		return nil, ErrJobNotFound
	}
	st, err := u.jobs.GetJobState(ctx, id)
	if errors.Is(err, drepo.ErrRunNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return st, err
}

// DecodeJob validates a job payload and fills request defaults.
func DecodeJob(ctx context.Context, job *models.EstimationJob) error {
	if errs := apphttp.ValidateStruct(ctx, job); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%w: %s", ErrInvalidJob, strings.Join(msgs, "; "))
	}
	return nil
}

// RunJob executes one asynchronous estimation, stores its state and
// publishes the result event. A transient failure with final unset only
// marks the job as retrying: the caller delivers it again and nothing is
// published. The returned error tells the caller whether a retry makes
// sense, see IsPermanent.
func (u *EstimationUseCase) RunJob(ctx context.Context, job *models.EstimationJob, final bool) (*models.ResultEvent, error) {
	ev := &models.ResultEvent{JobID: job.ID, Variant: job.Variant, Status: models.JobDone}

	var err error
	switch job.Variant {
	case models.VariantConstant:
		ev.Constant, _, err = u.constant(ctx, &job.Request)
		if ev.Constant != nil {
			ev.RunID = ev.Constant.RunID
		}
	case models.VariantTimeVarying:
		ev.TimeVarying, _, err = u.timeVarying(ctx, &job.Request, nil)
		if ev.TimeVarying != nil {
			ev.RunID = ev.TimeVarying.RunID
		}
	default:
		err = fmt.Errorf("%w: unknown variant %q", ErrInvalidJob, job.Variant)
	}

	// State writes outlive a cancelled job context.
	sctx := context.WithoutCancel(ctx)
	if err != nil && !final && !IsPermanent(err) {
		ev.Status = models.JobRetrying
		ev.Error = err.Error()
		st := &models.JobState{ID: job.ID, Status: models.JobRetrying, Error: ev.Error}
		if serr := u.setJobState(sctx, st); serr != nil {
			u.log.Warn("failed to store job state", logger.String("job_id", job.ID), logger.Error(serr))
		}
		return ev, err
	}

	if err != nil {
		ev.Status = models.JobFailed
		ev.Error = err.Error()
	}
	ev.FinishedAt = time.Now().UTC()

	st := &models.JobState{ID: job.ID, Status: ev.Status, Error: ev.Error, Result: ev}
	if serr := u.setJobState(sctx, st); serr != nil {
		u.log.Warn("failed to store job state", logger.String("job_id", job.ID), logger.Error(serr))
	}
	u.publish(sctx, ev)
	return ev, err
}

func (u *EstimationUseCase) setJobState(ctx context.Context, st *models.JobState) error {
	if u.jobs == nil {
		return nil
	}
	if err := u.jobs.SetJobState(ctx, st); err != nil {
		return fmt.Errorf("set job state: %w", err)
	}
	return nil
}

// IsPermanent reports whether err comes from the input rather than the
// environment, so retrying the same job cannot succeed.
func IsPermanent(err error) bool {
	for _, target := range []error{
		tar.ErrInsufficientData,
		tar.ErrInvalidSeries,
		tar.ErrNoAdmissibleThreshold,
		tar.ErrDegenerateRegression,
		tar.ErrInvalidOptions,
		simulate.ErrInvalidConfig,
		ErrSeriesTooLong,
		ErrInvalidJob,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// MapEstimationError translates service errors into HTTP errors.
func MapEstimationError(err error) *apphttp.AppError {
	var appErr *apphttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, tar.ErrInsufficientData):
		return apphttp.UnprocessableError("ERR_INSUFFICIENT_DATA", err.Error()).WithError(err)
	case errors.Is(err, tar.ErrInvalidSeries):
		return apphttp.UnprocessableError("ERR_INVALID_SERIES", err.Error()).WithError(err)
	case errors.Is(err, tar.ErrNoAdmissibleThreshold):
		return apphttp.UnprocessableError("ERR_NO_ADMISSIBLE_THRESHOLD", err.Error()).WithError(err)
	case errors.Is(err, tar.ErrDegenerateRegression):
		return apphttp.UnprocessableError("ERR_DEGENERATE_REGRESSION", err.Error()).WithError(err)
	case errors.Is(err, tar.ErrInvalidOptions), errors.Is(err, simulate.ErrInvalidConfig), errors.Is(err, ErrInvalidJob):
		return apphttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, ErrSeriesTooLong):
		return apphttp.NewAppError("ERR_SERIES_TOO_LONG", "levels", err.Error(), 413).WithError(err)
	case errors.Is(err, drepo.ErrRunNotFound), errors.Is(err, ErrJobNotFound):
		return apphttp.NotFoundErrorf("%s", err.Error()).WithError(err)
	case errors.Is(err, ErrQueueDisabled):
		return apphttp.UnavailableError(err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apphttp.TimeoutError("estimation timed out").WithError(err)
	default:
		return apphttp.InternalError("estimation failed").WithError(err)
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TarLab/internal/domain/models"
	drepo "TarLab/internal/domain/repository"
	"TarLab/internal/services/simulate"
	"TarLab/internal/services/tar"
	"TarLab/pkg/cache"
	"TarLab/pkg/logger"
	"TarLab/pkg/queue"
)

// JobTypeEstimate is the queue message type of asynchronous estimations.
const JobTypeEstimate = "estimate"

var (
	// ErrSeriesTooLong rejects series above the configured maximum length.
	ErrSeriesTooLong = errors.New("series too long")
	// ErrInvalidJob rejects malformed job payloads.
	ErrInvalidJob = errors.New("invalid job")
	// ErrJobNotFound is returned for unknown or expired job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueDisabled is returned by SubmitJob when no queue is configured.
	ErrQueueDisabled = errors.New("job queue disabled")
)

// EstimatorConfig holds the service-level estimation limits and defaults.
type EstimatorConfig struct {
	Workers           int
	MinRegimeShare    float64
	MaxCandidates     int
	MaxPairCandidates int
	MaxSeriesLength   int
	Timeout           time.Duration
	CacheTTL          time.Duration
	Simulation        simulate.Config
}

// EstimationUseCase runs threshold searches and keeps track of their runs.
type EstimationUseCase struct {
	cfg     EstimatorConfig
	runs    drepo.RunStore
	jobs    drepo.JobStateStore
	pub     drepo.ResultPublisher
	queue   queue.QueueService
	cache   cache.Service
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewEstimationUseCase wires the estimation service. pub, q and c may be nil.
func NewEstimationUseCase(
	cfg EstimatorConfig,
	runs drepo.RunStore,
	jobs drepo.JobStateStore,
	pub drepo.ResultPublisher,
	q queue.QueueService,
	c cache.Service,
	metrics drepo.Metrics,
	log *logger.Logger,
) *EstimationUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &EstimationUseCase{
		cfg:     cfg,
		runs:    runs,
		jobs:    jobs,
		pub:     pub,
		queue:   q,
		cache:   c,
		metrics: metrics,
		log:     log,
	}
}

// EstimateConstant runs the constant threshold search on the request series.
func (u *EstimationUseCase) EstimateConstant(ctx context.Context, req *models.EstimateRequest) (*models.ConstantEstimate, error) {
	est, hit, err := u.constant(ctx, req)
	if err != nil {
		return nil, err
	}
	if !hit {
		u.publish(ctx, &models.ResultEvent{RunID: est.RunID, Variant: models.VariantConstant, Status: models.JobDone, Constant: est})
	}
	return est, nil
}

// EstimateTimeVarying runs the pair search. progress, when set, receives
// the running count of fitted regressions.
func (u *EstimationUseCase) EstimateTimeVarying(ctx context.Context, req *models.EstimateRequest, progress func(models.Progress)) (*models.TimeVaryingEstimate, error) {
	est, hit, err := u.timeVarying(ctx, req, progress)
	if err != nil {
		return nil, err
	}
	if !hit {
		u.publish(ctx, &models.ResultEvent{RunID: est.RunID, Variant: models.VariantTimeVarying, Status: models.JobDone, TimeVarying: est})
	}
	return est, nil
}

func (u *EstimationUseCase) constant(ctx context.Context, req *models.EstimateRequest) (*models.ConstantEstimate, bool, error) {
	s, opts, key, err := u.prepare(models.VariantConstant, req)
	if err != nil {
		return nil, false, err
	}
	est, hit, err := cache.Fetch(ctx, u.cache, key, u.cfg.CacheTTL, func(ctx context.Context) (*models.ConstantEstimate, error) {
		return u.runConstant(ctx, s, opts, req.Label)
	})
	u.metrics.RecordCacheLookup(hit)
	if err != nil {
		return nil, false, err
	}
	out := *est
	out.Cached = hit
	if req.OmitDiagnostics {
		out.RSSCurve = nil
	}
	return &out, hit, nil
}

func (u *EstimationUseCase) timeVarying(ctx context.Context, req *models.EstimateRequest, progress func(models.Progress)) (*models.TimeVaryingEstimate, bool, error) {
	s, opts, key, err := u.prepare(models.VariantTimeVarying, req)
	if err != nil {
		return nil, false, err
	}
	if progress != nil {
		opts.Progress = func(done, total int) { progress(models.Progress{Done: done, Total: total}) }
	}
	est, hit, err := cache.Fetch(ctx, u.cache, key, u.cfg.CacheTTL, func(ctx context.Context) (*models.TimeVaryingEstimate, error) {
		return u.runTimeVarying(ctx, s, opts, req.Label)
	})
	u.metrics.RecordCacheLookup(hit)
	if err != nil {
		return nil, false, err
	}
	out := *est
	out.Cached = hit
	if req.OmitDiagnostics {
		out.RSSSurface = nil
	}
	return &out, hit, nil
}

// prepare builds the series and resolves the search options against the
// service limits. The cache key depends on the differenced series only, so
// levels with different origins share one entry.
func (u *EstimationUseCase) prepare(variant models.Variant, req *models.EstimateRequest) (*tar.Series, tar.Options, string, error) {
	if req == nil {
		return nil, tar.Options{}, "", fmt.Errorf("%w: empty request", tar.ErrInsufficientData)
	}
	if n := req.SeriesLen(); u.cfg.MaxSeriesLength > 0 && n > u.cfg.MaxSeriesLength {
		return nil, tar.Options{}, "", fmt.Errorf("%w: %d observations, limit %d", ErrSeriesTooLong, n, u.cfg.MaxSeriesLength)
	}

	var (
		s   *tar.Series
		err error
	)
	if len(req.Levels) > 0 {
		s, err = tar.Difference(req.Levels)
	} else {
		s, err = tar.FromDifferences(req.Differences)
	}
	if err != nil {
		return nil, tar.Options{}, "", err
	}

	opts := tar.Options{
		MinRegimeShare: req.MinRegimeShare,
		Workers:        req.Workers,
		MaxCandidates:  req.MaxCandidates,
	}
	if opts.MinRegimeShare == 0 {
		opts.MinRegimeShare = u.cfg.MinRegimeShare
	}
	if opts.Workers == 0 {
		opts.Workers = u.cfg.Workers
	}
	limit := u.cfg.MaxCandidates
	if variant == models.VariantTimeVarying {
		limit = u.cfg.MaxPairCandidates
	}
	if limit > 0 && (opts.MaxCandidates == 0 || opts.MaxCandidates > limit) {
		opts.MaxCandidates = limit
	}

	key := cache.GenerateKeyWithParams("tar:"+string(variant),
		cache.HashFloats(s.Differences()), opts.MinRegimeShare, opts.MaxCandidates)
	return s, opts, key, nil
}

func (u *EstimationUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, u.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (u *EstimationUseCase) runConstant(ctx context.Context, s *tar.Series, opts tar.Options, label string) (*models.ConstantEstimate, error) {
	sctx, cancel := u.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := tar.EstimateConstant(sctx, s, opts)
	elapsed := time.Since(start)
	hl, err := halflife(err)
	if err != nil {
		u.metrics.RecordEstimation(string(models.VariantConstant), outcome(err), elapsed.Seconds(), 0, 0)
		return nil, err
	}
	if hl.Error == "" {
		hl.Value = models.FloatPtr(res.Halflife)
	}

	est := &models.ConstantEstimate{
		RunID:      uuid.NewString(),
		Threshold:  res.Threshold,
		Ties:       res.Ties,
		RhoHat:     res.Fit.Rho,
		Intercept:  res.Fit.Intercept,
		MinRSS:     res.MinRSS,
		Halflife:   hl,
		Rows:       res.Rows,
		Candidates: len(res.Curve),
		RSSCurve:   make([]models.CurvePoint, len(res.Curve)),
		ElapsedMS:  elapsed.Milliseconds(),
	}
	points := make([]models.RSSPoint, len(res.Curve))
	for i, p := range res.Curve {
		rss := models.FloatPtr(p.RSS)
		est.RSSCurve[i] = models.CurvePoint{Threshold: p.Threshold, RSS: rss}
		points[i] = models.RSSPoint{RunID: est.RunID, First: p.Threshold, Last: p.Threshold, RSS: rss}
	}
	u.metrics.RecordEstimation(string(models.VariantConstant), "ok", elapsed.Seconds(), len(res.Curve), len(res.Curve))

	u.save(ctx, &models.Run{
		ID:            est.RunID,
		Variant:       models.VariantConstant,
		Label:         label,
		SeriesHash:    cache.HashFloats(s.Differences()),
		Observations:  s.Len(),
		Rows:          res.Rows,
		Candidates:    len(res.Curve),
		ThetaFirst:    res.Threshold,
		ThetaLast:     res.Threshold,
		RhoHat:        res.Fit.Rho,
		Intercept:     res.Fit.Intercept,
		MinRSS:        res.MinRSS,
		Halflife:      hl.Value,
		HalflifeError: hl.Error,
		Ties:          len(res.Ties),
		ElapsedMS:     est.ElapsedMS,
	}, points)
	return est, nil
}

func (u *EstimationUseCase) runTimeVarying(ctx context.Context, s *tar.Series, opts tar.Options, label string) (*models.TimeVaryingEstimate, error) {
	sctx, cancel := u.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := tar.EstimateTimeVarying(sctx, s, opts)
	elapsed := time.Since(start)
	hl, err := halflife(err)
	if err != nil {
		u.metrics.RecordEstimation(string(models.VariantTimeVarying), outcome(err), elapsed.Seconds(), 0, 0)
		return nil, err
	}
	if hl.Error == "" {
		hl.Value = models.FloatPtr(res.Halflife)
	}

	est := &models.TimeVaryingEstimate{
		RunID:      uuid.NewString(),
		ThetaFirst: res.ThetaFirst,
		ThetaLast:  res.ThetaLast,
		Ties:       make([]models.Trajectory, len(res.Ties)),
		RhoHat:     res.Fit.Rho,
		Intercept:  res.Fit.Intercept,
		MinRSS:     res.MinRSS,
		Halflife:   hl,
		Rows:       res.Rows,
		Candidates: len(res.Candidates),
		RSSSurface: make([]models.SurfacePoint, len(res.Surface)),
		ElapsedMS:  elapsed.Milliseconds(),
	}
	for i, tr := range res.Ties {
		est.Ties[i] = models.Trajectory{First: tr.First, Last: tr.Last}
	}
	points := make([]models.RSSPoint, len(res.Surface))
	for i, p := range res.Surface {
		rss := models.FloatPtr(p.RSS)
		est.RSSSurface[i] = models.SurfacePoint{First: p.First, Last: p.Last, RSS: rss}
		points[i] = models.RSSPoint{RunID: est.RunID, First: p.First, Last: p.Last, RSS: rss}
	}
	u.metrics.RecordEstimation(string(models.VariantTimeVarying), "ok", elapsed.Seconds(), len(res.Candidates), len(res.Surface))

	u.save(ctx, &models.Run{
		ID:            est.RunID,
		Variant:       models.VariantTimeVarying,
		Label:         label,
		SeriesHash:    cache.HashFloats(s.Differences()),
		Observations:  s.Len(),
		Rows:          res.Rows,
		Candidates:    len(res.Candidates),
		ThetaFirst:    res.ThetaFirst,
		ThetaLast:     res.ThetaLast,
		RhoHat:        res.Fit.Rho,
		Intercept:     res.Fit.Intercept,
		MinRSS:        res.MinRSS,
		Halflife:      hl.Value,
		HalflifeError: hl.Error,
		Ties:          len(res.Ties),
		ElapsedMS:     est.ElapsedMS,
	}, points)
	return est, nil
}

// halflife separates an undefined halflife, which still comes with a usable
// result, from real search failures.
func halflife(err error) (models.Halflife, error) {
	switch {
	case errors.Is(err, tar.ErrUndefinedHalflife):
		return models.Halflife{Error: err.Error()}, nil
	case err != nil:
		return models.Halflife{}, err
	}
	return models.Halflife{}, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case IsPermanent(err):
		return "rejected"
	default:
		return "error"
	}
}

// save persists a run. Failures are logged and counted; the estimate is
// still returned to the caller.
func (u *EstimationUseCase) save(ctx context.Context, run *models.Run, points []models.RSSPoint) {
	if u.runs == nil {
		return
	}
	run.CreatedAt = time.Now().UTC()
	start := time.Now()
	err := u.runs.SaveRun(ctx, run, points)
	u.metrics.RecordLatency("save_run", time.Since(start).Seconds())
	if err != nil {
		u.metrics.RecordError("save_run")
		u.log.Warn("failed to save run",
			logger.String("run_id", run.ID),
			logger.Int("points", len(points)),
			logger.Error(err))
	}
}

func (u *EstimationUseCase) publish(ctx context.Context, ev *models.ResultEvent) {
	if u.pub == nil {
		return
	}
	if ev.FinishedAt.IsZero() {
		ev.FinishedAt = time.Now().UTC()
	}
	if err := u.pub.PublishResult(ctx, ev); err != nil {
		u.log.Warn("failed to publish result",
			logger.String("run_id", ev.RunID),
			logger.String("job_id", ev.JobID),
			logger.Error(err))
	}
}

// Simulate generates a series from req, filling unset fields from the
// configured simulation defaults, and optionally estimates it.
func (u *EstimationUseCase) Simulate(ctx context.Context, req *models.SimulateRequest) (*models.SimulateResponse, error) {
	cfg := u.cfg.Simulation
	cfg.Seed = req.Seed
	if req.N > 0 {
		cfg.N = req.N
	}
	if req.Noise > 0 {
		cfg.Noise = req.Noise
	}
	if req.Rho != nil {
		cfg.Rho = *req.Rho
	}
	if req.Threshold != nil {
		cfg.Threshold = *req.Threshold
	}
	cfg.ThresholdLast = req.ThresholdLast
	cfg.Start = req.Start

	levels, err := simulate.Generate(cfg)
	if err != nil {
		return nil, err
	}
	resp := &models.SimulateResponse{
		Seed:          cfg.Seed,
		Rho:           cfg.Rho,
		Threshold:     cfg.Threshold,
		ThresholdLast: cfg.ThresholdLast,
		Levels:        levels,
	}

	est := &models.EstimateRequest{
		Levels:          levels,
		MinRegimeShare:  req.MinRegimeShare,
		MaxCandidates:   req.MaxCandidates,
		OmitDiagnostics: true,
		Label:           fmt.Sprintf("simulate seed=%d", cfg.Seed),
	}
	switch req.Estimate {
	case models.VariantConstant:
		resp.Constant, err = u.EstimateConstant(ctx, est)
	case models.VariantTimeVarying:
		resp.TimeVarying, err = u.EstimateTimeVarying(ctx, est, nil)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetRun returns a stored run with its RSS points.
func (u *EstimationUseCase) GetRun(ctx context.Context, id string) (*models.RunDetail, error) {
	run, err := u.runs.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	points, err := u.runs.Points(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run points: %w", err)
	}
	return &models.RunDetail{Run: run, Points: points}, nil
}

// ListRuns returns up to limit runs created after since, newest first.
func (u *EstimationUseCase) ListRuns(ctx context.Context, since time.Time, limit int) ([]*models.Run, error) {
	return u.runs.ListRuns(ctx, since, limit)
}

package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"TarLab/internal/domain/models"
	"TarLab/internal/service/ratelimit"
	"TarLab/internal/usecase"
	xhttp "TarLab/pkg/http"
	xlogger "TarLab/pkg/logger"
)

const maxListLimit = 500

// TarHandler serves the threshold estimation API.
type TarHandler struct {
	logger  *xlogger.Logger
	est     *usecase.EstimationUseCase
	limiter *ratelimit.Limiter
}

// NewTarHandler creates the handler. A nil limiter disables rate limiting.
func NewTarHandler(logger *xlogger.Logger, est *usecase.EstimationUseCase, limiter *ratelimit.Limiter) *TarHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &TarHandler{logger: logger, est: est, limiter: limiter}
}

func (h *TarHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/tar")
	g.POST("/constant", h.Constant)
	g.POST("/timevarying", h.TimeVarying)
	g.POST("/simulate", h.Simulate)
	g.GET("/runs", h.ListRuns)
	g.GET("/runs/:id", h.GetRun)
	g.POST("/jobs", h.SubmitJob)
	g.GET("/jobs/:id", h.GetJob)
	g.GET("/stream", h.Stream)
}

func (h *TarHandler) Constant(c echo.Context) error {
	req := &models.EstimateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.est.EstimateConstant(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "constant", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// TimeVarying runs the pair search. max_candidates is capped by
// estimator.max_pair_candidates, 0 included, so a long series is searched
// over at most that many thresholds per endpoint; the response's
// candidates field reports how many were used.
func (h *TarHandler) TimeVarying(c echo.Context) error {
	if ok, wait := h.allow(c); !ok {
		return h.rateLimited(c, wait)
	}
	req := &models.EstimateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.est.EstimateTimeVarying(c.Request().Context(), req, nil)
	if err != nil {
		return h.fail(c, "timevarying", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *TarHandler) Simulate(c echo.Context) error {
	req := &models.SimulateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Estimate == models.VariantTimeVarying {
		if ok, wait := h.allow(c); !ok {
			return h.rateLimited(c, wait)
		}
	}
	res, err := h.est.Simulate(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "simulate", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *TarHandler) ListRuns(c echo.Context) error {
	since := xhttp.QueryTime(c, "since", time.Now().Add(-7*24*time.Hour))
	limit := xhttp.QueryInt(c, "limit", 50)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	runs, err := h.est.ListRuns(c.Request().Context(), since, limit)
	if err != nil {
		return h.fail(c, "list runs", err)
	}
	return xhttp.ListResponse(c, runs, int64(len(runs)))
}

func (h *TarHandler) GetRun(c echo.Context) error {
	res, err := h.est.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get run", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, res)
}

func (h *TarHandler) SubmitJob(c echo.Context) error {
	req := &models.EstimationJob{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	st, err := h.est.SubmitJob(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "submit job", err)
	}
	return xhttp.AcceptedResponse(c, st)
}

func (h *TarHandler) GetJob(c echo.Context) error {
	st, err := h.est.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get job", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *TarHandler) allow(c echo.Context) (bool, time.Duration) {
	if h.limiter == nil {
		return true, 0
	}
	return h.limiter.Reserve(c.RealIP())
}

func (h *TarHandler) rateLimited(c echo.Context, wait time.Duration) error {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many time-varying searches, retry later").
		WithParam("retry_after", secs))
}

func (h *TarHandler) fail(c echo.Context, op string, err error) error {
	appErr := usecase.MapEstimationError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.String("code", appErr.Code), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TarLab/internal/domain/models"
	"TarLab/internal/repository"
	"TarLab/internal/service/ratelimit"
	"TarLab/internal/services/simulate"
	"TarLab/internal/usecase"
	"TarLab/pkg/cache"
)

type nopMetrics struct{}

func (nopMetrics) RecordEstimation(string, string, float64, int, int) {}
func (nopMetrics) RecordCacheLookup(bool)                             {}
func (nopMetrics) RecordMessageSent(string)                           {}
func (nopMetrics) RecordError(string)                                 {}
func (nopMetrics) RecordLatency(string, float64)                      {}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	store := repository.NewCacheRunStore(mem, time.Hour)

	est := usecase.NewEstimationUseCase(usecase.EstimatorConfig{
		MinRegimeShare:    0.2,
		MaxCandidates:     30,
		MaxPairCandidates: 6,
		MaxSeriesLength:   5000,
		Timeout:           time.Minute,
		Simulation:        simulate.Reference(),
	}, store, store, nil, nil, nil, nopMetrics{}, nil)

	e := echo.New()
	NewTarHandler(nil, est, limiter).RegisterRoutes(e)
	return e
}

func levelsJSON(t *testing.T, n int) []float64 {
	t.Helper()
	cfg := simulate.Reference()
	cfg.N = n
	levels, err := simulate.Generate(cfg)
	require.NoError(t, err)
	return levels
}

func do(t *testing.T, e *echo.Echo, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestConstantEndpoint(t *testing.T) {
	e := newTestServer(t, nil)

	rec, env := do(t, e, http.MethodPost, "/api/tar/constant", map[string]interface{}{
		"levels": levelsJSON(t, 600),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var est models.ConstantEstimate
	require.NoError(t, json.Unmarshal(env.Data, &est))
	assert.NotEmpty(t, est.RunID)
	assert.Equal(t, 30, est.Candidates)
	assert.Len(t, est.RSSCurve, 30)

	rec, env = do(t, e, http.MethodGet, "/api/tar/runs/"+est.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.RunDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, est.RunID, detail.Run.ID)
	assert.Len(t, detail.Points, 30)

	rec, env = do(t, e, http.MethodGet, "/api/tar/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), est.RunID)
}

func TestConstantEndpointErrors(t *testing.T) {
	e := newTestServer(t, nil)

	cases := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"missing series", map[string]interface{}{}, http.StatusBadRequest, "ERR_REQUIRED_WITHOUT"},
		{"both series", map[string]interface{}{"levels": []float64{1, 2, 3}, "differences": []float64{1, 2}}, http.StatusBadRequest, "ERR_EXCLUDED_WITH"},
		{"bad share", map[string]interface{}{"levels": []float64{1, 2, 3}, "min_regime_share": 0.7}, http.StatusBadRequest, "ERR_LTE"},
		{"too short", map[string]interface{}{"levels": []float64{1, 2}}, http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		{"flat series", map[string]interface{}{"levels": []float64{1, 1, 1, 1, 1, 1}}, http.StatusUnprocessableEntity, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, e, http.MethodPost, "/api/tar/constant", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.status, env.Status)
			if tc.code != "" {
				assert.Contains(t, string(env.Data), tc.code)
			}
		})
	}

	rec, _ := do(t, e, http.MethodGet, "/api/tar/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/tar/jobs", map[string]interface{}{
		"variant": "constant",
		"request": map[string]interface{}{"levels": []float64{1, 2, 3}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no queue configured")
}

func TestTimeVaryingRateLimit(t *testing.T) {
	e := newTestServer(t, ratelimit.New(1, 0.01))
	body := map[string]interface{}{"levels": levelsJSON(t, 400), "omit_diagnostics": true}

	rec, env := do(t, e, http.MethodPost, "/api/tar/timevarying", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var est models.TimeVaryingEstimate
	require.NoError(t, json.Unmarshal(env.Data, &est))
	assert.Equal(t, 6, est.Candidates)
	assert.Nil(t, est.RSSSurface)

	rec, env = do(t, e, http.MethodPost, "/api/tar/timevarying", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, string(env.Data), "ERR_RATE_LIMITED")

	rec, _ = do(t, e, http.MethodPost, "/api/tar/constant", body)
	assert.Equal(t, http.StatusOK, rec.Code, "constant searches are not limited")
}

func TestSimulateEndpoint(t *testing.T) {
	e := newTestServer(t, nil)
	rec, env := do(t, e, http.MethodPost, "/api/tar/simulate", map[string]interface{}{
		"seed":     3,
		"n":        300,
		"estimate": "constant",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.SimulateResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Len(t, resp.Levels, 300)
	assert.Equal(t, -0.5, resp.Rho)
	require.NotNil(t, resp.Constant)

	rec, _ = do(t, e, http.MethodPost, "/api/tar/simulate", map[string]interface{}{"rho": 0.3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/tar/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(models.EstimationJob{
		Variant: models.VariantTimeVarying,
		Request: models.EstimateRequest{Levels: levelsJSON(t, 400)},
	}))

	_ = conn.SetReadDeadline(time.Now().Add(time.Minute))
	var final StreamMessage
	for {
		var msg StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "progress" {
			require.NotNil(t, msg.Progress)
			assert.LessOrEqual(t, msg.Progress.Done, msg.Progress.Total)
			continue
		}
		final = msg
		break
	}
	assert.Equal(t, "result", final.Type)
	require.NotNil(t, final.TimeVarying)
	assert.Equal(t, 6, final.TimeVarying.Candidates)
}

func TestStreamRejectsInvalidRequest(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/tar/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"variant": "cubic"}))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.NotNil(t, msg.Errors)
}

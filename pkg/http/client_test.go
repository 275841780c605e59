package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoBody struct {
	Levels []float64 `json:"levels" validate:"required,min=3"`
	Share  float64   `json:"share" default:"0.2"`
}

func testAPI() *echo.Echo {
	e := echo.New()
	e.POST("/echo", func(c echo.Context) error {
		req := &echoBody{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/missing", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundErrorf("run %s not found", "r1"))
	})
	e.GET("/limit", func(c echo.Context) error {
		return SuccessResponse(c, QueryInt(c, "limit", 50))
	})
	return e
}

func TestClientCall(t *testing.T) {
	srv := httptest.NewServer(testAPI())
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL + "/"))
	ctx := context.Background()

	var got echoBody
	err := c.Call(ctx, &RequestOptions{Method: MethodPost, URL: "/echo", Body: map[string]interface{}{"levels": []float64{1, 2, 3}}}, &got)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got.Levels)
	assert.Equal(t, 0.2, got.Share, "defaults applied")

	var limit int
	require.NoError(t, c.Call(ctx, &RequestOptions{Method: MethodGet, URL: "limit", QueryParams: map[string][]string{"limit": {"7"}}}, &limit))
	assert.Equal(t, 7, limit)

	var raw json.RawMessage
	require.NoError(t, c.Call(ctx, &RequestOptions{Method: MethodGet, URL: srv.URL + "/limit"}, &raw))
	assert.JSONEq(t, "50", string(raw))
}

func TestClientStatusErrors(t *testing.T) {
	srv := httptest.NewServer(testAPI())
	defer srv.Close()
	c := NewClient(WithBaseURL(srv.URL))
	ctx := context.Background()

	err := c.Call(ctx, &RequestOptions{Method: MethodPost, URL: "/echo", Body: `{"levels":[1]}`}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)

	var verrs []ValidationError
	require.NoError(t, json.Unmarshal(se.Body, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "levels", verrs[0].Field)
	assert.Equal(t, "ERR_MIN", verrs[0].Code)

	err = c.Call(ctx, &RequestOptions{Method: MethodGet, URL: "/missing"}, nil)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Contains(t, string(se.Body), "ERR_NOT_FOUND")
}

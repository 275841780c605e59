package http

import (
	"time"

	"github.com/labstack/echo/v4"

	xutil "TarLab/pkg/util"
)

// QueryInt reads an integer query parameter or returns def if empty/invalid.
func QueryInt(c echo.Context, name string, def int) int {
	return xutil.ParseIntDefault(c.QueryParam(name), def)
}

// QueryTime reads a time query parameter (RFC3339 or unix seconds) or returns def.
func QueryTime(c echo.Context, name string, def time.Time) time.Time {
	return xutil.ParseTimeDefault(c.QueryParam(name), def)
}

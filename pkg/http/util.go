package http

import (
	"time"

	"github.com/labstack/echo/v4"

	xutil "SignalDesk/pkg/util"
)

// QueryTime parses an optional time query param (RFC3339 or unix seconds/millis).
// ok is false when the param is present but malformed.
func QueryTime(c echo.Context, name string) (t time.Time, present, ok bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, false, true
	}
	t, ok = xutil.ParseTime(raw)
	return t, true, ok
}

package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RateLimit rejects requests with 429 when allow returns false for the client IP.
// Paths in skip (e.g. /healthz, /metrics) are never limited.
func RateLimit(allow func(key string) bool, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skipped[c.Path()]; ok {
				return next(c)
			}
			if !allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
					"data": []map[string]string{{
						"code":    "ERR_RATE_LIMITED",
						"message": "too many requests",
					}},
				})
			}
			return next(c)
		}
	}
}

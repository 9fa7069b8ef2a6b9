package api

import (
	"github.com/labstack/echo/v4"

	"FlipDesk/internal/service/ratelimit"
	xhttp "FlipDesk/pkg/http"
)

// RateLimit rejects callers over their per-IP budget. /metrics is exempt.
func RateLimit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" || l.Allow(c.RealIP()) {
				return next(c)
			}
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
		}
	}
}

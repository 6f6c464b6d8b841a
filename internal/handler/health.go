package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger is anything whose liveness the health check can probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports "ok" while the database answers a ping. A nil db skips
// the probe.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			ctx, cancel := withTimeout(c, requestTimeout)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}

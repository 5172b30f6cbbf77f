package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency the health check can probe.
type Pinger func(ctx context.Context) error

// HealthCheck reports ok when every probe answers within two seconds.
func HealthCheck(probes map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(probes))
		status, code := "healthy", http.StatusOK
		for name, ping := range probes {
			if err := ping(ctx); err != nil {
				checks[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		return c.JSON(code, echo.Map{
			"status":  status,
			"service": "quill-api",
			"checks":  checks,
		})
	}
}

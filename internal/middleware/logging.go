package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-enrichment/api/internal/logger"
)

// Logging writes a structured line for each HTTP request.
func Logging(log *logger.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			fields := []any{
				"request_id", RequestIDFromContext(c),
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"latency", latency,
			}
			if orgID, ok := OrgIDFromContext(c); ok {
				fields = append(fields, "org_id", orgID.String())
			}
			switch {
			case err != nil || c.Response().Status >= 500:
				log.Error("request failed", append(fields, "error", err)...)
			case c.Response().Status >= 400:
				log.Warn("request rejected", fields...)
			default:
				log.Info("request handled", fields...)
			}

			return err
		}
	}
}

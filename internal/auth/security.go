package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	limiterpkg "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewRateLimiter allows perMinute requests per client IP.
func NewRateLimiter(perMinute int) *limiterpkg.Limiter {
	rate := limiterpkg.Rate{
		Period: time.Minute,
		Limit:  int64(perMinute),
	}
	return limiterpkg.New(memory.NewStore(), rate)
}

func RateLimitMiddleware(l *limiterpkg.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			context, err := l.Get(c.Request().Context(), ip)
			if err != nil {
				slog.Error("Rate limiter lookup failed", "ip", ip, "error", err)
				return c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"ok": false, "error": "rate limit error",
				})
			}

			if context.Reached {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"ok": false, "error": "rate limit exceeded",
				})
			}

			return next(c)
		}
	}
}

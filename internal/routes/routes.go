package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	limiterpkg "github.com/ulule/limiter/v3"

	"reminderdispatch/internal/auth"
	"reminderdispatch/internal/handlers"
)

type Options struct {
	JWTSecret string
	Limiter   *limiterpkg.Limiter
}

func SetupRoutes(e *echo.Echo, h *handlers.ReminderHandler, opts Options) {
	// Public routes
	e.GET("/health", handlers.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Operator routes
	var mw []echo.MiddlewareFunc
	if opts.Limiter != nil {
		mw = append(mw, auth.RateLimitMiddleware(opts.Limiter))
	}
	mw = append(mw, auth.OperatorJWT(opts.JWTSecret))

	e.GET("/runReminderWindow", h.RunReminderWindow, mw...)
	e.POST("/runReminderWindow", h.RunReminderWindow, mw...)
	e.GET("/tasks/:id", h.GetTaskStatus, mw...)
	e.GET("/runs", h.ListScanRuns, mw...)
	e.GET("/runs/:id", h.GetScanRun, mw...)
}

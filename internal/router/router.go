package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing

    "github.com/iliyamo/smart-seat-booking/internal/handler"    // import the handlers that implement the booking API
    "github.com/iliyamo/smart-seat-booking/internal/middleware" // import middleware for session auth, rate limiting and caching
    "github.com/iliyamo/smart-seat-booking/internal/session"    // session store reported by the health check
)

// ChartPath is the read endpoint whose cached responses writes invalidate.
const ChartPath = "/v1/chart"

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, sessions *session.Store) {
    // Load balancers and monitoring systems poll /healthz.
    e.GET("/healthz", handler.Health(sessions))
}

// RegisterBooking registers the booking API.  Starting a session is open to
// everyone and only rate limited; every other route requires the session's
// bearer token.  Chart reads go through the response cache and every
// successful write drops the cached chart of that session.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc, cache *middleware.ResponseCache) {
    e.POST("/v1/sessions", h.CreateSession, limiter)

    g := e.Group("/v1", middleware.JWTAuth(jwtSecret), limiter)
    g.GET("/chart", h.GetChart, cache.Middleware())
    g.GET("/chart/history", h.History)
    g.POST("/chart/allocate", h.Allocate, cache.Invalidate(ChartPath))
    g.POST("/chart/reset", h.Reset, cache.Invalidate(ChartPath))
    g.DELETE("/sessions/current", h.EndSession, cache.Invalidate(ChartPath))
}

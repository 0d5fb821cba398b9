package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project

    "github.com/iliyamo/smart-seat-booking/internal/session"
)

// Health is the health-check endpoint used by load balancers and
// monitoring systems.  It answers 200 with the number of live booking
// sessions.
func Health(sessions *session.Store) echo.HandlerFunc {
    return func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"status": "ok", "sessions": sessions.Len()})
    }
}

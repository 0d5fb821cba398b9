package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/smart-seat-booking/internal/utils" // session token verification
)

// SessionKey is the context key under which JWTAuth stores the session ID.
const SessionKey = "session_id"

// JWTAuth returns an Echo middleware that validates a Bearer session token
// and stores the session ID from its subject claim in the request context.
// The provided secret must match the one used when issuing tokens.
// Handlers read the session via SessionID(c).
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            sessionID, err := utils.ParseSessionToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(SessionKey, sessionID)
            return next(c)
        }
    }
}

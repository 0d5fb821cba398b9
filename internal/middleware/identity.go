package middleware

// identity.go holds the helper shared by the rate limiter, the cache and
// the handlers for reading the authenticated session from the Echo context.

import "github.com/labstack/echo/v4"

// SessionID returns the session ID stored by JWTAuth, or "" when the request
// is not authenticated.
func SessionID(c echo.Context) string {
    if v, ok := c.Get(SessionKey).(string); ok {
        return v
    }
    return ""
}

// sessionOrAnon is SessionID with "anon" standing in for guests, for use in
// keys.
func sessionOrAnon(c echo.Context) string {
    if id := SessionID(c); id != "" {
        return id
    }
    return "anon"
}

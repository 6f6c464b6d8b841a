package middleware

// identity.go reads the authenticated caller that JWTAuth stored in the
// Echo context. Rate limit and cache keys, handlers and the error reporter
// all go through these helpers.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id, or 0 for anonymous requests.
func UserID(c echo.Context) uint64 {
	switch v := c.Get(ContextUserID).(type) {
	case uint64:
		return v
	case float64:
		return uint64(v)
	case string:
		n, _ := strconv.ParseUint(v, 10, 64)
		return n
	}
	return 0
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
	r, _ := c.Get(ContextRole).(string)
	return r
}

// userKey is the user component of rate limit and cache keys.
func userKey(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

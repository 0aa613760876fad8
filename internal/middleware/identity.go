package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// Subject returns the authenticated user's id as a string, or "" when
// the request is anonymous.  JSON numbers in claims decode as float64,
// so both string and numeric subjects are accepted.
func Subject(c echo.Context) string {
	switch v := c.Get(ctxUserID).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return ""
}

// Role returns the role claim of the authenticated user.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserIDFrom returns the authenticated user id placed by JWTAuth.
func UserIDFrom(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ContextUserID).(uint64)
	return id, ok && id != 0
}

// rateSubject identifies the caller for rate-limit keys; "anon" before login.
func rateSubject(c echo.Context) string {
	if id, ok := UserIDFrom(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

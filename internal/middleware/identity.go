package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the graduate identifier from context as a string for
// use in rate-limit keys.  JWT numeric claims decode as float64, so both
// string and numeric forms are handled.  Anonymous requests map to "anon".
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}

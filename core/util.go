package core

import (
	"strings"
	"time"
)

var NowFunc = time.Now // mockable

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Now returns the current UTC time truncated to the microsecond, the precision every store keeps.
func Now() time.Time {
	return NowFunc().UTC().Truncate(time.Microsecond)
}

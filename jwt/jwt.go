package jwt

import (
	"time"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/xjwt", "jwt")

// Clock returns the current time
type Clock func() time.Time

// DefaultClock is used by Verifier when not configured
var DefaultClock Clock = time.Now

// Now returns the current time truncated to seconds,
// as JWT NumericDate values have seconds granularity
func (c Clock) Now() time.Time {
	if c == nil {
		c = DefaultClock
	}
	return c().Truncate(time.Second)
}

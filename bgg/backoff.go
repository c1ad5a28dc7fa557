package bgg

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultBackoffBase is the exponent base used when no explicit base is configured.
const DefaultBackoffBase = 2.0

// BackoffPolicy maps a 1-based attempt number (and an optional server-supplied
// Retry-After value) to a wait duration. A valid non-negative Retry-After is
// honored verbatim; otherwise the wait is base^attempt seconds. The policy does
// not bound total wait time; callers bound attempts instead.
type BackoffPolicy struct {
	Base float64
}

// Wait returns how long to sleep before the next attempt. retryAfter is the
// raw Retry-After header value ("" when absent).
func (p BackoffPolicy) Wait(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(strings.TrimSpace(retryAfter), 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	base := p.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	return time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
}

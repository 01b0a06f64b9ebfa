package pipeline

import (
	"math/rand/v2"
	"time"

	"github.com/dgallion1/zenview/internal/source"
)

// IsRetryable checks if a load error is worth retrying.
func IsRetryable(err error) bool {
	return source.IsRetryable(err)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

package workflow

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/tonearmlabs/tonearm/pkg/errcodes"
	"github.com/tonearmlabs/tonearm/pkg/providers"
)

// RetryPolicy controls how many times a step is attempted and how long each
// attempt waits after the previous failure. The delay grows exponentially:
// InitialBackoff * Base^(attempt-1).
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Base           float64
}

// CatalogRetry is the policy for catalog metadata fetches.
var CatalogRetry = RetryPolicy{
	MaxAttempts:    5,
	InitialBackoff: 300 * time.Millisecond,
	Base:           2,
}

// LyricRetry is the policy for lyric provider fetches, which flake more often
// than catalog endpoints.
var LyricRetry = RetryPolicy{
	MaxAttempts:    6,
	InitialBackoff: 300 * time.Millisecond,
	Base:           2,
}

// NoRetry runs a step exactly once. Used for local database steps, which
// either succeed or fail deterministically.
var NoRetry = RetryPolicy{
	MaxAttempts:    1,
	InitialBackoff: 0,
	Base:           1,
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	return time.Duration(float64(p.InitialBackoff) * math.Pow(p.Base, float64(attempt-1)))
}

// terminal reports whether an error should never be retried: malformed
// provider records can't be fixed by waiting, and providers mark permanent
// failures explicitly.
func terminal(err error) bool {
	var ec *errcodes.Error
	if errors.As(err, &ec) && ec.Code == "malformed_input" {
		return true
	}
	return !providers.IsRetryable(err)
}

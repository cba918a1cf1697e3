package analyzer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/okibee/mangalens/internal/apperrors"
)

// retryDecision decides whether to retry the same provider after err and
// how long to wait first. Rate limit errors back off twice as hard.
func retryDecision(err error, attempt, maxAttempts int) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}
	if attempt >= maxAttempts {
		return false, 0
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, 0
	}
	if !apperrors.IsRetryable(err) {
		return false, 0
	}
	base := 1 * time.Second
	maxBackoff := 20 * time.Second
	jitterMax := 1 * time.Second

	backoff := base << (attempt - 1)
	if apperrors.IsRateLimit(err) {
		backoff = backoff * 2
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(jitterMax)))
	return true, backoff + jitter
}

// attemptTimeout scales the base request timeout for later attempts so slow
// pages get more room instead of failing the same way every time.
func attemptTimeout(base time.Duration, escalation float64, attempt int) time.Duration {
	if attempt <= 1 || escalation <= 1 {
		return base
	}
	return time.Duration(float64(base) * math.Pow(escalation, float64(attempt-1)))
}

func newRateLimiter(qps int) (<-chan time.Time, func()) {
	if qps <= 0 {
		return nil, func() {}
	}
	interval := time.Second / time.Duration(qps)
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// rampDelay staggers worker start so a batch does not open with a burst.
func rampDelay(worker, concurrency int, ramp time.Duration) time.Duration {
	if ramp <= 0 || concurrency <= 1 {
		return 0
	}
	return time.Duration(int64(ramp) * int64(worker) / int64(concurrency-1))
}

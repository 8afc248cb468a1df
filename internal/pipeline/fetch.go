package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/recall-analytics/internal/adapter/openfda"
	"github.com/couchcryptid/recall-analytics/internal/domain"
)

// fetchState tracks the retry-then-fallback machine. Modeling the flow as
// explicit states keeps the control flow flat instead of nesting error
// conditionals.
type fetchState int

const (
	stateAttempting fetchState = iota
	stateSucceeded
	stateFellBack
	stateFailed
)

// fetchOutcome is the result of running the fetch state machine.
type fetchOutcome struct {
	records      []domain.RawRecord
	usedFallback bool
}

// runFetch attempts the live fetch with bounded exponential backoff, falling
// back to the bundled sample when retries are exhausted or the response is
// malformed. Each retry delay is strictly greater than the previous one.
// Only a live failure combined with a sample load failure is fatal.
func (b *Builder) runFetch(ctx context.Context, start, end time.Time, limit int) (fetchOutcome, error) {
	state := stateAttempting
	attempt := 0
	backoff := b.retryBackoff

	var records []domain.RawRecord
	var lastErr error

	for state == stateAttempting {
		attempt++
		raws, err := b.fetcher.Fetch(ctx, start, end, limit)
		switch {
		case err == nil:
			records = raws
			state = stateSucceeded

		case openfda.IsTransient(err):
			lastErr = err
			if attempt > b.maxRetries {
				state = stateFellBack
				break
			}
			b.logger.Warn("transient fetch failure, retrying",
				"attempt", attempt, "backoff", backoff, "error", err)
			b.metrics.FetchRetries.Inc()
			if !sleepWithContext(ctx, backoff) {
				return fetchOutcome{}, ctx.Err()
			}
			backoff = nextBackoff(backoff, b.retryBackoffMax)

		case isMalformed(err):
			// Not worth retrying: the endpoint answered, we just cannot
			// interpret it.
			lastErr = err
			state = stateFellBack

		default:
			// Validation errors (bad range, non-positive limit) are caller
			// mistakes, not data-source degradation.
			return fetchOutcome{}, err
		}
	}

	if state == stateSucceeded {
		return fetchOutcome{records: records}, nil
	}

	b.logger.Warn("live fetch failed, loading bundled sample", "error", lastErr)
	sampleRecords, err := b.sample.Load()
	if err != nil {
		// stateFailed: the only fatal pipeline condition.
		return fetchOutcome{}, fmt.Errorf("live fetch failed (%w) and fallback load failed: %w", lastErr, err)
	}

	b.metrics.FetchFallbacks.Inc()
	return fetchOutcome{records: sampleRecords, usedFallback: true}, nil
}

func isMalformed(err error) bool {
	var m *openfda.MalformedError
	return errors.As(err, &m)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

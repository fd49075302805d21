package webhook

import (
	"context"
	"math/rand"
	"time"
)

const (
	DefaultMaxAttempts = 5
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 8 * time.Second
)

// AttemptRecord captures the outcome of one attempt for diagnostics. The
// history is preserved even on final failure and travels with the event into
// the dead-letter sink.
type AttemptRecord struct {
	Attempt int       `json:"attempt"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

// RetryResult is the outcome of ExecuteWithRetry.
type RetryResult struct {
	Success  bool
	Attempts int
	Err      error
	History  []AttemptRecord
}

// RetryExecutor runs a unit of work with bounded exponential-backoff retry.
// Validation errors abort immediately; everything else consumes the attempt
// budget. The backoff sleep is context-aware so a hard invocation deadline
// fails fast instead of being killed mid-write.
type RetryExecutor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates an executor with the default budget: 5 attempts,
// base delay doubling per attempt with jitter.
func NewRetryExecutor() *RetryExecutor {
	return &RetryExecutor{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
		Jitter:      true,
		sleep:       sleepCtx,
	}
}

// ExecuteWithRetry attempts op until it succeeds, exhausts the budget, or
// fails terminally. Attempts within one call are strictly sequential.
func (e *RetryExecutor) ExecuteWithRetry(ctx context.Context, op func(ctx context.Context) error) RetryResult {
	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := e.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	result := RetryResult{}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		result.Attempts = attempt
		record := AttemptRecord{Attempt: attempt, At: time.Now()}
		if err == nil {
			result.History = append(result.History, record)
			result.Success = true
			return result
		}

		record.Error = summarizeError(err)
		result.History = append(result.History, record)
		result.Err = err

		if !IsRetryable(err) {
			return result
		}
		if attempt == maxAttempts {
			return result
		}
		if serr := sleep(ctx, e.delay(attempt)); serr != nil {
			// Deadline hit during backoff: give up with what we have.
			result.Err = Transientf("retry aborted by context: %v (last error: %v)", serr, err)
			return result
		}
	}
	return result
}

// delay returns the backoff before the next attempt: base doubling per
// attempt, capped, with optional +/-25% jitter.
func (e *RetryExecutor) delay(attempt int) time.Duration {
	base := e.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := e.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	d := base << uint(attempt-1)
	if d > maxDelay {
		d = maxDelay
	}
	if e.Jitter {
		quarter := int64(d / 4)
		if quarter > 0 {
			d += time.Duration(rand.Int63n(2*quarter) - quarter)
		}
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package tcp

import (
	"math"
	"time"

	"github.com/jpillora/backoff"
)

// RetryTimer is {active, rto_duration_ms, elapsed_ms}; elapsed_ms is only
// meaningful while active. It never reads the wall clock: every
// millisecond it accounts for arrives through Advance, called from
// Sender.Tick.
type RetryTimer struct {
	active    bool
	elapsedMs uint64

	initialRTOMs uint64
	backoffs     uint64 // consecutive ApplyExponentialBackoff calls since the last Reload

	// schedule computes the exponential-backoff sequence (initialRTO,
	// 2*initialRTO, 4*initialRTO, ...). Using jpillora/backoff.ForAttempt
	// keeps this a pure function of backoffs, so RetryTimer itself stays a
	// plain value-ish tuple with no hidden mutable attempt counter beyond
	// the one field the spec's data model calls for.
	schedule backoff.Backoff
}

// NewRetryTimer constructs a RetryTimer with the given default RTO.
func NewRetryTimer(initialRTOMs uint64) *RetryTimer {
	return &RetryTimer{
		initialRTOMs: initialRTOMs,
		schedule: backoff.Backoff{
			Min:    time.Duration(initialRTOMs) * time.Millisecond,
			Max:    time.Duration(math.MaxInt64),
			Factor: 2,
			Jitter: false,
		},
	}
}

// IsActive reports whether the timer is currently running.
func (t *RetryTimer) IsActive() bool { return t.active }

// RTODurationMs is the current retransmission timeout.
func (t *RetryTimer) RTODurationMs() uint64 {
	return uint64(t.schedule.ForAttempt(float64(t.backoffs)) / time.Millisecond)
}

// HasExpired reports whether the timer is active and its elapsed time has
// reached or passed the current RTO.
func (t *RetryTimer) HasExpired() bool {
	if !t.active {
		return false
	}
	return t.elapsedMs >= t.RTODurationMs()
}

// Reset zeroes the elapsed counter without touching active or the RTO.
func (t *RetryTimer) Reset() { t.elapsedMs = 0 }

// ApplyExponentialBackoff doubles the RTO for the next expiry.
func (t *RetryTimer) ApplyExponentialBackoff() { t.backoffs++ }

// Reload restores the RTO to initialRTOMs and resets elapsed time; called
// when a fresh ack is received.
func (t *RetryTimer) Reload(initialRTOMs uint64) {
	t.initialRTOMs = initialRTOMs
	t.schedule.Min = time.Duration(initialRTOMs) * time.Millisecond
	t.backoffs = 0
	t.Reset()
}

// Activate starts the timer if it isn't already running.
func (t *RetryTimer) Activate() {
	if !t.active {
		t.active = true
		t.Reset()
	}
}

// Deactivate stops the timer if it's running.
func (t *RetryTimer) Deactivate() {
	if t.active {
		t.active = false
		t.Reset()
	}
}

// Advance accounts for ms milliseconds having passed, if the timer is
// active.
func (t *RetryTimer) Advance(ms uint64) {
	if t.active {
		t.elapsedMs += ms
	}
}

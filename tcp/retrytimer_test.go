package tcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryTimerActivateAndExpire(t *testing.T) {
	timer := NewRetryTimer(1000)
	assert.False(t, timer.IsActive())
	assert.False(t, timer.HasExpired(), "inactive timer never expires")

	timer.Activate()
	assert.True(t, timer.IsActive())
	assert.Equal(t, uint64(1000), timer.RTODurationMs())

	timer.Advance(999)
	assert.False(t, timer.HasExpired())
	timer.Advance(1)
	assert.True(t, timer.HasExpired())
}

func TestRetryTimerBackoffDoubles(t *testing.T) {
	timer := NewRetryTimer(100)
	assert.Equal(t, uint64(100), timer.RTODurationMs())

	timer.ApplyExponentialBackoff()
	assert.Equal(t, uint64(200), timer.RTODurationMs())

	timer.ApplyExponentialBackoff()
	assert.Equal(t, uint64(400), timer.RTODurationMs())

	timer.Reload(100)
	assert.Equal(t, uint64(100), timer.RTODurationMs())
}

func TestRetryTimerDeactivateResetsElapsed(t *testing.T) {
	timer := NewRetryTimer(50)
	timer.Activate()
	timer.Advance(10)
	timer.Deactivate()
	assert.False(t, timer.IsActive())

	timer.Activate()
	assert.False(t, timer.HasExpired(), "reactivating resets elapsed time")
}

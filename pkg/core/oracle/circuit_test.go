package oracle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := newCircuitBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		changed, _, to := cb.recordFailure()
		assert.False(t, changed)
		assert.Equal(t, stateClosed, to)
	}

	changed, from, to := cb.recordFailure()
	assert.True(t, changed)
	assert.Equal(t, stateClosed, from)
	assert.Equal(t, stateOpen, to)

	ok, _, _ := cb.allow()
	assert.False(t, ok, "calls should be rejected while open")
}

func TestCircuitBreakerHalfOpenThenRecovers(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Millisecond)

	cb.recordFailure()
	assert.Equal(t, stateOpen, cb.currentState())

	time.Sleep(20 * time.Millisecond)
	ok, from, to := cb.allow()
	assert.True(t, ok)
	assert.Equal(t, stateOpen, from)
	assert.Equal(t, stateHalfOpen, to)

	changed, _, to := cb.recordSuccess()
	assert.True(t, changed)
	assert.Equal(t, stateClosed, to)
}

func TestCircuitBreakerHalfOpenFailureReopensImmediately(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Millisecond)
	cb.recordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.allow() // transitions to half-open

	changed, from, to := cb.recordFailure()
	assert.True(t, changed)
	assert.Equal(t, stateHalfOpen, from)
	assert.Equal(t, stateOpen, to)
}

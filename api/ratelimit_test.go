package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUnknownUsers(t *testing.T) {
	rl := newLoginRateLimiter()
	blocked, retryAfter := rl.check("alice")
	assert.False(t, blocked)
	assert.Zero(t, retryAfter)
}

func TestRateLimiterLocksAfterMaxFailures(t *testing.T) {
	rl := newLoginRateLimiter()

	for i := 0; i < maxFailures-1; i++ {
		rl.recordFailure("alice")
		blocked, _ := rl.check("alice")
		assert.False(t, blocked, "failure %d should not lock", i+1)
	}

	rl.recordFailure("alice")
	blocked, retryAfter := rl.check("alice")
	assert.True(t, blocked)
	assert.Greater(t, retryAfter.Seconds(), 0.0)

	// Other accounts are unaffected.
	blocked, _ = rl.check("bob")
	assert.False(t, blocked)
}

func TestRateLimiterSuccessClearsState(t *testing.T) {
	rl := newLoginRateLimiter()
	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("alice")
	}
	blocked, _ := rl.check("alice")
	assert.True(t, blocked)

	rl.recordSuccess("alice")
	blocked, _ = rl.check("alice")
	assert.False(t, blocked)
}

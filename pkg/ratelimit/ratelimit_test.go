package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginRateLimiter_AllowAndReset(t *testing.T) {
	rl := NewLoginRateLimiter(3, time.Minute)
	defer rl.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "attempt %d", i+1)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "other IPs are independent")

	retry := rl.RetryAfterSeconds("1.2.3.4")
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 61)

	rl.Reset("1.2.3.4")
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.Equal(t, 0, rl.RetryAfterSeconds("9.9.9.9"))
}

func TestLoginRateLimiter_WindowExpires(t *testing.T) {
	rl := NewLoginRateLimiter(1, 20*time.Millisecond)
	defer rl.Close()

	assert.True(t, rl.Allow("ip"))
	assert.False(t, rl.Allow("ip"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("ip"))

	rl.cleanup()
	time.Sleep(30 * time.Millisecond)
	rl.cleanup()
	rl.mu.RLock()
	assert.Empty(t, rl.buckets)
	rl.mu.RUnlock()
}

func TestUploadRateLimiter_Cooldown(t *testing.T) {
	rl := NewUploadRateLimiter(5, time.Minute, 30*time.Millisecond)
	defer rl.Close()

	assert.True(t, rl.Allow("admin", 3))
	assert.True(t, rl.Allow("admin", 2))
	assert.False(t, rl.Allow("admin", 1))
	assert.False(t, rl.Allow("admin", 1), "still cooling down")
	assert.Greater(t, rl.CooldownSeconds("admin"), 0)

	time.Sleep(40 * time.Millisecond)
	assert.True(t, rl.Allow("admin", 5))
	assert.Equal(t, 0, rl.CooldownSeconds("admin"))
}

func TestUploadRateLimiter_BatchLargerThanLimit(t *testing.T) {
	rl := NewUploadRateLimiter(10, time.Minute, time.Minute)
	defer rl.Close()

	assert.False(t, rl.Allow("admin", 11))
}

func TestExtractIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ExtractIP(r))

	r.Header.Set("X-Real-IP", "172.16.0.9")
	assert.Equal(t, "172.16.0.9", ExtractIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ExtractIP(r))
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "45 second(s)", FormatRetryMessage(45))
	assert.Equal(t, "2 minute(s)", FormatRetryMessage(120))
}

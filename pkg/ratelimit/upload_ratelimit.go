package ratelimit

import (
	"sync"
	"time"
)

type uploadBucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time // zero = no cooldown
}

// UploadRateLimiter throttles uploads per admin user.
//
// Unlike LoginRateLimiter the penalty is separate from the window: once
// maxUploads is exceeded inside window, every upload is refused until the
// cooldown ends, then counting starts over.
//
//	limiter := NewUploadRateLimiter(60, time.Minute, 30*time.Second)
//	if !limiter.Allow(userID) { return 429 }
type UploadRateLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*uploadBucket
	maxUploads  int
	window      time.Duration
	cooldown    time.Duration
	stopCleanup chan struct{}
	closeOnce   sync.Once
}

// NewUploadRateLimiter creates a limiter and starts its cleanup goroutine.
func NewUploadRateLimiter(maxUploads int, window, cooldown time.Duration) *UploadRateLimiter {
	rl := &UploadRateLimiter{
		buckets:     make(map[string]*uploadBucket),
		maxUploads:  maxUploads,
		window:      window,
		cooldown:    cooldown,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow counts n uploads for userID. A batch request counts every file.
func (rl *UploadRateLimiter) Allow(userID string, n int) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[userID]
	if !exists {
		b = &uploadBucket{windowStart: now}
		rl.buckets[userID] = b
	}

	if !b.cooldownUntil.IsZero() {
		if now.Before(b.cooldownUntil) {
			return false
		}
		b.count = 0
		b.windowStart = now
		b.cooldownUntil = time.Time{}
	}

	if now.Sub(b.windowStart) > rl.window {
		b.count = 0
		b.windowStart = now
	}

	b.count += n
	if b.count > rl.maxUploads {
		b.cooldownUntil = now.Add(rl.cooldown)
		return false
	}

	return true
}

// CooldownSeconds returns the seconds left in the cooldown of userID, or 0.
func (rl *UploadRateLimiter) CooldownSeconds(userID string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	b, exists := rl.buckets[userID]
	if !exists || b.cooldownUntil.IsZero() {
		return 0
	}

	remaining := time.Until(b.cooldownUntil)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Close stops the cleanup goroutine.
func (rl *UploadRateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *UploadRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup keeps buckets that are still cooling down.
func (rl *UploadRateLimiter) cleanup() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, b := range rl.buckets {
		windowExpired := now.Sub(b.windowStart) > rl.window
		cooldownExpired := b.cooldownUntil.IsZero() || now.After(b.cooldownUntil)

		if windowExpired && cooldownExpired {
			delete(rl.buckets, userID)
		}
	}
}

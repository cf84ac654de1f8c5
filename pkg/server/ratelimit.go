package server

import (
	"sync"
	"time"
)

// sendWindow tracks one connection's sends within the current window
type sendWindow struct {
	count   int
	resetAt time.Time
}

// MessageRateLimiter throttles send frequency per connection with a
// fixed window: quota sends per window, then denial until the window
// resets. A token-bucket limiter would smear the quota over time; the
// chat widget's contract is a hard count per interval.
type MessageRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*sendWindow
	quota   int
	window  time.Duration
	now     func() time.Time // injectable for deterministic tests
}

// NewMessageRateLimiter creates a limiter allowing quota sends per window
func NewMessageRateLimiter(quota int, window time.Duration) *MessageRateLimiter {
	return &MessageRateLimiter{
		windows: make(map[string]*sendWindow),
		quota:   quota,
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether the connection may send another message. The
// read-modify-write on a connection's window is atomic under the
// limiter's lock.
func (rl *MessageRateLimiter) Allow(connectionID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	win, ok := rl.windows[connectionID]
	if !ok || !now.Before(win.resetAt) {
		// No window, or the previous one elapsed: open a fresh one
		rl.windows[connectionID] = &sendWindow{
			count:   1,
			resetAt: now.Add(rl.window),
		}
		return true
	}

	if win.count < rl.quota {
		win.count++
		return true
	}

	return false
}

// Forget drops the window for a disconnected connection
func (rl *MessageRateLimiter) Forget(connectionID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.windows, connectionID)
}

// PurgeStale removes windows whose reset time has passed and returns
// how many were removed. Purging is advisory: a stale entry left
// behind simply opens a fresh window on next use.
func (rl *MessageRateLimiter) PurgeStale() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	purged := 0
	for id, win := range rl.windows {
		if !now.Before(win.resetAt) {
			delete(rl.windows, id)
			purged++
		}
	}
	return purged
}

package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter counts requests per key within a window
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
	Limit() int
	Window() time.Duration
}

// SlidingWindowLimiter implements sliding window rate limiting in process
// memory. It only limits correctly within a single instance.
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

type window struct {
	requests []time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// NewLoginRateLimiter limits login attempts per client IP
func NewLoginRateLimiter(attemptsPerMinute int) *SlidingWindowLimiter {
	return NewSlidingWindowLimiter(attemptsPerMinute, time.Minute)
}

// Allow checks if a request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.windowSize)

	w, exists := l.windows[key]
	if !exists {
		w = &window{}
		l.windows[key] = w
	}

	// Drop requests that slid out of the window
	kept := w.requests[:0]
	for _, reqTime := range w.requests {
		if reqTime.After(windowStart) {
			kept = append(kept, reqTime)
		}
	}
	w.requests = kept

	if len(w.requests) >= l.limit {
		return false, nil
	}

	w.requests = append(w.requests, now)
	return true, nil
}

// Reset resets the rate limit for a key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}

func (l *SlidingWindowLimiter) Limit() int {
	return l.limit
}

func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.windowSize
}

// StartSweeper drops idle keys every interval. The returned stop function
// blocks until the sweeper has exited.
func (l *SlidingWindowLimiter) StartSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	var once sync.Once

	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}

// Sweep removes keys with no requests left in the window
func (l *SlidingWindowLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := l.now().Add(-l.windowSize)
	for key, w := range l.windows {
		if len(w.requests) == 0 || !w.requests[len(w.requests)-1].After(windowStart) {
			delete(l.windows, key)
		}
	}
}

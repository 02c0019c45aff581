package auth

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxFailedAttempts = 5
	DefaultRateLimitWindow   = 15 * time.Minute
	DefaultCleanupInterval   = 5 * time.Minute
)

// RateLimiterConfig tunes the failed-login limiter.
type RateLimiterConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
	CleanupInterval   time.Duration
}

// DefaultRateLimiterConfig returns the default limiter tuning.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		Window:            DefaultRateLimitWindow,
		CleanupInterval:   DefaultCleanupInterval,
	}
}

// RateLimiter blocks clients that accumulate too many failed
// authentication attempts within a sliding window. Each IP keeps the
// timestamps of its recent failures; entries age out as the window
// slides.
type RateLimiter struct {
	cfg RateLimiterConfig

	mu       sync.Mutex
	failures map[string][]time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its background reaper.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		cfg:      cfg,
		failures: make(map[string][]time.Time),
		done:     make(chan struct{}),
	}
	go rl.reap()
	return rl
}

// Stop terminates the background reaper.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// IsLimited reports whether the IP has reached the failure cap within
// the current window.
func (rl *RateLimiter) IsLimited(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	times, ok := rl.failures[ip]
	if !ok {
		return false
	}

	recent := rl.prune(times)
	if len(recent) == 0 {
		delete(rl.failures, ip)
		return false
	}
	rl.failures[ip] = recent

	return len(recent) >= rl.cfg.MaxFailedAttempts
}

// RecordFailure notes a failed authentication attempt for the IP.
func (rl *RateLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.failures[ip] = append(rl.prune(rl.failures[ip]), time.Now())
}

// Reset clears the recorded failures for the IP.
func (rl *RateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.failures, ip)
}

// prune returns only the timestamps still inside the window. The slice
// is append-ordered, so expired entries form a prefix.
func (rl *RateLimiter) prune(times []time.Time) []time.Time {
	cutoff := time.Now().Add(-rl.cfg.Window)
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

// reap drops stale entries so one-off IPs do not accumulate in the map.
func (rl *RateLimiter) reap() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, times := range rl.failures {
				if recent := rl.prune(times); len(recent) == 0 {
					delete(rl.failures, ip)
				} else {
					rl.failures[ip] = recent
				}
			}
			rl.mu.Unlock()
		}
	}
}

// GetClientIP extracts the client IP from the request, preferring the
// X-Forwarded-For chain, then X-Real-IP, then the connection address.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

package worker

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/veridexhq/veridex/internal/model"
)

// AccountLimiter enforces a per-account ceiling on expensive operations.
// Over-limit requests are rejected with a retry-after hint, never queued.
type AccountLimiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewAccountLimiter creates a limiter allowing perMinute operations per
// account with the given burst
func NewAccountLimiter(perMinute int, burst int) *AccountLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 5
	}

	return &AccountLimiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(float64(perMinute) / 60),
		defaultBurst: burst,
	}
}

// Check consumes one slot for the account, or returns RateLimitedError
// with the time until the next slot frees up.
func (l *AccountLimiter) Check(accountID string) error {
	limiter := l.getLimiter(accountID)

	r := limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return &model.RateLimitedError{AccountID: accountID, RetryAfter: delay}
	}
	return nil
}

// Allow reports whether the account has a slot without consuming one on
// rejection
func (l *AccountLimiter) Allow(accountID string) bool {
	return l.getLimiter(accountID).Allow()
}

// SetAccountRate overrides the ceiling for one account
func (l *AccountLimiter) SetAccountRate(accountID string, perMinute int, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}
	l.limiters[accountID] = rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)
}

func (l *AccountLimiter) getLimiter(accountID string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[accountID]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[accountID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[accountID] = limiter

	return limiter
}

// RetryAfterFrom extracts a retry hint from an error, if it carries one
func RetryAfterFrom(err error) (time.Duration, bool) {
	if rle, ok := err.(*model.RateLimitedError); ok {
		return rle.RetryAfter, true
	}
	return 0, false
}

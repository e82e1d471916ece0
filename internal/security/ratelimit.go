package security

import (
	"sync"
	"time"
)

// FailurePolicy shapes a FailureLimiter. After the n-th consecutive failure
// the next attempt must wait BaseDelay*2^(n-1), capped at MaxDelay. Reaching
// MaxFailures locks the key for Lockout. A key whose last failure is older
// than ResetAfter starts over.
type FailurePolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	ResetAfter  time.Duration
	MaxFailures int
	Lockout     time.Duration
}

// DefaultFailurePolicy throttles interactive password entry.
var DefaultFailurePolicy = FailurePolicy{
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
	ResetAfter:  15 * time.Minute,
	MaxFailures: 5,
	Lockout:     5 * time.Minute,
}

// FailureLimiter tracks consecutive failures per key in memory.
type FailureLimiter struct {
	policy FailurePolicy
	now    func() time.Time

	mu    sync.Mutex
	state map[string]failureState
}

type failureState struct {
	count  int
	last   time.Time
	locked time.Time
}

// NewFailureLimiter creates a limiter enforcing p.
func NewFailureLimiter(p FailurePolicy) *FailureLimiter {
	return &FailureLimiter{
		policy: p,
		now:    time.Now,
		state:  make(map[string]failureState),
	}
}

// RecordFailure counts a failure for key and returns the wait it imposes.
func (fl *FailureLimiter) RecordFailure(key string) time.Duration {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	now := fl.now()
	s := fl.state[key]
	if fl.policy.ResetAfter > 0 && now.Sub(s.last) > fl.policy.ResetAfter {
		s = failureState{}
	}
	s.count++
	s.last = now
	if fl.policy.MaxFailures > 0 && s.count >= fl.policy.MaxFailures {
		s.locked = now.Add(fl.policy.Lockout)
	}
	fl.state[key] = s
	return fl.backoff(s.count)
}

// RecordSuccess forgets key.
func (fl *FailureLimiter) RecordSuccess(key string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	delete(fl.state, key)
}

// IsLocked reports whether key has hit MaxFailures within the lockout.
func (fl *FailureLimiter) IsLocked(key string) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.now().Before(fl.state[key].locked)
}

// Delay returns how long key must still wait before its next attempt.
func (fl *FailureLimiter) Delay(key string) time.Duration {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	s, ok := fl.state[key]
	if !ok {
		return 0
	}
	remaining := fl.backoff(s.count) - fl.now().Sub(s.last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (fl *FailureLimiter) backoff(count int) time.Duration {
	if count <= 0 || fl.policy.BaseDelay <= 0 {
		return 0
	}
	delay := fl.policy.BaseDelay
	for i := 1; i < count && delay < fl.policy.MaxDelay; i++ {
		delay *= 2
	}
	if fl.policy.MaxDelay > 0 && delay > fl.policy.MaxDelay {
		delay = fl.policy.MaxDelay
	}
	return delay
}

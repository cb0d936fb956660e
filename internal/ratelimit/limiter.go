package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Class names a limiter configuration.
type Class string

const (
	ClassAuth          Class = "auth"
	ClassPasswordReset Class = "passwordReset"
	ClassRegistration  Class = "registration"
	ClassAPI           Class = "api"
	ClassEmail         Class = "email"
)

// Rule is the allowance of one class: Points per Duration, then BlockDuration of lockout
// once the allowance is exceeded.
type Rule struct {
	Points        int
	Duration      time.Duration
	BlockDuration time.Duration
}

// DefaultRules returns the fixed limiter classes.
func DefaultRules() map[Class]Rule {
	return map[Class]Rule{
		ClassAuth:          {Points: 5, Duration: 15 * time.Minute, BlockDuration: 15 * time.Minute},
		ClassPasswordReset: {Points: 3, Duration: time.Hour, BlockDuration: time.Hour},
		ClassRegistration:  {Points: 3, Duration: time.Hour, BlockDuration: 24 * time.Hour},
		ClassAPI:           {Points: 100, Duration: 15 * time.Minute, BlockDuration: 5 * time.Minute},
		ClassEmail:         {Points: 5, Duration: time.Hour, BlockDuration: 2 * time.Hour},
	}
}

// Key identifies one bucket.
type Key struct {
	Identifier string
	Class      Class
}

// Consumption describes a bucket after a successful consume.
type Consumption struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimitExceededError is returned while a bucket is exhausted or blocked.
type RateLimitExceededError struct {
	Class      Class
	Limit      int
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Class, e.RetryAfter)
}

// BucketStore applies one consume to a bucket atomically. It returns the consumed points
// (<= rule.Points on success) or a positive retryAfter when the call is rejected.
type BucketStore interface {
	Consume(ctx context.Context, key Key, rule Rule, now time.Time) (consumed int, windowEnd time.Time, retryAfter time.Duration, err error)
}

// Limiter is constructed once per process and shared by the request handlers.
type Limiter struct {
	store BucketStore
	rules map[Class]Rule
	now   func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithRules overrides the default classes.
func WithRules(rules map[Class]Rule) Option {
	return func(l *Limiter) { l.rules = rules }
}

func New(store BucketStore, opts ...Option) *Limiter {
	l := &Limiter{store: store, rules: DefaultRules(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rule returns the configuration of class.
func (l *Limiter) Rule(class Class) (Rule, bool) {
	r, ok := l.rules[class]
	return r, ok
}

// Consume takes one point from identifier's bucket for class.
func (l *Limiter) Consume(ctx context.Context, identifier string, class Class) (Consumption, error) {
	rule, ok := l.rules[class]
	if !ok {
		return Consumption{}, fmt.Errorf("unknown rate limiter class %q", class)
	}

	now := l.now()
	consumed, windowEnd, retryAfter, err := l.store.Consume(ctx, Key{Identifier: identifier, Class: class}, rule, now)
	if err != nil {
		return Consumption{}, fmt.Errorf("rate limiter %s: %w", class, err)
	}
	if retryAfter > 0 {
		return Consumption{}, &RateLimitExceededError{
			Class:      class,
			Limit:      rule.Points,
			RetryAfter: retryAfter,
			ResetAt:    now.Add(retryAfter),
		}
	}

	remaining := rule.Points - consumed
	if remaining < 0 {
		remaining = 0
	}
	return Consumption{Limit: rule.Points, Remaining: remaining, ResetAt: windowEnd}, nil
}

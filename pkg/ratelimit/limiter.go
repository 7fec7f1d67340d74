// Package ratelimit throttles outbound API calls and action executions with
// per-key token buckets.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule is the bucket shape applied to every key of a Limiter.
type Rule struct {
	Limit rate.Limit
	Burst int
}

// PerMinute allows n events per minute with a burst of n. n <= 0 disables
// limiting.
func PerMinute(n int) Rule {
	if n <= 0 {
		return Unlimited()
	}
	return Rule{Limit: rate.Limit(float64(n) / 60), Burst: n}
}

// PerSecond allows n events per second with a burst of n. n <= 0 disables
// limiting.
func PerSecond(n int) Rule {
	if n <= 0 {
		return Unlimited()
	}
	return Rule{Limit: rate.Limit(n), Burst: n}
}

func Unlimited() Rule { return Rule{Limit: rate.Inf} }

func (r Rule) unlimited() bool { return r.Limit == rate.Inf }

// Limiter holds one token bucket per key, created on first use.
type Limiter struct {
	rule    Rule
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

func NewLimiter(rule Rule) *Limiter {
	return &Limiter{rule: rule, buckets: make(map[string]*bucket)}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rule.Limit, l.rule.Burst)}
		l.buckets[key] = b
	}
	b.lastUsed = time.Now()
	return b.limiter
}

// Allow reports whether an event for key may happen now, consuming a token
// when it may.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.rule.unlimited() {
		return true
	}
	return l.bucket(key).Allow()
}

// Wait blocks until an event for key is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil || l.rule.unlimited() {
		return ctx.Err()
	}
	return l.bucket(key).Wait(ctx)
}

// Status describes the bucket for one key.
type Status struct {
	Key       string
	Limit     rate.Limit
	Burst     int
	Available float64
}

func (l *Limiter) Status(key string) Status {
	st := Status{Key: key, Limit: l.rule.Limit, Burst: l.rule.Burst}
	if l.rule.unlimited() {
		return st
	}
	l.mu.Lock()
	b, ok := l.buckets[key]
	l.mu.Unlock()
	if !ok {
		st.Available = float64(l.rule.Burst)
		return st
	}
	st.Available = b.limiter.Tokens()
	return st
}

// Reset drops every bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.buckets = make(map[string]*bucket)
	l.mu.Unlock()
}

// Cleanup removes buckets unused for longer than maxAge.
func (l *Limiter) Cleanup(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// Transport waits on Limiter before each request, keyed by Key or the
// request host.
type Transport struct {
	Base    http.RoundTripper
	Limiter *Limiter
	Key     string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := t.Key
	if key == "" {
		key = req.URL.Host
	}
	if err := t.Limiter.Wait(req.Context(), key); err != nil {
		return nil, err
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRules(t *testing.T) {
	assert.Equal(t, Rule{Limit: rate.Limit(1), Burst: 60}, PerMinute(60))
	assert.Equal(t, Rule{Limit: rate.Limit(10), Burst: 10}, PerSecond(10))
	assert.True(t, PerMinute(0).unlimited())
	assert.True(t, PerSecond(-1).unlimited())
}

func TestLimiter_AllowExhaustsBurst(t *testing.T) {
	l := NewLimiter(PerMinute(3))
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("github"), "event %d", i)
	}
	assert.False(t, l.Allow("github"))

	// keys do not share buckets
	assert.True(t, l.Allow("coinbase"))
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(Unlimited())
	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow("k"))
	}
	assert.NoError(t, l.Wait(context.Background(), "k"))

	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("k"))
}

func TestLimiter_WaitRefills(t *testing.T) {
	l := NewLimiter(Rule{Limit: rate.Limit(20), Burst: 1})
	require.True(t, l.Allow("k"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "k"))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestLimiter_WaitCancelled(t *testing.T) {
	l := NewLimiter(Rule{Limit: rate.Limit(0.01), Burst: 1})
	require.True(t, l.Allow("k"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}

func TestLimiter_StatusResetCleanup(t *testing.T) {
	l := NewLimiter(PerMinute(5))
	assert.Equal(t, float64(5), l.Status("k").Available)

	l.Allow("k")
	l.Allow("k")
	st := l.Status("k")
	assert.InDelta(t, 3, st.Available, 0.1)
	assert.Equal(t, 5, st.Burst)

	l.Reset()
	assert.Equal(t, float64(5), l.Status("k").Available)

	l.Allow("old")
	time.Sleep(5 * time.Millisecond)
	l.Cleanup(time.Millisecond)
	l.mu.Lock()
	_, ok := l.buckets["old"]
	l.mu.Unlock()
	assert.False(t, ok)
}

func TestTransport(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	l := NewLimiter(Rule{Limit: rate.Limit(0.01), Burst: 1})
	client := &http.Client{Transport: &Transport{Limiter: l, Key: "api"}}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	_, err = client.Do(req)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

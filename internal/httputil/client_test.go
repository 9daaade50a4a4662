// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/corpus-engine/pkg/types"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c := New(types.HTTPConfig{
		Timeout:        5 * time.Second,
		UserAgent:      "corpus-engine-test",
		MaxConnections: 4,
		MaxRetries:     3,
	}, "", map[string]float64{"default": 1000})
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "corpus-engine-test", r.Header.Get("User-Agent"))
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	resp, err := testClient(t).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "hello", string(resp.Body))
}

func TestRetryOn503ThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := testClient(t).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOn404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testClient(t).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, KindHTTPStatus, KindOf(err))
	assert.Equal(t, int32(1), calls.Load(), "4xx other than 408/429 must not retry")
}

func TestRetryAfterHonored(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var waited time.Duration
	c := testClient(t)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waited = d
		return nil
	}

	_, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, waited, "Retry-After header must be honored exactly")
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(t).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, KindHTTPStatus, KindOf(err))
	// Initial attempt plus MaxRetries.
	assert.Equal(t, int32(4), calls.Load())
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := testClient(t).PostJSON(context.Background(), srv.URL, map[string]string{"q": "x"}, nil)
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "ok")
}

func TestProxyRewrite(t *testing.T) {
	c := New(types.HTTPConfig{}, "https://proxy.example.edu", nil)
	got := c.ProxyRewrite("https://doi.org/10.1/abc")
	assert.Equal(t, "https://proxy.example.edu/login?url=https%3A%2F%2Fdoi.org%2F10.1%2Fabc", got)

	// No proxy configured: passthrough.
	c = New(types.HTTPConfig{}, "", nil)
	assert.Equal(t, "https://doi.org/10.1/abc", c.ProxyRewrite("https://doi.org/10.1/abc"))
}

func TestBadURL(t *testing.T) {
	_, err := testClient(t).Get(context.Background(), "::bogus::", nil)
	require.Error(t, err)
	assert.Equal(t, KindInvalidResponse, KindOf(err))
}

// Rate limit pressure on one host group must not serialize another group.
func TestLimitersAreIndependent(t *testing.T) {
	c := testClient(t)
	slow := c.limiter("api.semanticscholar.org")
	fast := c.limiter("api.openalex.org")
	assert.NotSame(t, slow, fast)

	// Same group shares one bucket.
	again := c.limiter("api.openalex.org")
	assert.Same(t, fast, again)

	ncbi1 := c.limiter("eutils.ncbi.nlm.nih.gov")
	ncbi2 := c.limiter("www.ncbi.nlm.nih.gov")
	assert.Same(t, ncbi1, ncbi2, "NCBI hosts share one host group")
}

package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cache SnapshotCache) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		AdminPass: "test-pass",
		Timeout:   2 * time.Second,
		Cache:     cache,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return c, srv
}

const bareArrayBody = `[
  {"Accountcode":"T1","CallerID":"5511999","Channel":"PJSIP/1001-000a","Duration":"42","Extension":"2004","State":"Up"},
  {"Accountcode":"T2","CallerID":"5511888","Channel":"PJSIP/3001-000b","Duration":"7","Extension":"1001","State":"Ring"}
]`

func TestFetchActiveCalls_BareArray(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.URL.Query().Get("adminpass") != "test-pass" {
			t.Errorf("missing adminpass query param")
		}
		w.Write([]byte(bareArrayBody))
	}, nil)

	legs, err := c.FetchActiveCalls(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
	l := legs[0]
	if l.Channel != "PJSIP/1001-000a" || l.Extension != "1001" || l.DurationSeconds != 42 {
		t.Fatalf("unexpected leg: %+v", l)
	}
	if l.State != "talking" {
		t.Fatalf("Up should map to talking, got %q", l.State)
	}
	if legs[1].State != "ringing" {
		t.Fatalf("Ring should map to ringing, got %q", legs[1].State)
	}
}

func TestFetchActiveCalls_WrappedObject(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"active_calls":` + bareArrayBody + `}`))
	}, nil)

	legs, err := c.FetchActiveCalls(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
}

func TestFetchActiveCalls_NotFoundMeansEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no active calls", http.StatusNotFound)
	}, nil)

	legs, err := c.FetchActiveCalls(context.Background())
	if err != nil {
		t.Fatalf("404 must not be an error, got %v", err)
	}
	if len(legs) != 0 {
		t.Fatalf("expected empty list, got %d", len(legs))
	}
}

func TestFetchActiveCalls_UnauthorizedIsFatal(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}, nil)

	_, err := c.FetchActiveCalls(context.Background())
	if !IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if IsTransient(err) {
		t.Fatalf("auth errors must not count toward the retry budget")
	}
}

func TestFetchActiveCalls_CacheServesWithinTTL(t *testing.T) {
	var hits int32
	cache := NewMemoryCache(2 * time.Second)
	now := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return now }

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(bareArrayBody))
	}, cache)

	first, err := c.FetchActiveCalls(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := c.FetchActiveCalls(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 network call within TTL, got %d", hits)
	}
	if len(first) != len(second) || first[0].Channel != second[0].Channel {
		t.Fatalf("cached result differs from original")
	}

	// Past the TTL the next call goes to the network again.
	now = now.Add(3 * time.Second)
	if _, err := c.FetchActiveCalls(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected a fresh network call after TTL, got %d", hits)
	}
}

func TestFetchActiveCalls_ErrorInvalidatesCache(t *testing.T) {
	var hits int32
	var fail atomic.Bool
	cache := NewMemoryCache(time.Minute)
	now := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return now }

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if fail.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write([]byte(bareArrayBody))
	}, cache)

	if _, err := c.FetchActiveCalls(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Expire the entry, then fail: the failure must leave the cache invalid.
	now = now.Add(2 * time.Minute)
	fail.Store(true)
	if _, err := c.FetchActiveCalls(context.Background()); err == nil {
		t.Fatalf("expected error from 502")
	}
	if _, ok, _ := cache.Get(context.Background()); ok {
		t.Fatalf("cache must be invalid after a failure")
	}

	fail.Store(false)
	if _, err := c.FetchActiveCalls(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected every post-failure call to hit the network, got %d hits", hits)
	}
}

func TestFetchActiveCalls_CancellationIsNotAFailure(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}, nil)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.FetchActiveCalls(ctx)
		errCh <- err
	}()

	<-started
	cancel()

	err := <-errCh
	if !IsCanceled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if IsTransient(err) {
		t.Fatalf("cancellation must never count toward the retry budget")
	}
}

func TestFetchActiveCalls_TimeoutIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_, err = c.FetchActiveCalls(context.Background())
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatalf("timeouts must count toward the retry budget")
	}
	if IsCanceled(err) {
		t.Fatalf("timeout must not classify as cancellation")
	}
}

func TestMemoryCache_TTLWindow(t *testing.T) {
	cache := NewMemoryCache(2 * time.Second)
	now := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	if _, ok, _ := cache.Get(ctx); ok {
		t.Fatalf("empty cache must miss")
	}
	cache.Set(ctx, nil)
	if _, ok, _ := cache.Get(ctx); !ok {
		t.Fatalf("fresh entry must hit")
	}
	now = now.Add(2 * time.Second)
	if _, ok, _ := cache.Get(ctx); ok {
		t.Fatalf("entry at TTL boundary must miss")
	}
}

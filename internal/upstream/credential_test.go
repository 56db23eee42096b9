package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aiverse/server/internal/observability"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type tokenServer struct {
	*httptest.Server
	exchanges int32
	expiresIn int
	omitToken bool
}

func newTokenServer(t *testing.T, expiresIn int) *tokenServer {
	t.Helper()
	ts := &tokenServer{expiresIn: expiresIn}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&ts.exchanges, 1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("client_id") != "id" || r.PostForm.Get("client_secret") != "secret" {
			http.Error(w, "bad client", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if ts.omitToken {
			_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
			return
		}
		if ts.expiresIn == 0 {
			fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer"}`, n)
			return
		}
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":%d}`, n, ts.expiresIn)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestCredentialCache(t *testing.T, tokenURL string, clock Clock, metrics *observability.Metrics) *CredentialCache {
	t.Helper()
	logger := zaptest.NewLogger(t)
	retrier := NewRetrier(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, logger,
		WithSleeper((&recordingSleeper{}).sleep))
	caller := NewCaller("spotify", nil, retrier, logger)

	cache, err := NewCredentialCache(CredentialConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     tokenURL,
	}, caller, clock, metrics, logger)
	require.NoError(t, err)
	return cache
}

func TestCredentialCacheReuse(t *testing.T) {
	server := newTokenServer(t, 3600)
	clock := newFakeClock()
	cache := newTestCredentialCache(t, server.URL, clock, nil)
	ctx := context.Background()

	first, err := cache.Token(ctx)
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	second, err := cache.Token(ctx)
	require.NoError(t, err)

	assert.Equal(t, "token-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.exchanges))
}

func TestCredentialCacheRefreshAfterExpiry(t *testing.T) {
	server := newTokenServer(t, 3600)
	clock := newFakeClock()
	metrics := observability.NewMetrics()
	cache := newTestCredentialCache(t, server.URL, clock, metrics)
	ctx := context.Background()

	_, err := cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(3600*time.Second-60*time.Second), cache.Expiry())

	// inside the safety margin the token is already considered stale
	clock.Advance(3600*time.Second - 30*time.Second)
	token, err := cache.Token(ctx)
	require.NoError(t, err)

	assert.Equal(t, "token-2", token)
	assert.Equal(t, int32(2), atomic.LoadInt32(&server.exchanges))
	assert.Equal(t, 2.0, counterValue(t, metrics, "aiverse_credential_refresh_total",
		map[string]string{"upstream": "spotify", "outcome": "success"}))
}

func TestCredentialCacheDefaultLifetime(t *testing.T) {
	server := newTokenServer(t, 0)
	clock := newFakeClock()
	cache := newTestCredentialCache(t, server.URL, clock, nil)

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour-time.Minute), cache.Expiry())
}

func TestCredentialCacheShortLifetime(t *testing.T) {
	server := newTokenServer(t, 30)
	clock := newFakeClock()
	cache := newTestCredentialCache(t, server.URL, clock, nil)

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.True(t, cache.Expiry().After(clock.Now()))
}

func TestCredentialCacheInvalidate(t *testing.T) {
	server := newTokenServer(t, 3600)
	cache := newTestCredentialCache(t, server.URL, newFakeClock(), nil)
	ctx := context.Background()

	_, err := cache.Token(ctx)
	require.NoError(t, err)
	cache.Invalidate()
	assert.True(t, cache.Expiry().IsZero())

	token, err := cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func TestCredentialCacheMissingAccessToken(t *testing.T) {
	server := newTokenServer(t, 3600)
	server.omitToken = true
	cache := newTestCredentialCache(t, server.URL, newFakeClock(), nil)

	_, err := cache.Token(context.Background())
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
}

func TestCredentialCacheEndpointDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := newTestCredentialCache(t, server.URL, newFakeClock(), nil)

	_, err := cache.Token(context.Background())
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestCredentialCacheConcurrentCallersShareRefresh(t *testing.T) {
	server := newTokenServer(t, 3600)
	cache := newTestCredentialCache(t, server.URL, newFakeClock(), nil)

	var wg sync.WaitGroup
	tokens := make([]string, 16)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := cache.Token(context.Background())
			assert.NoError(t, err)
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	for _, token := range tokens {
		assert.Equal(t, "token-1", token)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.exchanges))
}

func TestValidateCredentialConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  CredentialConfig
		wantErr bool
	}{
		{"valid", CredentialConfig{ClientID: "a", ClientSecret: "b", TokenURL: "https://accounts.example.com/api/token"}, false},
		{"missing secret", CredentialConfig{ClientID: "a", TokenURL: "https://accounts.example.com/api/token"}, true},
		{"missing url", CredentialConfig{ClientID: "a", ClientSecret: "b"}, true},
		{"negative margin", CredentialConfig{ClientID: "a", ClientSecret: "b", TokenURL: "https://x.example.com", SafetyMargin: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentialConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCredentialConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

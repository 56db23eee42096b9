package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCaller(t *testing.T, sleeper *recordingSleeper) *Caller {
	t.Helper()
	logger := zaptest.NewLogger(t)
	retrier := NewRetrier(RetryConfig{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond}, logger,
		WithSleeper(sleeper.sleep))
	return NewCaller("test", nil, retrier, logger)
}

func TestCallerRetryExhaustion(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	caller := newTestCaller(t, sleeper)

	_, err := caller.Call(context.Background(), Request{
		Method:      MethodGet,
		Endpoint:    server.URL,
		MaxAttempts: 3,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.Len(t, sleeper.recorded(), 2)
}

func TestCallerRecoversAfterTransientFailure(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	caller := newTestCaller(t, &recordingSleeper{})

	resp, err := caller.Call(context.Background(), Request{Method: MethodGet, Endpoint: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, resp.Decode(&body))
	assert.True(t, body.OK)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCallerRejectsUnsupportedMethod(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	caller := newTestCaller(t, &recordingSleeper{})

	_, err := caller.Call(context.Background(), Request{Method: Method("PATCH"), Endpoint: server.URL})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestCallerPayloadEncoding(t *testing.T) {
	type captured struct {
		method      string
		query       url.Values
		contentType string
		body        string
		header      string
	}
	requests := make(chan captured, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- captured{
			method:      r.Method,
			query:       r.URL.Query(),
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
			header:      r.Header.Get("X-Test"),
		}
	}))
	defer server.Close()

	caller := newTestCaller(t, &recordingSleeper{})
	ctx := context.Background()

	t.Run("GET query", func(t *testing.T) {
		_, err := caller.Call(ctx, Request{
			Method:   MethodGet,
			Endpoint: server.URL + "?fixed=1",
			Headers:  map[string]string{"X-Test": "yes"},
			Payload:  map[string]string{"q": "eye of the tiger"},
		})
		require.NoError(t, err)
		got := <-requests
		assert.Equal(t, http.MethodGet, got.method)
		assert.Equal(t, "eye of the tiger", got.query.Get("q"))
		assert.Equal(t, "1", got.query.Get("fixed"))
		assert.Equal(t, "yes", got.header)
	})

	t.Run("POST form", func(t *testing.T) {
		_, err := caller.Call(ctx, Request{
			Method:   MethodPost,
			Endpoint: server.URL,
			Payload:  url.Values{"grant_type": {"client_credentials"}},
		})
		require.NoError(t, err)
		got := <-requests
		assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
		assert.Equal(t, "grant_type=client_credentials", got.body)
	})

	t.Run("POST json", func(t *testing.T) {
		_, err := caller.Call(ctx, Request{
			Method:   MethodPost,
			Endpoint: server.URL,
			Payload:  map[string]any{"text": "hello"},
		})
		require.NoError(t, err)
		got := <-requests
		assert.Equal(t, "application/json", got.contentType)
		var decoded map[string]string
		require.NoError(t, json.Unmarshal([]byte(got.body), &decoded))
		assert.Equal(t, "hello", decoded["text"])
	})

	t.Run("DELETE raw", func(t *testing.T) {
		_, err := caller.Call(ctx, Request{Method: MethodDelete, Endpoint: server.URL + "/voices/abc"})
		require.NoError(t, err)
		got := <-requests
		assert.Equal(t, http.MethodDelete, got.method)
	})
}

func TestCallerBodyIsRebuiltPerAttempt(t *testing.T) {
	var hits int32
	bodies := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- string(body)
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	caller := newTestCaller(t, &recordingSleeper{})
	_, err := caller.Call(context.Background(), Request{
		Method:   MethodPost,
		Endpoint: server.URL,
		Payload:  RawBody{ContentType: "text/plain", Data: []byte("sample")},
	})
	require.NoError(t, err)
	assert.Equal(t, "sample", <-bodies)
	assert.Equal(t, "sample", <-bodies)
}

func TestCallerInvalidPayloadIsPermanent(t *testing.T) {
	caller := newTestCaller(t, &recordingSleeper{})

	_, err := caller.Call(context.Background(), Request{
		Method:   MethodGet,
		Endpoint: "http://127.0.0.1:1",
		Payload:  42,
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUpstreamUnavailable))
}

func TestCallerOpenStreamsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("chunk-1chunk-2"))
	}))
	defer server.Close()

	caller := newTestCaller(t, &recordingSleeper{})
	resp, err := caller.Open(context.Background(), Request{Method: MethodPost, Endpoint: server.URL})
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "chunk-1chunk-2", string(data))
}

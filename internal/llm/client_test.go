package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *Config {
	return &Config{
		APIKey:      "test-key",
		APIURL:      url,
		Model:       "test-model",
		MaxTokens:   2048,
		Temperature: 0.1,
		Timeout:     30,
	}
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(testConfig("https://api.example.com"), DefaultRetryPolicy())
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.Equal(t, "test-model", client.Model())

	// Trailing slash is normalized away.
	client, err = NewClient(testConfig("https://api.example.com/v1/"), DefaultRetryPolicy())
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", client.baseURL)

	// Missing model is invalid.
	invalid := testConfig("https://api.example.com")
	invalid.Model = ""
	_, err = NewClient(invalid, DefaultRetryPolicy())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestComplete_Success(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "test-id",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Ciao mondo"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), fastRetry(3))
	require.NoError(t, err)

	content, err := client.Complete(context.Background(), "translate this")
	require.NoError(t, err)
	assert.Equal(t, "Ciao mondo", content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestComplete_NoAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIKey = ""
	client, err := NewClient(cfg, fastRetry(1))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "hello")
	require.NoError(t, err)
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), fastRetry(3))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "hello")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, apiErr.Temporary())
	// All three attempts were spent before surfacing the failure.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestComplete_RecoverAfterTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "done"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), fastRetry(3))
	require.NoError(t, err)

	content, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "done", content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestComplete_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), fastRetry(3))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "hello")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestComplete_MalformedResponseNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"object": "chat.completion", "choices": []}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), fastRetry(3))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "hello")
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestComplete_NetworkErrorRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing is listening anymore

	client, err := NewClient(testConfig(server.URL), fastRetry(2))
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Complete(context.Background(), "hello")
	require.Error(t, err)
	// Two attempts with at least one backoff in between.
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.True(t, p.ShouldRetry(&APIError{StatusCode: 503}))
	assert.True(t, p.ShouldRetry(&APIError{StatusCode: 500}))
	assert.False(t, p.ShouldRetry(&APIError{StatusCode: 404}))
	assert.False(t, p.ShouldRetry(&APIError{StatusCode: 429}))
	assert.False(t, p.ShouldRetry(ErrMalformedResponse))
	assert.False(t, p.ShouldRetry(context.Canceled))
	assert.False(t, p.ShouldRetry(nil))
}

func TestRetryPolicy_DelayGrows(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	first := p.Delay(1)
	second := p.Delay(2)
	assert.GreaterOrEqual(t, first, 100*time.Millisecond)
	assert.GreaterOrEqual(t, second, 200*time.Millisecond)
	assert.LessOrEqual(t, p.Delay(10), time.Second+time.Second/4)
}

package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amt2283/hunterleaf-go/internal/errors"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
	}
}

func TestGetJSONWithRetrySuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": 42}`))
	}))
	defer server.Close()

	client := New(nil)
	defer client.Close()

	var result struct {
		Value int `json:"value"`
	}
	err := GetJSONWithRetry(context.Background(), client, server.URL, nil, &result, fastPolicy(5), nil)

	require.NoError(t, err)
	assert.Equal(t, 42, result.Value)
}

func TestGetJSONWithRetryExhaustsBudget(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(nil)
	defer client.Close()

	err := GetJSONWithRetry(context.Background(), client, server.URL, nil, nil, fastPolicy(5), nil)

	require.Error(t, err)
	assert.Equal(t, int32(5), requests.Load())
	assert.Equal(t, errors.CategoryNetwork, errors.CategoryOf(err))
}

func TestGetJSONWithRetryRecoversAfterTransientFailures(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := New(nil)
	defer client.Close()

	var result struct {
		OK bool `json:"ok"`
	}
	err := GetJSONWithRetry(context.Background(), client, server.URL, nil, &result, fastPolicy(5), nil)

	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int32(3), requests.Load())
}

func TestGetJSONWithRetryStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(nil)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
	err := GetJSONWithRetry(ctx, client, server.URL, nil, nil, policy, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, requests.Load(), int32(1))
}

func TestGetJSONWithRetryNonRetryableStatusCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		category errors.ErrorCategory
	}{
		{http.StatusUnauthorized, errors.CategoryConfiguration},
		{http.StatusNotFound, errors.CategoryNotFound},
		{http.StatusTooManyRequests, errors.CategoryLimit},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := New(nil)
			defer client.Close()

			err := GetJSONWithRetry(context.Background(), client, server.URL, nil, nil, fastPolicy(2), nil)
			require.Error(t, err)
			assert.Equal(t, tt.category, errors.CategoryOf(err))
		})
	}
}

func TestRetryPolicyNormalized(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{}.normalized()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Second, p.InitialDelay)
	assert.Equal(t, 300*time.Second, p.MaxDelay)

	custom := RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}.normalized()
	assert.Equal(t, 1, custom.MaxAttempts)
}

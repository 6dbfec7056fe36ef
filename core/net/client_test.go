package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwen-abid/wallet-sdk-go/errors"
)

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(WithMaxRetries(3), WithRetryBackoff(time.Millisecond))
	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	out, err := DecodeJSON[struct {
		OK bool `json:"ok"`
	}](resp)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	client := NewClient(WithMaxRetries(3), WithRetryBackoff(time.Millisecond))
	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = DecodeJSON[map[string]any](resp)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.REQUEST_FAILED))
	assert.Contains(t, err.Error(), "invalid token")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_ExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(WithMaxRetries(1), WithRetryBackoff(time.Millisecond))
	_, err := client.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.NETWORK_ERROR))
}

func TestClient_SendsBearerAndReplaysBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"asset_code":"USDC"}`, string(body))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(WithMaxRetries(2), WithRetryBackoff(time.Millisecond))
	resp, err := client.PostJSON(context.Background(), srv.URL, map[string]string{"asset_code": "USDC"}, WithBearer("tok"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDecodeJSON_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	resp, err := NewClient().Get(context.Background(), srv.URL)
	require.NoError(t, err)

	_, err = DecodeJSON[map[string]any](resp)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.INVALID_RESPONSE))
}

func TestCircuitBreaker(t *testing.T) {
	cb := &circuitBreaker{failureLimit: 2, resetTimeout: time.Hour}
	assert.True(t, cb.allowRequest())

	cb.recordFailure()
	assert.True(t, cb.allowRequest())
	cb.recordFailure()
	assert.False(t, cb.allowRequest())

	cb.recordSuccess()
	assert.True(t, cb.allowRequest())
}

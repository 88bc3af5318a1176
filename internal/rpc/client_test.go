// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylus-tools/stylus-trace/internal/errors"
)

const testHash = "0x" + "ab12" + "0000000000000000000000000000000000000000000000000000000000" + "cd"

// fastRetryClient keeps retry tests off the wall clock.
func fastRetryClient(url string) *Client {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return &Client{URL: url, retrier: NewRetrier(cfg, http.DefaultClient)}
}

func TestFetchTrace_Success(t *testing.T) {
	trace := `[{"name":"user_entrypoint","args":"0x","outs":"0x","startInk":100,"endInk":0}]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "debug_traceTransaction", req.Method)
		require.Len(t, req.Params, 2)
		assert.Contains(t, string(req.Params[0]), testHash)
		assert.Contains(t, string(req.Params[1]), `"tracer":"stylusTracer"`)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":`+trace+`}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	got, err := client.FetchTrace(context.Background(), testHash, "")
	require.NoError(t, err)
	assert.JSONEq(t, trace, string(got))
}

func TestFetchTrace_TransactionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"transaction not found"}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.FetchTrace(context.Background(), testHash, "")
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestFetchTrace_NullResultIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":null}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.FetchTrace(context.Background(), testHash, "")
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestFetchTrace_NodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.FetchTrace(context.Background(), testHash, "")
	assert.ErrorIs(t, err, errors.ErrRPCConnectionFailed)
	assert.Contains(t, err.Error(), "method not found")
}

func TestFetchTrace_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		// The retried request must carry the full body again.
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "debug_traceTransaction")
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":[]}`)
	}))
	defer srv.Close()

	client := fastRetryClient(srv.URL)
	got, err := client.FetchTrace(context.Background(), testHash, "")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchTrace_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := fastRetryClient(srv.URL)
	_, err := client.FetchTrace(context.Background(), testHash, "")
	assert.ErrorIs(t, err, errors.ErrRPCConnectionFailed)
	assert.Equal(t, int32(4), calls.Load(), "initial attempt plus three retries")
}

func TestFetchTrace_InvalidHashNeverHitsTheWire(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.FetchTrace(context.Background(), "0xnothex", "")
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Zero(t, calls.Load())
}

func TestFetchTrace_BearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":[]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "s3cret")
	_, err := client.FetchTrace(context.Background(), testHash, "")
	require.NoError(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("", "")
	assert.Equal(t, DefaultRPCURL, client.URL)
}

func TestValidateTransactionHash(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 32)

	tests := []struct {
		name string
		hash string
		ok   bool
	}{
		{name: "valid lowercase", hash: valid, ok: true},
		{name: "valid mixed case", hash: "0x" + strings.Repeat("Ab", 32), ok: true},
		{name: "empty", hash: "", ok: false},
		{name: "missing prefix", hash: strings.Repeat("ab", 32), ok: false},
		{name: "too short", hash: "0xabcd", ok: false},
		{name: "too long", hash: valid + "00", ok: false},
		{name: "non-hex", hash: "0x" + strings.Repeat("zz", 32), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransactionHash(tt.hash)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, errors.ErrValidation)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("http://localhost:8547"))
	assert.NoError(t, ValidateURL("https://nitro.example.com/rpc"))
	assert.ErrorIs(t, ValidateURL(""), errors.ErrValidation)
	assert.ErrorIs(t, ValidateURL("ftp://example.com"), errors.ErrValidation)
	assert.ErrorIs(t, ValidateURL("http://"), errors.ErrValidation)
}

func TestGetRetryAfter(t *testing.T) {
	r := NewRetrier(DefaultRetryConfig(), nil)

	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Duration(0), r.getRetryAfter(resp))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, r.getRetryAfter(resp))

	resp.Header.Set("Retry-After", time.Now().Add(30*time.Second).UTC().Format(time.RFC1123))
	after := r.getRetryAfter(resp)
	assert.Greater(t, after, 20*time.Second)
	assert.LessOrEqual(t, after, 30*time.Second)

	resp.Header.Set("Retry-After", "garbage")
	assert.Equal(t, time.Duration(0), r.getRetryAfter(resp))
}

func TestNextBackoff_CapsAtMax(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.JitterFraction = 0
	r := NewRetrier(cfg, nil)

	b := cfg.InitialBackoff
	for i := 0; i < 10; i++ {
		b = r.nextBackoff(b)
		assert.LessOrEqual(t, b, cfg.MaxBackoff)
	}
	assert.Equal(t, cfg.MaxBackoff, b)
}

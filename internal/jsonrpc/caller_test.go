package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcHandler(t *testing.T, handle func(req Request) Response) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, Version, req.JSONRPC)

		resp := handle(req)
		resp.JSONRPC = Version
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestCallSuccess(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, func(req Request) Response {
		assert.Equal(t, "echo", req.Method)
		result, _ := json.Marshal(map[string]string{"value": "ok"})
		return Response{ID: req.ID, Result: result}
	}))
	defer srv.Close()

	caller, err := NewCaller(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	defer caller.Close()

	var out struct {
		Value string `json:"value"`
	}
	err = caller.Call(context.Background(), "echo", map[string]string{"in": "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
}

func TestCallIDsIncrease(t *testing.T) {
	var seen []int64
	srv := httptest.NewServer(rpcHandler(t, func(req Request) Response {
		seen = append(seen, req.ID)
		return Response{ID: req.ID, Result: json.RawMessage(`null`)}
	}))
	defer srv.Close()

	caller, err := NewCaller(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	defer caller.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, caller.Call(context.Background(), "noop", nil, nil))
	}

	require.Len(t, seen, 3)
	assert.Less(t, seen[0], seen[1])
	assert.Less(t, seen[1], seen[2])
}

func TestCallErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		check  func(t *testing.T, err error)
	}{
		{
			name: "invalid params",
			code: CodeInvalidParams,
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				assert.ErrorAs(t, err, &ve)
			},
		},
		{
			name: "not found",
			code: CodeNotFound,
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				assert.ErrorAs(t, err, &nf)
			},
		},
		{
			name: "not authenticated",
			code: CodeNotAuthenticated,
			check: func(t *testing.T, err error) {
				var ae *AuthenticationError
				assert.ErrorAs(t, err, &ae)
			},
		},
		{
			name: "method not found",
			code: CodeMethodNotFound,
			check: func(t *testing.T, err error) {
				var re *RPCError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, CodeMethodNotFound, re.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(rpcHandler(t, func(req Request) Response {
				return Response{ID: req.ID, Error: &ErrorObject{Code: tt.code, Message: tt.name}}
			}))
			defer srv.Close()

			caller, err := NewCaller(Config{Endpoint: srv.URL})
			require.NoError(t, err)
			defer caller.Close()

			err = caller.Call(context.Background(), "fail", nil, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCallRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(Response{JSONRPC: Version, ID: req.ID, Result: json.RawMessage(`"done"`)})
	}))
	defer srv.Close()

	caller, err := NewCaller(Config{
		Endpoint:        srv.URL,
		MaxRetries:      3,
		BackoffMaxDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer caller.Close()

	var out string
	err = caller.Call(context.Background(), "flaky", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, int64(3), calls.Load())
}

func TestCallDoesNotRetryRPCErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(rpcHandler(t, func(req Request) Response {
		calls.Add(1)
		return Response{ID: req.ID, Error: &ErrorObject{Code: CodeInvalidParams, Message: "bad input"}}
	}))
	defer srv.Close()

	caller, err := NewCaller(Config{Endpoint: srv.URL, MaxRetries: 5})
	require.NoError(t, err)
	defer caller.Close()

	err = caller.Call(context.Background(), "fail", nil, nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, int64(1), calls.Load())
}

func TestCallConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Reject connections from now on.

	caller, err := NewCaller(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	err = caller.Call(context.Background(), "anything", nil, nil)
	var ce *ConnectionError
	assert.ErrorAs(t, err, &ce)
}

func TestCallMismatchedResponseID(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(rpcHandler(t, func(req Request) Response {
		calls.Add(1)
		return Response{ID: req.ID + 100, Result: json.RawMessage(`null`)}
	}))
	defer srv.Close()

	caller, err := NewCaller(Config{Endpoint: srv.URL, MaxRetries: 3})
	require.NoError(t, err)
	defer caller.Close()

	err = caller.Call(context.Background(), "confused", nil, nil)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.ErrorContains(t, err, "id mismatch")
	assert.Equal(t, int64(1), calls.Load(), "a mismatched id is not retried")
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client going away;
		// otherwise the handler outlives the test and Close blocks.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	caller, err := NewCaller(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer caller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = caller.Call(ctx, "slow", nil, nil)
	var te *TimeoutError
	assert.ErrorAs(t, err, &te)
}

func TestCallAuthStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	caller, err := NewCaller(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	defer caller.Close()

	err = caller.Call(context.Background(), "secured", nil, nil)
	var ae *AuthenticationError
	assert.ErrorAs(t, err, &ae)
}

func TestCallSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(Response{JSONRPC: Version, ID: req.ID, Result: json.RawMessage(`null`)})
	}))
	defer srv.Close()

	caller, err := NewCaller(Config{Endpoint: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	defer caller.Close()

	require.NoError(t, caller.Call(context.Background(), "secured", nil, nil))
}

package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMCPServer answers initialize, tools/list and tools/call over HTTP.
func fakeMCPServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Mcp-Session-Id", "sess-1")

		var result any
		switch req.Method {
		case "initialize":
			result = map[string]any{"capabilities": map[string]any{"tools": map[string]any{}}}
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
			return
		case "tools/list":
			result = map[string]any{"tools": []map[string]any{
				{"name": "search_docs", "description": "Search the docs"},
			}}
		case "tools/call":
			if r.Header.Get("Authorization") != "Bearer token-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			result = map[string]any{"content": []map[string]any{{"type": "text", "text": "tool output"}}}
		default:
			_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "method not found"}})
			return
		}
		raw, _ := json.Marshal(result)
		_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: raw})
	}))
}

func TestHTTPTransport_RoundTrip(t *testing.T) {
	srv := fakeMCPServer(t)
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "token-123", 0)
	ctx := context.Background()

	require.NoError(t, tr.Connect(ctx))
	assert.True(t, tr.IsConnected())

	schemas, err := tr.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "search_docs", schemas[0].Name)

	result, err := tr.CallTool(ctx, "search_docs", map[string]any{"q": "x"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	normalized := NormalizeRaw("search_docs", result.Output)
	require.Len(t, normalized, 1)
	assert.Equal(t, "tool output", normalized[0].Body)

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
}

func TestHTTPTransport_NotConnected(t *testing.T) {
	tr := NewHTTPTransport("http://127.0.0.1:1", "", 0)
	_, err := tr.ListTools(context.Background())
	assert.Error(t, err)
}

func TestHTTPTransport_ConnectFailure(t *testing.T) {
	tr := NewHTTPTransport("http://127.0.0.1:1", "", 0)
	err := tr.Connect(context.Background())
	assert.Error(t, err)
	assert.False(t, tr.IsConnected())
}

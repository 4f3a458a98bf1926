package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"researchnerd/internal/logging"
)

// WebsocketTransport speaks JSON-RPC over a websocket connection, matching
// requests to responses by id the same way the stdio transport does.
type WebsocketTransport struct {
	mu sync.Mutex

	url   string
	token string

	conn        *websocket.Conn
	connected   bool
	pendingReqs map[int]chan *rpcResponse
	nextID      int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWebsocketTransport creates a transport dialing url with an optional
// bearer token.
func NewWebsocketTransport(url, token string) *WebsocketTransport {
	return &WebsocketTransport{
		url:         url,
		token:       token,
		pendingReqs: make(map[int]chan *rpcResponse),
		nextID:      1,
		done:        make(chan struct{}),
	}
}

// Connect dials the server, starts the reader loop, and runs the initialize
// handshake.
func (t *WebsocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}

	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.url, header)
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to dial MCP websocket %s: %w", t.url, err)
	}

	t.conn = conn
	t.connected = true
	t.wg.Add(1)
	go t.readLoop()
	t.mu.Unlock()

	if _, err := t.call(ctx, "initialize", initializeParams()); err != nil {
		_ = t.Close()
		return fmt.Errorf("initialize handshake failed: %w", err)
	}
	notif, _ := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: "notifications/initialized"})
	t.mu.Lock()
	if t.conn != nil {
		_ = t.conn.WriteMessage(websocket.TextMessage, notif)
	}
	t.mu.Unlock()

	logging.Get(logging.CategoryMCP).Info("MCP websocket transport connected to %s", t.url)
	return nil
}

// Close shuts the socket and unblocks pending calls.
func (t *WebsocketTransport) Close() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	if t.conn != nil {
		_ = t.conn.Close()
	}
	close(t.done)
	for id, ch := range t.pendingReqs {
		close(ch)
		delete(t.pendingReqs, id)
	}
	t.mu.Unlock()

	t.wg.Wait()
	return nil
}

func (t *WebsocketTransport) readLoop() {
	defer t.wg.Done()
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			connected := t.connected
			t.mu.Unlock()
			if connected {
				logging.Get(logging.CategoryMCP).Warn("websocket read error: %v", err)
			}
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			logging.Get(logging.CategoryMCP).Warn("failed to parse websocket message: %v", err)
			continue
		}
		if resp.ID == 0 && resp.Result == nil && resp.Error == nil {
			logging.Get(logging.CategoryMCP).Debug("notification: %s", string(data))
			continue
		}

		t.mu.Lock()
		ch, exists := t.pendingReqs[resp.ID]
		if exists {
			delete(t.pendingReqs, resp.ID)
		}
		t.mu.Unlock()
		if exists {
			ch <- &resp
		}
	}
}

func (t *WebsocketTransport) call(ctx context.Context, method string, params any) (*rpcResponse, error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil, fmt.Errorf("not connected to MCP server")
	}
	id := t.nextID
	t.nextID++
	ch := make(chan *rpcResponse, 1)
	t.pendingReqs[id] = ch

	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to write to websocket: %w", err)
	}
	t.mu.Unlock()

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, fmt.Errorf("connection closed")
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, ctx.Err()
	}
}

// ListTools retrieves available tools from the server.
func (t *WebsocketTransport) ListTools(ctx context.Context) ([]ToolSchema, error) {
	resp, err := t.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	var result struct {
		Tools []ToolSchema `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools response: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool on the server.
func (t *WebsocketTransport) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	start := time.Now()
	resp, err := t.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &CallResult{Success: false, Error: err.Error(), LatencyMs: latency}, nil
	}
	return &CallResult{Success: true, Output: resp.Result, LatencyMs: latency}, nil
}

// IsConnected reports connection state.
func (t *WebsocketTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

var _ Transport = (*WebsocketTransport)(nil)

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"researchnerd/internal/logging"
)

// StdioTransport speaks JSON-RPC over a subprocess's stdin/stdout, one
// message per line.
type StdioTransport struct {
	mu sync.Mutex

	command string
	args    []string
	env     map[string]string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	connected   bool
	initialized bool
	pendingReqs map[int]chan *rpcResponse
	nextID      int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewStdioTransport creates a transport that will spawn command with args.
func NewStdioTransport(command string, args []string, env map[string]string) *StdioTransport {
	return &StdioTransport{
		command:     command,
		args:        args,
		env:         env,
		pendingReqs: make(map[int]chan *rpcResponse),
		nextID:      1,
		done:        make(chan struct{}),
	}
}

// Connect starts the subprocess, the reader loops, and runs the initialize
// handshake.
func (t *StdioTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	if t.command == "" {
		t.mu.Unlock()
		return fmt.Errorf("empty command for stdio transport")
	}

	t.cmd = exec.Command(t.command, t.args...)
	if len(t.env) > 0 {
		t.cmd.Env = os.Environ()
		for k, v := range t.env {
			t.cmd.Env = append(t.cmd.Env, k+"="+v)
		}
	}

	var err error
	if t.stdin, err = t.cmd.StdinPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	if t.stdout, err = t.cmd.StdoutPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if t.stderr, err = t.cmd.StderrPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := t.cmd.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to start command %s: %w", t.command, err)
	}

	t.connected = true
	t.wg.Add(2)
	go t.readStderr()
	go t.readStdout()
	t.mu.Unlock()

	// The handshake must run without the lock held: the reader goroutine
	// needs the lock to dispatch the response.
	if err := t.initialize(ctx); err != nil {
		_ = t.Close()
		return fmt.Errorf("initialize handshake failed: %w", err)
	}
	return nil
}

func (t *StdioTransport) initialize(ctx context.Context) error {
	t.mu.Lock()
	already := t.initialized
	t.mu.Unlock()
	if already {
		return nil
	}

	if _, err := t.call(ctx, "initialize", initializeParams()); err != nil {
		return err
	}

	notif, _ := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: "notifications/initialized"})
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stdin != nil {
		_, _ = t.stdin.Write(append(notif, '\n'))
	}
	t.initialized = true
	return nil
}

// Close kills the process and releases the reader goroutines.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false

	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	if t.stdin != nil {
		_ = t.stdin.Close()
	}
	close(t.done)
	for id, ch := range t.pendingReqs {
		close(ch)
		delete(t.pendingReqs, id)
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		logging.Get(logging.CategoryMCP).Warn("timeout waiting for stdio transport goroutines to exit")
	}
	return nil
}

func (t *StdioTransport) readStderr() {
	defer t.wg.Done()
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		logging.Get(logging.CategoryMCP).Debug("[%s stderr] %s", t.command, scanner.Text())
	}
}

func (t *StdioTransport) readStdout() {
	defer t.wg.Done()
	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			logging.Get(logging.CategoryMCP).Warn("failed to parse stdout line: %v", err)
			continue
		}
		if resp.ID == 0 && resp.Result == nil && resp.Error == nil {
			// Server notification; nothing waits on these.
			logging.Get(logging.CategoryMCP).Debug("notification: %s", string(line))
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
		} else {
			logging.Get(logging.CategoryMCP).Warn("response for unknown request id %d", resp.ID)
		}
	}

	if err := scanner.Err(); err != nil {
		t.mu.Lock()
		connected := t.connected
		t.mu.Unlock()
		if connected {
			logging.Get(logging.CategoryMCP).Error("error reading stdout: %v", err)
		}
	}
}

// call sends a request and waits for the matching response.
func (t *StdioTransport) call(ctx context.Context, method string, params any) (*rpcResponse, error) {
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
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to write to stdin: %w", err)
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
func (t *StdioTransport) ListTools(ctx context.Context) ([]ToolSchema, error) {
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
func (t *StdioTransport) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	start := time.Now()
	resp, err := t.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &CallResult{Success: false, Error: err.Error(), LatencyMs: latency}, nil
	}
	return &CallResult{Success: true, Output: resp.Result, LatencyMs: latency}, nil
}

// IsConnected reports connection state.
func (t *StdioTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

var _ Transport = (*StdioTransport)(nil)

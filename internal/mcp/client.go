package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"researchnerd/internal/logging"
)

// ClientManager owns the per-task MCP client. The client is created lazily
// under a lock, reused for the task's lifetime, and released on Close;
// transports handle their own shutdown.
type ClientManager struct {
	configs []ServerConfig

	mu     sync.Mutex
	client *client
}

// NewClientManager creates a manager for the task's server configs.
func NewClientManager(configs []ServerConfig) *ClientManager {
	return &ClientManager{configs: configs}
}

// client is the connected state: one transport per server plus a routing
// table from tool name to server.
type client struct {
	transports map[string]Transport
	toolServer map[string]string
	tools      []Tool
}

// getOrCreate connects all configured servers on first use. A server that
// fails to connect is skipped with a warning; the task proceeds with the
// rest.
func (m *ClientManager) getOrCreate(ctx context.Context) (*client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}
	if len(m.configs) == 0 {
		return nil, fmt.Errorf("no MCP server configurations found")
	}

	c := &client{
		transports: make(map[string]Transport),
		toolServer: make(map[string]string),
	}

	for i, cfg := range m.configs {
		name := cfg.Name
		if name == "" {
			name = fmt.Sprintf("mcp_server_%d", i+1)
		}

		var transport Transport
		switch cfg.Transport() {
		case TransportWebsocket:
			transport = NewWebsocketTransport(cfg.ConnectionURL, cfg.ConnectionToken)
		case TransportHTTP:
			transport = NewHTTPTransport(cfg.ConnectionURL, cfg.ConnectionToken, 30*time.Second)
		default:
			transport = NewStdioTransport(cfg.Command, cfg.Args, cfg.Env)
		}

		if err := transport.Connect(ctx); err != nil {
			logging.Get(logging.CategoryMCP).Warn("failed to connect to MCP server %s: %v", name, err)
			continue
		}

		tools, err := transport.ListTools(ctx)
		if err != nil {
			logging.Get(logging.CategoryMCP).Warn("failed to list tools from %s: %v", name, err)
			_ = transport.Close()
			continue
		}

		c.transports[name] = transport
		for _, schema := range tools {
			if cfg.ToolName != "" && schema.Name != cfg.ToolName {
				continue
			}
			c.toolServer[schema.Name] = name
			c.tools = append(c.tools, Tool{Server: name, Schema: schema})
		}
		logging.Get(logging.CategoryMCP).Info("connected to MCP server %s (%d tools)", name, len(tools))
	}

	if len(c.transports) == 0 {
		return nil, fmt.Errorf("no MCP server could be reached")
	}

	m.client = c
	return c, nil
}

// AllTools returns every tool across the connected servers, connecting
// lazily on first call.
func (m *ClientManager) AllTools(ctx context.Context) ([]Tool, error) {
	c, err := m.getOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	return c.tools, nil
}

// CallTool routes a tool call to the server that offers it.
func (m *ClientManager) CallTool(ctx context.Context, toolName string, args map[string]any) (*CallResult, error) {
	c, err := m.getOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	server, ok := c.toolServer[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not offered by any connected server", toolName)
	}
	transport := c.transports[server]
	if transport == nil || !transport.IsConnected() {
		return &CallResult{Success: false, Error: fmt.Sprintf("MCP server %s is not connected", server)}, nil
	}
	return transport.CallTool(ctx, toolName, args)
}

// Close releases the client. Transports are closed best-effort; errors are
// logged, never surfaced.
func (m *ClientManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return
	}
	for name, transport := range m.client.transports {
		if err := transport.Close(); err != nil {
			logging.Get(logging.CategoryMCP).Warn("error closing transport %s: %v", name, err)
		}
	}
	m.client = nil
}

// Package mcp exposes Model Context Protocol tool servers as a higher-order
// retriever: tools are discovered over a transport, a strategic LLM selects
// the relevant subset, a tool-bound LLM drives the calls, and every result
// is normalized into a search-hit-shaped record.
package mcp

import (
	"context"
	"encoding/json"
	"strings"
)

// TransportKind selects the wire protocol for a server.
type TransportKind string

const (
	TransportStdio     TransportKind = "stdio"
	TransportWebsocket TransportKind = "websocket"
	TransportHTTP      TransportKind = "streamable_http"
)

// ServerConfig describes one MCP server attached to a task.
type ServerConfig struct {
	Name string `json:"name" yaml:"name"`

	// stdio transport
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// remote transports
	ConnectionURL   string `json:"connection_url,omitempty" yaml:"connection_url,omitempty"`
	ConnectionType  string `json:"connection_type,omitempty" yaml:"connection_type,omitempty"`
	ConnectionToken string `json:"connection_token,omitempty" yaml:"connection_token,omitempty"`

	// ToolName optionally pins a single tool on this server.
	ToolName string `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
}

// Transport resolves the transport kind from the connection URL scheme,
// falling back to the explicit connection type and then to stdio.
func (c ServerConfig) Transport() TransportKind {
	url := c.ConnectionURL
	switch {
	case strings.HasPrefix(url, "wss://"), strings.HasPrefix(url, "ws://"):
		return TransportWebsocket
	case strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"):
		return TransportHTTP
	}
	switch c.ConnectionType {
	case "websocket":
		return TransportWebsocket
	case "http", "streamable_http":
		return TransportHTTP
	}
	return TransportStdio
}

// ToolSchema is the raw tool description served by an MCP server.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Tool binds a schema to the server it was discovered on.
type Tool struct {
	Server string
	Schema ToolSchema
}

// CallResult is the outcome of a single tool invocation.
type CallResult struct {
	Success   bool            `json:"success"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// Result is a normalized research result in the retriever hit shape.
type Result struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// Transport is the wire protocol a server connection speaks.
type Transport interface {
	// Connect establishes the connection and performs the MCP handshake.
	Connect(ctx context.Context) error

	// Close tears the connection down. Safe to call twice.
	Close() error

	// ListTools retrieves the tools the server offers.
	ListTools(ctx context.Context) ([]ToolSchema, error)

	// CallTool invokes a named tool. The built-in transports report every
	// failure, transport errors included, in the CallResult with Success
	// false and return a nil error.
	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)

	// IsConnected reports current connection state.
	IsConnected() bool
}

// jsonrpc framing shared by all transports.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const protocolVersion = "2024-11-05"

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]string{
			"name":    "researchNERD",
			"version": "1.0.0",
		},
	}
}

// Package toolserver implements the in-process MCP tool server bridge:
// nested JSON-RPC 2.0 request handling for consumer-defined tools that run
// inside the SDK process rather than as a separate child. Each nested call
// is addressed to exactly one registered server by name; there is no
// cross-server aggregation or name prefixing.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/flowloop/agentsdk/internal/protocol"
)

// ContentKind enumerates the content item shapes a tool handler may
// return.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentAudio    ContentKind = "audio"
	ContentResource ContentKind = "resource"
)

// Content is one item of a tool call result. Exactly the fields relevant
// to Kind are populated; see ToolResult for usage.
type Content struct {
	Kind ContentKind

	Text string // ContentText

	MimeType string // ContentImage, ContentAudio, ContentResource
	Data     string // ContentImage, ContentAudio: base64 payload

	// ContentResource: an embedded document-ish resource. URI and MimeType
	// determine whether it is translated into a document source (see
	// toDocument).
	URI  string
	Blob string
}

// NewTextContent is a convenience constructor for the common case.
func NewTextContent(text string) Content { return Content{Kind: ContentText, Text: text} }

// ToolResult is what a tool Handler returns.
type ToolResult struct {
	Content []Content
	IsError bool
}

// Handler invokes a registered tool with its call arguments.
type Handler func(ctx context.Context, args map[string]any) (ToolResult, error)

// InputSchema is either a compact mapping of parameter name to a primitive
// type tag ("string", "number", "boolean", "object", "array"), or a full
// JSON Schema object (detected by presence of "type" and "properties" at
// the top level; see normalizeSchema).
type InputSchema map[string]any

// Annotations carries optional tool metadata such as read-only/destructive
// hints; passed through verbatim to tools/list.
type Annotations map[string]any

// Tool is one consumer-registered tool definition.
type Tool struct {
	Name        string
	Description string
	InputSchema InputSchema
	Annotations Annotations
	Handler     Handler
}

// Server is one in-process MCP tool server: a named, fixed set of tools
// addressable from a nested mcp_message control request.
type Server struct {
	Name    string
	Version string

	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewServer creates an empty tool server. Version defaults to "1.0.0" if
// empty.
func NewServer(name, version string) *Server {
	if version == "" {
		version = "1.0.0"
	}
	return &Server{Name: name, Version: version, tools: make(map[string]Tool)}
}

// Register adds a tool to the server. Re-registering a name replaces it
// in place without changing its position in tools/list ordering.
func (s *Server) Register(tool Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[tool.Name]; !exists {
		s.order = append(s.order, tool.Name)
	}
	s.tools[tool.Name] = tool
}

// Registry resolves a server by name for a nested mcp_message request.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*Server
}

// NewRegistry creates an empty server registry.
func NewRegistry() *Registry {
	return &Registry{servers: make(map[string]*Server)}
}

// Add registers a server under its own Name.
func (r *Registry) Add(s *Server) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[s.Name] = s
}

// Names returns the registered server names, for the initialize
// request's sdkMcpServers list.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.servers))
	for n := range r.servers {
		names = append(names, n)
	}
	return names
}

func (r *Registry) get(name string) (*Server, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.servers[name]
	return s, ok
}

// Dispatch routes a nested JSON-RPC message to the named server and
// returns its response. If the server is unknown, a -32601 error response
// is returned rather than an error, since this is itself a valid nested
// JSON-RPC outcome.
func (r *Registry) Dispatch(ctx context.Context, serverName string, msg protocol.RPCRequest) protocol.RPCResponse {
	id := msg.ResponseID()
	server, ok := r.get(serverName)
	if !ok {
		return protocol.NewRPCError(id, protocol.RPCMethodNotFound,
			fmt.Sprintf("Server '%s' not found", serverName))
	}
	return server.handle(ctx, msg)
}

func (s *Server) handle(ctx context.Context, msg protocol.RPCRequest) protocol.RPCResponse {
	id := msg.ResponseID()
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleList(id)
	case "tools/call":
		return s.handleCall(ctx, id, msg.Params)
	case "notifications/initialized":
		resp, _ := protocol.NewRPCSuccess(id, map[string]any{})
		return resp
	default:
		return protocol.NewRPCError(id, protocol.RPCMethodNotFound,
			fmt.Sprintf("Method '%s' not found", msg.Method))
	}
}

// mcpProtocolVersion is advertised during the nested initialize handshake
// (not to be confused with the outer CLI control protocol).
const mcpProtocolVersion = "2024-11-05"

func (s *Server) handleInitialize(id json.RawMessage) protocol.RPCResponse {
	result := map[string]any{
		"protocolVersion": mcpProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.Name,
			"version": s.Version,
		},
	}
	resp, _ := protocol.NewRPCSuccess(id, result)
	return resp
}

func (s *Server) handleList(id json.RawMessage) protocol.RPCResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]map[string]any, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		entry := map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": normalizeSchema(t.InputSchema),
		}
		if len(t.Annotations) > 0 {
			entry["annotations"] = map[string]any(t.Annotations)
		}
		tools = append(tools, entry)
	}
	resp, _ := protocol.NewRPCSuccess(id, map[string]any{"tools": tools})
	return resp
}

// normalizeSchema synthesizes a full JSON Schema from a compact
// param→type mapping, marking every property required. A schema already
// shaped as JSON Schema (has top-level "type" and "properties") passes
// through unchanged.
func normalizeSchema(schema InputSchema) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	_, hasType := schema["type"]
	_, hasProps := schema["properties"]
	if hasType && hasProps {
		return map[string]any(schema)
	}

	properties := make(map[string]any, len(schema))
	required := make([]string, 0, len(schema))
	for name, tag := range schema {
		tagStr, _ := tag.(string)
		if tagStr == "" {
			tagStr = "string"
		}
		properties[name] = map[string]any{"type": tagStr}
		required = append(required, name)
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleCall(ctx context.Context, id json.RawMessage, rawParams json.RawMessage) protocol.RPCResponse {
	var params callToolParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return protocol.NewRPCError(id, protocol.RPCInternalError, err.Error())
		}
	}

	s.mu.RLock()
	tool, ok := s.tools[params.Name]
	s.mu.RUnlock()
	if !ok {
		return protocol.NewRPCError(id, protocol.RPCMethodNotFound,
			fmt.Sprintf("Method 'tools/call' not found: unknown tool %q", params.Name))
	}

	result, err := invokeSafely(ctx, tool.Handler, params.Arguments)
	if err != nil {
		return protocol.NewRPCError(id, protocol.RPCInternalError, err.Error())
	}

	content := make([]map[string]any, 0, len(result.Content))
	for _, c := range result.Content {
		if item, ok := translateContent(c); ok {
			content = append(content, item)
		}
	}
	payload := map[string]any{"content": content}
	if result.IsError {
		payload["is_error"] = true
	}
	resp, err := protocol.NewRPCSuccess(id, payload)
	if err != nil {
		return protocol.NewRPCError(id, protocol.RPCInternalError, err.Error())
	}
	return resp
}

// invokeSafely recovers from a handler panic and reports it the same way
// a returned error is reported (-32603), so one broken tool cannot take
// down the reader.
func invokeSafely(ctx context.Context, h Handler, args map[string]any) (result ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool handler panicked: %v", r)
		}
	}()
	if h == nil {
		return ToolResult{}, fmt.Errorf("tool has no handler")
	}
	return h(ctx, args)
}

// translateContent converts one handler-produced Content item into its
// JSON-RPC wire shape. Resource-link items are dropped.
func translateContent(c Content) (map[string]any, bool) {
	switch c.Kind {
	case ContentText:
		return map[string]any{"type": "text", "text": c.Text}, true
	case ContentImage, ContentAudio:
		return map[string]any{"type": "image", "data": c.Data, "mimeType": c.MimeType}, true
	case ContentResource:
		if doc, ok := toDocument(c); ok {
			return doc, true
		}
		return nil, false
	default:
		return nil, false
	}
}

// toDocument translates an embedded resource into the document source
// shape when its URI carries a document:// scheme or its mime type is
// application/pdf.
func toDocument(c Content) (map[string]any, bool) {
	isDocument := strings.HasPrefix(c.URI, "document://") || c.MimeType == "application/pdf"
	if !isDocument {
		return nil, false
	}
	kind := "base64"
	if strings.HasPrefix(c.URI, "document://") {
		kind = strings.TrimPrefix(c.URI, "document://")
	}
	return map[string]any{
		"type": "document",
		"source": map[string]any{
			"type":       kind,
			"media_type": c.MimeType,
			"data":       c.Blob,
		},
	}, true
}

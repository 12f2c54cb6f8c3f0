package agentsdk

import (
	"github.com/flowloop/agentsdk/internal/protocol"
	"github.com/flowloop/agentsdk/internal/query"
	"github.com/flowloop/agentsdk/internal/sdkerrors"
	"github.com/flowloop/agentsdk/internal/toolserver"
)

// Message is one decoded conversation message forwarded verbatim from the
// CLI. It is intentionally opaque beyond its Type discriminator: richer
// typing of assistant/user/system/result payloads belongs to a layer
// above this SDK.
type Message = protocol.RawMessage

// PermissionResult is the outcome of a PermissionCallback.
type PermissionResult = query.PermissionResult

// Allow permits a tool call to proceed, per PermissionCallback.
type Allow = query.Allow

// Deny rejects a tool call, per PermissionCallback.
type Deny = query.Deny

// PermissionContext accompanies a PermissionCallback invocation.
type PermissionContext = query.PermissionContext

// PermissionCallback gates a tool call requested by the CLI. Registering
// one requires streaming-mode input (Client or QueryStream; Query rejects
// it with a ValidationError) and causes the SDK to
// automatically route the CLI's permission prompts through its own
// control channel.
type PermissionCallback = query.PermissionCallback

// HookCallback is invoked by the CLI at a registered lifecycle event.
type HookCallback = query.HookCallback

// HookMatcher pairs an optional tool-name filter with an ordered list of
// hook callbacks.
type HookMatcher = query.HookMatcher

// Tool is a consumer-defined tool exposed to the CLI via the in-process
// MCP bridge.
type Tool = toolserver.Tool

// ToolHandler invokes a registered Tool with its call arguments.
type ToolHandler = toolserver.Handler

// ToolResult is what a ToolHandler returns.
type ToolResult = toolserver.ToolResult

// ToolContent is one content item of a ToolResult.
type ToolContent = toolserver.Content

// NewTextContent builds a text ToolContent item.
func NewTextContent(text string) ToolContent { return toolserver.NewTextContent(text) }

// InitializeResult is the capability descriptor returned by the CLI's
// initialize handshake.
type InitializeResult = protocol.InitializeResponse

// Error kinds raised by the engine; use errors.As to match.
type (
	ConnectionError            = sdkerrors.ConnectionError
	ProcessError               = sdkerrors.ProcessError
	ProtocolError              = sdkerrors.ProtocolError
	TimeoutError               = sdkerrors.TimeoutError
	CallbackNotRegisteredError = sdkerrors.CallbackNotRegisteredError
	ValidationError            = sdkerrors.ValidationError
	NotConnectedError          = sdkerrors.NotConnectedError
	APIError                   = sdkerrors.APIError
)

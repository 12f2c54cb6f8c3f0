package protocol

// Outbound control request subtypes.
const (
	SubtypeInitialize           = "initialize"
	SubtypeInterrupt            = "interrupt"
	SubtypeSetPermissionMode    = "set_permission_mode"
	SubtypeSetModel             = "set_model"
	SubtypeSetMaxThinkingTokens = "set_max_thinking_tokens"
	SubtypeStopTask             = "stop_task"
	SubtypeRewindFiles          = "rewind_files"
	SubtypeMCPStatus            = "mcp_status"
	SubtypeMCPSetServers        = "mcp_set_servers"
	SubtypeMCPReconnect         = "mcp_reconnect"
	SubtypeMCPToggle            = "mcp_toggle"
)

// Inbound control request subtypes.
const (
	SubtypeCanUseTool   = "can_use_tool"
	SubtypeHookCallback = "hook_callback"
	SubtypeMCPMessage   = "mcp_message"
)

// HookMatcherConfig is one entry of the hooks map sent during initialize:
// an optional tool-name filter pattern, the stable ids of the ordered
// callbacks it guards, and an optional per-matcher timeout in
// milliseconds.
type HookMatcherConfig struct {
	Matcher         string   `json:"matcher,omitempty"`
	HookCallbackIDs []string `json:"hookCallbackIds"`
	TimeoutMillis   int64    `json:"timeout,omitempty"`
}

// InitializeRequest is the payload of the outbound "initialize" control
// request.
type InitializeRequest struct {
	Hooks                    map[string][]HookMatcherConfig `json:"hooks,omitempty"`
	Agents                   map[string]any                 `json:"agents,omitempty"`
	SDKMCPServers            []string                       `json:"sdkMcpServers,omitempty"`
	SystemPrompt             string                         `json:"system_prompt,omitempty"`
	OutputSchema             map[string]any                 `json:"output_schema,omitempty"`
	PermissionPromptToolName string                         `json:"permission_prompt_tool_name,omitempty"`
}

// InitializeResponse is the decoded payload of a successful initialize
// control_response. A "capabilities" object is kept in Capabilities; any
// other undocumented fields are tolerated but discarded.
type InitializeResponse struct {
	Tools          []string       `json:"tools,omitempty"`
	Commands       []string       `json:"commands,omitempty"`
	PermissionMode string         `json:"permissionMode,omitempty"`
	Model          string         `json:"model,omitempty"`
	CWD            string         `json:"cwd,omitempty"`
	Capabilities   map[string]any `json:"capabilities,omitempty"`
}

// SetPermissionModeRequest is the payload of "set_permission_mode".
type SetPermissionModeRequest struct {
	Mode string `json:"mode"`
}

// SetModelRequest is the payload of "set_model". A nil Model clears any
// override.
type SetModelRequest struct {
	Model *string `json:"model"`
}

// SetMaxThinkingTokensRequest is the payload of "set_max_thinking_tokens".
type SetMaxThinkingTokensRequest struct {
	MaxThinkingTokens int `json:"max_thinking_tokens"`
}

// StopTaskRequest is the payload of "stop_task".
type StopTaskRequest struct {
	TaskID string `json:"task_id"`
}

// RewindFilesRequest is the payload of "rewind_files".
type RewindFilesRequest struct {
	UserMessageID string `json:"user_message_id"`
}

// MCPSetServersRequest is the payload of "mcp_set_servers".
type MCPSetServersRequest struct {
	Servers map[string]any `json:"servers"`
}

// MCPReconnectRequest is the payload of "mcp_reconnect".
type MCPReconnectRequest struct {
	ServerName string `json:"serverName"`
}

// MCPToggleRequest is the payload of "mcp_toggle".
type MCPToggleRequest struct {
	ServerName string `json:"serverName"`
	Enabled    bool   `json:"enabled"`
}

// CanUseToolRequest is the decoded payload of an inbound "can_use_tool"
// control_request.
type CanUseToolRequest struct {
	ToolName              string         `json:"tool_name"`
	Input                 map[string]any `json:"input"`
	ToolUseID             string         `json:"tool_use_id"`
	PermissionSuggestions []any          `json:"permission_suggestions,omitempty"`
	BlockedPath           string         `json:"blocked_path,omitempty"`
}

// CanUseToolAllowResponse is the wire shape of an "allow" permission
// decision.
type CanUseToolAllowResponse struct {
	Behavior           string         `json:"behavior"`
	UpdatedInput       map[string]any `json:"updatedInput,omitempty"`
	UpdatedPermissions []any          `json:"updatedPermissions,omitempty"`
}

// CanUseToolDenyResponse is the wire shape of a "deny" permission
// decision.
type CanUseToolDenyResponse struct {
	Behavior  string `json:"behavior"`
	Message   string `json:"message"`
	Interrupt bool   `json:"interrupt"`
}

// HookCallbackRequest is the decoded payload of an inbound
// "hook_callback" control_request.
type HookCallbackRequest struct {
	CallbackID string         `json:"callback_id"`
	Input      map[string]any `json:"input"`
	ToolUseID  string         `json:"tool_use_id,omitempty"`
}

// MCPMessageRequest is the decoded payload of an inbound "mcp_message"
// control_request: a nested JSON-RPC envelope addressed to an in-process
// tool server by name.
type MCPMessageRequest struct {
	ServerName string  `json:"server_name"`
	Message    RPCRequest `json:"message"`
}

// MCPMessageResponsePayload wraps the nested JSON-RPC response under the
// "mcp_response" key expected by the CLI.
type MCPMessageResponsePayload struct {
	MCPResponse RPCResponse `json:"mcp_response"`
}

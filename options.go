package agentsdk

import (
	"log/slog"
	"os"
	"time"

	"github.com/flowloop/agentsdk/internal/query"
	"github.com/flowloop/agentsdk/internal/sdkerrors"
	"github.com/flowloop/agentsdk/internal/toolserver"
	"github.com/flowloop/agentsdk/internal/transport"
)

// Options configures a Query call or a Client connection.
type Options struct {
	// Command is the argument vector of the agent CLI; Command[0] is the
	// executable.
	Command []string
	// WorkDir is the child's working directory. Empty inherits the
	// current process's.
	WorkDir string
	// Env replaces the child's environment if non-nil; otherwise the
	// current process environment is inherited.
	Env []string

	// CanUseTool gates tool calls the CLI requests permission for.
	// Registering a callback requires streaming-mode input (Client, or
	// Query called with a prompt channel rather than a plain string) and
	// automatically routes the CLI's permission prompts through the SDK's
	// control channel.
	CanUseTool PermissionCallback
	// PermissionPromptToolName explicitly names an external permission
	// prompt tool. Mutually exclusive with CanUseTool.
	PermissionPromptToolName string

	// Hooks maps a hook-event name to its ordered matcher list.
	Hooks map[string][]HookMatcher

	// ToolServers maps an in-process MCP server name to the tools it
	// exposes, advertised to the CLI during initialize as sdkMcpServers.
	ToolServers map[string][]Tool

	// Agents is an opaque bag of named agent definitions forwarded
	// verbatim during initialize.
	Agents map[string]any
	// SystemPrompt overrides the CLI's default system prompt.
	SystemPrompt string
	// OutputSchema requests structured output conforming to this JSON
	// Schema.
	OutputSchema map[string]any

	// InitializeTimeout bounds the initialize round trip. Defaults to the
	// larger of 60s and CLAUDE_CODE_STREAM_CLOSE_TIMEOUT.
	InitializeTimeout time.Duration
	// RequestTimeout bounds every other outbound control request.
	// Defaults to 60s.
	RequestTimeout time.Duration
	// StreamCloseTimeout bounds how long streamed input waits for a
	// result frame before half-closing stdin when callbacks are
	// registered. Defaults to CLAUDE_CODE_STREAM_CLOSE_TIMEOUT, or 60s.
	StreamCloseTimeout time.Duration

	// Logger receives structured diagnostic logging. Defaults to a
	// discard logger.
	Logger *slog.Logger
	// Stderr optionally receives lines from the CLI's error stream.
	Stderr func(line string)
}

// validate enforces the façade-level option constraints: a permission
// callback and an explicit permission-prompt-tool name are mutually
// exclusive, and a permission callback requires streaming input, since
// answering permission checks needs stdin held open for the callback
// round trip.
func (o Options) validate(streamingPrompt bool) error {
	if o.CanUseTool != nil && o.PermissionPromptToolName != "" {
		return &sdkerrors.ValidationError{
			Message: "can_use_tool callback cannot be used together with an explicit permission_prompt_tool_name",
		}
	}
	if o.CanUseTool != nil && !streamingPrompt {
		return &sdkerrors.ValidationError{
			Message: "can_use_tool callback requires streaming-mode input; pass a prompt channel instead of a plain string",
		}
	}
	return nil
}

// effectivePermissionPromptToolName returns "stdio" when a permission
// callback is registered, since that designates the SDK's own stdin/
// stdout control channel as the permission-prompt tool.
func (o Options) effectivePermissionPromptToolName() string {
	if o.CanUseTool != nil {
		return "stdio"
	}
	return o.PermissionPromptToolName
}

// entrypointEnvVar identifies which façade launched the child, for the
// CLI's own telemetry. The engine itself never reads it.
const entrypointEnvVar = "CLAUDE_CODE_ENTRYPOINT"

func (o Options) buildEngineConfig(entrypoint string) query.Config {
	registry := toolserver.NewRegistry()
	for name, tools := range o.ToolServers {
		srv := toolserver.NewServer(name, "")
		for _, t := range tools {
			srv.Register(t)
		}
		registry.Add(srv)
	}

	env := o.Env
	if env == nil {
		env = os.Environ()
	}
	env = append(append([]string(nil), env...), entrypointEnvVar+"="+entrypoint)

	return query.Config{
		Command:                  o.Command,
		WorkDir:                  o.WorkDir,
		Env:                      env,
		CanUseTool:               o.CanUseTool,
		Hooks:                    o.Hooks,
		ToolServers:              registry,
		Agents:                   o.Agents,
		SystemPrompt:             o.SystemPrompt,
		OutputSchema:             o.OutputSchema,
		PermissionPromptToolName: o.effectivePermissionPromptToolName(),
		InitializeTimeout:        o.InitializeTimeout,
		RequestTimeout:           o.RequestTimeout,
		StreamCloseTimeout:       o.StreamCloseTimeout,
		Logger:                   o.Logger,
		Stderr:                   transport.StderrSink(o.Stderr),
	}
}

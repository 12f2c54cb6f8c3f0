package agentsdk

import (
	"context"
	"errors"
	"testing"

	"github.com/flowloop/agentsdk/internal/sdkerrors"
)

func TestOptionsValidateRejectsCanUseToolWithPermissionPromptToolName(t *testing.T) {
	opts := Options{
		CanUseTool:               func(ctx context.Context, name string, input map[string]any, pctx PermissionContext) (PermissionResult, error) { return Allow{}, nil },
		PermissionPromptToolName: "custom-tool",
	}
	err := opts.validate(true)
	var validationErr *sdkerrors.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestOptionsValidateRejectsCanUseToolWithoutStreaming(t *testing.T) {
	opts := Options{
		CanUseTool: func(ctx context.Context, name string, input map[string]any, pctx PermissionContext) (PermissionResult, error) { return Allow{}, nil },
	}
	err := opts.validate(false)
	var validationErr *sdkerrors.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for non-streaming prompt, got %v", err)
	}
}

func TestOptionsValidateAllowsCanUseToolWithStreaming(t *testing.T) {
	opts := Options{
		CanUseTool: func(ctx context.Context, name string, input map[string]any, pctx PermissionContext) (PermissionResult, error) { return Allow{}, nil },
	}
	if err := opts.validate(true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestOptionsValidateAllowsPlainPermissionPromptToolName(t *testing.T) {
	opts := Options{PermissionPromptToolName: "custom-tool"}
	if err := opts.validate(false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestOptionsEffectivePermissionPromptToolNameDefaultsToStdioWithCallback(t *testing.T) {
	opts := Options{
		CanUseTool: func(ctx context.Context, name string, input map[string]any, pctx PermissionContext) (PermissionResult, error) { return Allow{}, nil },
	}
	if got := opts.effectivePermissionPromptToolName(); got != "stdio" {
		t.Fatalf("expected 'stdio', got %q", got)
	}
}

func TestOptionsEffectivePermissionPromptToolNamePassesThroughExplicit(t *testing.T) {
	opts := Options{PermissionPromptToolName: "custom-tool"}
	if got := opts.effectivePermissionPromptToolName(); got != "custom-tool" {
		t.Fatalf("expected 'custom-tool', got %q", got)
	}
}

func TestOptionsBuildEngineConfigRegistersToolServers(t *testing.T) {
	opts := Options{
		ToolServers: map[string][]Tool{
			"calc": {{Name: "add"}},
		},
	}
	cfg := opts.buildEngineConfig("sdk-go")
	names := cfg.ToolServers.Names()
	if len(names) != 1 || names[0] != "calc" {
		t.Fatalf("expected registry to contain 'calc', got %v", names)
	}
}

func TestOptionsBuildEngineConfigStampsEntrypoint(t *testing.T) {
	cfg := Options{Env: []string{"PATH=/bin"}}.buildEngineConfig("sdk-go-client")
	var found bool
	for _, kv := range cfg.Env {
		if kv == "CLAUDE_CODE_ENTRYPOINT=sdk-go-client" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected entrypoint env var in child env, got %v", cfg.Env)
	}
}

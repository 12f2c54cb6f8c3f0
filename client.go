package agentsdk

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flowloop/agentsdk/internal/idgen"
	"github.com/flowloop/agentsdk/internal/protocol"
	"github.com/flowloop/agentsdk/internal/query"
	"github.com/flowloop/agentsdk/internal/sdkerrors"
)

// Client is a stateful connection to an agent CLI: it supports hooks,
// in-process tools, direct control of the running session (interrupt,
// model switch, permission mode, MCP server lifecycle), and late-bound
// streaming prompt input. It implements io.Closer so it can be used as a
// scoped resource (acquire on Connect, release on Close).
type Client struct {
	opts Options

	mu        sync.Mutex
	engine    *query.Engine
	inputCh   chan protocol.UserFrame
	sessionID string
	endOnce   sync.Once
}

// NewClient validates opts and returns an unconnected Client. Call
// Connect before using any other method.
func NewClient(opts Options) (*Client, error) {
	// A Client always keeps its input stream open for the life of the
	// connection, so it satisfies the streaming-mode requirement a
	// permission callback imposes regardless of whether the consumer ever
	// sends more than one prompt.
	if err := opts.validate(true); err != nil {
		return nil, err
	}
	return &Client{opts: opts}, nil
}

// Connect starts the child process, performs the initialize handshake,
// and opens the streaming input channel used by SendPrompt.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return nil
	}

	engine := query.New(c.opts.buildEngineConfig("sdk-go-client"))
	if err := engine.Start(ctx); err != nil {
		return err
	}
	if _, err := engine.Initialize(ctx); err != nil {
		engine.Close()
		return err
	}

	c.engine = engine
	c.inputCh = make(chan protocol.UserFrame)
	c.sessionID = idgen.NewSessionID()
	go engine.StreamInput(ctx, c.inputCh)
	return nil
}

func (c *Client) engineOrErr(op string) (*query.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return nil, &sdkerrors.NotConnectedError{Operation: op, State: "fresh"}
	}
	return c.engine, nil
}

// SendPrompt submits one user turn on the client's session.
func (c *Client) SendPrompt(ctx context.Context, prompt string) error {
	if _, err := c.engineOrErr("send_prompt"); err != nil {
		return err
	}
	frame := protocol.NewUserFrame(prompt, c.sessionID, "")
	select {
	case c.inputCh <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EndInput signals that no further prompts will be sent, allowing the
// engine to apply its stdin-close deferral policy. Idempotent.
func (c *Client) EndInput() {
	c.endOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.inputCh != nil {
			close(c.inputCh)
		}
	})
}

// ReceiveMessages returns a channel of conversation events, translating
// API-error-annotated messages into a terminal Event.
func (c *Client) ReceiveMessages() (<-chan Event, error) {
	engine, err := c.engineOrErr("receive_messages")
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for r := range engine.ReceiveMessages() {
			if r.Err != nil {
				out <- Event{Err: r.Err}
				return
			}
			if apiErr := apiErrorFromMessage(r.Message); apiErr != nil {
				out <- Event{Err: apiErr}
				return
			}
			out <- Event{Message: r.Message}
		}
	}()
	return out, nil
}

// InitializeResult returns the capability descriptor from the initialize
// handshake.
func (c *Client) InitializeResult() (InitializeResult, bool) {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return InitializeResult{}, false
	}
	return engine.InitializeResult()
}

func (c *Client) Interrupt(ctx context.Context) error {
	engine, err := c.engineOrErr("interrupt")
	if err != nil {
		return err
	}
	return engine.Interrupt(ctx)
}

func (c *Client) SetPermissionMode(ctx context.Context, mode string) error {
	engine, err := c.engineOrErr("set_permission_mode")
	if err != nil {
		return err
	}
	return engine.SetPermissionMode(ctx, mode)
}

func (c *Client) SetModel(ctx context.Context, model *string) error {
	engine, err := c.engineOrErr("set_model")
	if err != nil {
		return err
	}
	return engine.SetModel(ctx, model)
}

func (c *Client) SetMaxThinkingTokens(ctx context.Context, tokens int) error {
	engine, err := c.engineOrErr("set_max_thinking_tokens")
	if err != nil {
		return err
	}
	return engine.SetMaxThinkingTokens(ctx, tokens)
}

func (c *Client) StopTask(ctx context.Context, taskID string) error {
	engine, err := c.engineOrErr("stop_task")
	if err != nil {
		return err
	}
	return engine.StopTask(ctx, taskID)
}

func (c *Client) RewindFiles(ctx context.Context, userMessageID string) error {
	engine, err := c.engineOrErr("rewind_files")
	if err != nil {
		return err
	}
	return engine.RewindFiles(ctx, userMessageID)
}

func (c *Client) MCPStatus(ctx context.Context) (json.RawMessage, error) {
	engine, err := c.engineOrErr("mcp_status")
	if err != nil {
		return nil, err
	}
	return engine.MCPStatus(ctx)
}

func (c *Client) MCPSetServers(ctx context.Context, servers map[string]any) (json.RawMessage, error) {
	engine, err := c.engineOrErr("mcp_set_servers")
	if err != nil {
		return nil, err
	}
	return engine.MCPSetServers(ctx, servers)
}

func (c *Client) MCPReconnect(ctx context.Context, serverName string) error {
	engine, err := c.engineOrErr("mcp_reconnect")
	if err != nil {
		return err
	}
	return engine.MCPReconnect(ctx, serverName)
}

func (c *Client) MCPToggle(ctx context.Context, serverName string, enabled bool) error {
	engine, err := c.engineOrErr("mcp_toggle")
	if err != nil {
		return err
	}
	return engine.MCPToggle(ctx, serverName, enabled)
}

// Disconnect closes the engine and transport. Equivalent to Close; kept
// as a named alias pairing with Connect.
func (c *Client) Disconnect() error { return c.Close() }

// Close implements io.Closer.
func (c *Client) Close() error {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return nil
	}
	c.EndInput()
	return engine.Close()
}

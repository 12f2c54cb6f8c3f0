// Package query implements the bidirectional control protocol engine:
// demultiplexing inbound frames, correlating outbound control requests,
// dispatching inbound control requests, and serving conversation messages
// to the consumer. Transport-owned I/O lives behind the transporter
// interface; the engine owns all protocol bookkeeping above it.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flowloop/agentsdk/internal/idgen"
	"github.com/flowloop/agentsdk/internal/logging"
	"github.com/flowloop/agentsdk/internal/protocol"
	"github.com/flowloop/agentsdk/internal/sdkerrors"
	"github.com/flowloop/agentsdk/internal/toolserver"
	"github.com/flowloop/agentsdk/internal/tracing"
	"github.com/flowloop/agentsdk/internal/transport"
)

// State is one of the engine's lifecycle states.
type State int

const (
	StateFresh State = iota
	StateReaderStarted
	StateInitialized
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateReaderStarted:
		return "reader_started"
	case StateInitialized:
		return "initialized"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PermissionResult is the outcome of a PermissionCallback: either Allow
// or Deny.
type PermissionResult interface{ isPermissionResult() }

// Allow permits the tool call to proceed, optionally substituting the
// input or recording updated permission grants.
type Allow struct {
	UpdatedInput       map[string]any
	UpdatedPermissions []any
}

func (Allow) isPermissionResult() {}

// Deny rejects the tool call, carrying a message shown to the model and
// an optional flag requesting the turn be interrupted.
type Deny struct {
	Message   string
	Interrupt bool
}

func (Deny) isPermissionResult() {}

// PermissionContext accompanies a can_use_tool callback invocation.
type PermissionContext struct {
	ToolUseID   string
	Suggestions []any
	BlockedPath string
}

// PermissionCallback gates a tool call requested by the CLI.
type PermissionCallback func(ctx context.Context, toolName string, input map[string]any, pctx PermissionContext) (PermissionResult, error)

// HookCallback is a consumer-registered callable invoked by the CLI at a
// specified lifecycle event.
type HookCallback func(ctx context.Context, input map[string]any, toolUseID string) (map[string]any, error)

// HookMatcher pairs an optional tool-name filter with an ordered list of
// callbacks and an optional per-matcher timeout.
type HookMatcher struct {
	Matcher string
	Hooks   []HookCallback
	Timeout time.Duration
}

// Config configures a new Engine.
type Config struct {
	Command []string
	WorkDir string
	Env     []string

	CanUseTool  PermissionCallback
	Hooks       map[string][]HookMatcher
	ToolServers *toolserver.Registry
	Agents      map[string]any

	SystemPrompt             string
	OutputSchema             map[string]any
	PermissionPromptToolName string

	// InitializeTimeout bounds the initialize round trip. Defaults to 60s
	// or CLAUDE_CODE_STREAM_CLOSE_TIMEOUT if larger.
	InitializeTimeout time.Duration
	// RequestTimeout bounds every other outbound control request.
	RequestTimeout time.Duration
	// StreamCloseTimeout bounds how long stream_input waits for a result
	// frame before half-closing stdin when callbacks are registered.
	// Defaults to CLAUDE_CODE_STREAM_CLOSE_TIMEOUT, or 60s.
	StreamCloseTimeout time.Duration

	Logger *slog.Logger
	Stderr transport.StderrSink
}

const defaultRequestTimeout = 60 * time.Second

// streamCloseTimeoutEnvVar bounds the stdin-close deferral when callbacks
// are registered, and sets the floor for the initialize timeout.
const streamCloseTimeoutEnvVar = "CLAUDE_CODE_STREAM_CLOSE_TIMEOUT"

func streamCloseTimeoutFromEnv() time.Duration {
	raw := os.Getenv(streamCloseTimeoutEnvVar)
	if raw == "" {
		return defaultRequestTimeout
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// Received is one item produced by ReceiveMessages: either a conversation
// message or a terminal error.
type Received struct {
	Message protocol.RawMessage
	Err     error
}

// pendingRequest is one in-flight outbound control request awaiting
// resolution.
type pendingRequest struct {
	done     chan struct{}
	once     sync.Once
	response json.RawMessage
	err      error
}

func (p *pendingRequest) resolve(response json.RawMessage, err error) {
	p.once.Do(func() {
		p.response = response
		p.err = err
		close(p.done)
	})
}

// Engine is the protocol engine: it owns a Transport and demultiplexes
// its frames.
type Engine struct {
	cfg       Config
	transport transporter
	logger    *slog.Logger

	reqGen  idgen.RequestIDGenerator
	hookGen idgen.HookIDGenerator

	mu    sync.Mutex
	state State

	correlation map[string]*pendingRequest

	hookCallbacks map[string]HookCallback
	hasCallbacks  bool

	out chan<- protocol.RawMessage
	in  <-chan protocol.RawMessage

	firstResultOnce sync.Once
	firstResultCh   chan struct{}

	readerDone chan struct{}

	initResult *protocol.InitializeResponse

	closeOnce sync.Once
}

// New constructs an Engine bound to a fresh Transport built from cfg. The
// child is not started until Start is called.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscardLogger()
	}
	streamCloseTimeout := streamCloseTimeoutFromEnv()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.InitializeTimeout <= 0 {
		// Initialization may need to wait on external tool servers starting
		// up, so its floor tracks the stream-close timeout rather than the
		// shorter default request timeout.
		cfg.InitializeTimeout = streamCloseTimeout
		if cfg.InitializeTimeout < defaultRequestTimeout {
			cfg.InitializeTimeout = defaultRequestTimeout
		}
	}
	if cfg.StreamCloseTimeout <= 0 {
		cfg.StreamCloseTimeout = streamCloseTimeout
	}
	if cfg.ToolServers == nil {
		cfg.ToolServers = toolserver.NewRegistry()
	}

	hasCallbacks := len(cfg.Hooks) > 0 || len(cfg.ToolServers.Names()) > 0

	out, in := newUnboundedChannel()

	e := &Engine{
		cfg:           cfg,
		logger:        cfg.Logger,
		correlation:   make(map[string]*pendingRequest),
		hookCallbacks: make(map[string]HookCallback),
		hasCallbacks:  hasCallbacks,
		out:           out,
		in:            in,
		firstResultCh: make(chan struct{}),
		readerDone:    make(chan struct{}),
	}
	e.transport = transport.New(transport.Config{
		Command: cfg.Command,
		WorkDir: cfg.WorkDir,
		Env:     cfg.Env,
		Stderr:  cfg.Stderr,
		Logger:  cfg.Logger,
	})
	return e
}

// newWithTransporter builds an Engine around a caller-supplied transporter,
// bypassing the real child-process transport. Used by tests to exercise
// the engine's demultiplexing, correlation, and dispatch logic against a
// mock in place of a spawned process.
func newWithTransporter(cfg Config, tr transporter) *Engine {
	e := New(cfg)
	e.transport = tr
	return e
}

// Start spawns the child and begins reading frames in the background.
// Idempotent: a second call is a no-op. After Start returns, the
// conversation channel is readable and Initialize may be invoked.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateFresh {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if err := e.transport.Open(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.state = StateReaderStarted
	e.mu.Unlock()

	go e.readLoop()
	return nil
}

// Initialize issues the initialize control request, registering hook
// callback ids and requesting in-process tool servers be advertised.
func (e *Engine) Initialize(ctx context.Context) (protocol.InitializeResponse, error) {
	if err := e.requireState(StateReaderStarted, "initialize"); err != nil {
		return protocol.InitializeResponse{}, err
	}

	hooksConfig := e.registerHooks()

	req := protocol.InitializeRequest{
		Hooks:                    hooksConfig,
		Agents:                   e.cfg.Agents,
		SDKMCPServers:            e.cfg.ToolServers.Names(),
		SystemPrompt:             e.cfg.SystemPrompt,
		OutputSchema:             e.cfg.OutputSchema,
		PermissionPromptToolName: e.cfg.PermissionPromptToolName,
	}

	raw, err := e.sendControl(ctx, protocol.SubtypeInitialize, req, e.cfg.InitializeTimeout)
	if err != nil {
		return protocol.InitializeResponse{}, err
	}

	var result protocol.InitializeResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return protocol.InitializeResponse{}, fmt.Errorf("decoding initialize response: %w", err)
		}
	}

	e.mu.Lock()
	e.state = StateInitialized
	e.initResult = &result
	e.mu.Unlock()

	return result, nil
}

func (e *Engine) registerHooks() map[string][]protocol.HookMatcherConfig {
	if len(e.cfg.Hooks) == 0 {
		return nil
	}
	out := make(map[string][]protocol.HookMatcherConfig, len(e.cfg.Hooks))
	for event, matchers := range e.cfg.Hooks {
		configs := make([]protocol.HookMatcherConfig, 0, len(matchers))
		for _, m := range matchers {
			ids := make([]string, 0, len(m.Hooks))
			for _, cb := range m.Hooks {
				id := e.hookGen.Next()
				e.hookCallbacks[id] = cb
				ids = append(ids, id)
			}
			configs = append(configs, protocol.HookMatcherConfig{
				Matcher:         m.Matcher,
				HookCallbackIDs: ids,
				TimeoutMillis:   m.Timeout.Milliseconds(),
			})
		}
		out[event] = configs
	}
	return out
}

// InitializeResult returns the stored initialize response, if any.
func (e *Engine) InitializeResult() (protocol.InitializeResponse, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initResult == nil {
		return protocol.InitializeResponse{}, false
	}
	return *e.initResult, true
}

// sendControl issues an outbound control request and awaits its response.
func (e *Engine) sendControl(ctx context.Context, subtype string, payload any, timeout time.Duration) (resp json.RawMessage, err error) {
	// initialize is the one outbound control request valid from
	// reader_started; every other subtype requires initialized.
	if subtype != protocol.SubtypeInitialize {
		if err = e.requireState(StateInitialized, subtype); err != nil {
			return nil, err
		}
	}

	id := e.reqGen.Next()

	spanCtx, span := tracing.StartControlSpan(ctx, subtype, id)
	defer func() { tracing.End(span, err) }()

	pending := &pendingRequest{done: make(chan struct{})}
	e.mu.Lock()
	e.correlation[id] = pending
	e.mu.Unlock()

	frame := protocol.NewOutboundControlRequest(id, subtype, payload)
	var line []byte
	line, err = json.Marshal(frame)
	if err != nil {
		e.removeCorrelation(id)
		err = fmt.Errorf("marshaling control request: %w", err)
		return nil, err
	}
	if err = e.transport.Write(line); err != nil {
		e.removeCorrelation(id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-spanCtx.Done():
		e.removeCorrelation(id)
		err = spanCtx.Err()
		return nil, err
	case <-timer.C:
		e.removeCorrelation(id)
		err = &sdkerrors.TimeoutError{Subtype: subtype, ID: id}
		return nil, err
	case <-pending.done:
		e.removeCorrelation(id)
		resp, err = pending.response, pending.err
		return resp, err
	}
}

func (e *Engine) removeCorrelation(id string) {
	e.mu.Lock()
	delete(e.correlation, id)
	e.mu.Unlock()
}

// Convenience wrappers over sendControl.

func (e *Engine) Interrupt(ctx context.Context) error {
	_, err := e.sendControl(ctx, protocol.SubtypeInterrupt, struct{}{}, e.cfg.RequestTimeout)
	return err
}

func (e *Engine) SetPermissionMode(ctx context.Context, mode string) error {
	_, err := e.sendControl(ctx, protocol.SubtypeSetPermissionMode,
		protocol.SetPermissionModeRequest{Mode: mode}, e.cfg.RequestTimeout)
	return err
}

func (e *Engine) SetModel(ctx context.Context, model *string) error {
	_, err := e.sendControl(ctx, protocol.SubtypeSetModel,
		protocol.SetModelRequest{Model: model}, e.cfg.RequestTimeout)
	return err
}

func (e *Engine) SetMaxThinkingTokens(ctx context.Context, tokens int) error {
	_, err := e.sendControl(ctx, protocol.SubtypeSetMaxThinkingTokens,
		protocol.SetMaxThinkingTokensRequest{MaxThinkingTokens: tokens}, e.cfg.RequestTimeout)
	return err
}

func (e *Engine) StopTask(ctx context.Context, taskID string) error {
	_, err := e.sendControl(ctx, protocol.SubtypeStopTask,
		protocol.StopTaskRequest{TaskID: taskID}, e.cfg.RequestTimeout)
	return err
}

func (e *Engine) RewindFiles(ctx context.Context, userMessageID string) error {
	_, err := e.sendControl(ctx, protocol.SubtypeRewindFiles,
		protocol.RewindFilesRequest{UserMessageID: userMessageID}, e.cfg.RequestTimeout)
	return err
}

func (e *Engine) MCPStatus(ctx context.Context) (json.RawMessage, error) {
	return e.sendControl(ctx, protocol.SubtypeMCPStatus, struct{}{}, e.cfg.RequestTimeout)
}

func (e *Engine) MCPSetServers(ctx context.Context, servers map[string]any) (json.RawMessage, error) {
	return e.sendControl(ctx, protocol.SubtypeMCPSetServers,
		protocol.MCPSetServersRequest{Servers: servers}, e.cfg.RequestTimeout)
}

func (e *Engine) MCPReconnect(ctx context.Context, serverName string) error {
	_, err := e.sendControl(ctx, protocol.SubtypeMCPReconnect,
		protocol.MCPReconnectRequest{ServerName: serverName}, e.cfg.RequestTimeout)
	return err
}

func (e *Engine) MCPToggle(ctx context.Context, serverName string, enabled bool) error {
	_, err := e.sendControl(ctx, protocol.SubtypeMCPToggle,
		protocol.MCPToggleRequest{ServerName: serverName, Enabled: enabled}, e.cfg.RequestTimeout)
	return err
}

// StreamInput drains frames onto the transport, respecting the
// stdin-close deferral policy: when callbacks are registered, stdin stays
// open until the first result frame or the closure timeout, whichever
// comes first.
func (e *Engine) StreamInput(ctx context.Context, frames <-chan protocol.UserFrame) {
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				e.finishStreamInput(ctx)
				return
			}
			line, err := json.Marshal(frame)
			if err != nil {
				e.logger.Debug("error streaming input", "error", err)
				continue
			}
			if err := e.transport.Write(line); err != nil {
				e.logger.Debug("error streaming input", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) finishStreamInput(ctx context.Context) {
	if e.hasCallbacks {
		e.logger.Debug("waiting for first result before closing stdin")
		timer := time.NewTimer(e.cfg.StreamCloseTimeout)
		defer timer.Stop()
		select {
		case <-e.firstResultCh:
		case <-timer.C:
			e.logger.Debug("timed out waiting for first result, closing input stream")
		case <-ctx.Done():
		}
	}
	e.transport.EndInput()
}

// ReceiveMessages returns a channel of conversation messages terminated
// by a single Received carrying a non-nil Err on failure, or by channel
// closure on clean end-of-stream.
func (e *Engine) ReceiveMessages() <-chan Received {
	out := make(chan Received)
	go func() {
		defer close(out)
		for msg := range e.in {
			switch msg.Type {
			case sentinelEnd:
				return
			case sentinelError:
				out <- Received{Err: fmt.Errorf("%s", msg.ErrorMessage)}
				return
			default:
				out <- Received{Message: msg}
			}
		}
	}()
	return out
}

// Close cancels the reader, fails all pending outbound requests, and
// closes the transport. Idempotent and safe to call from any goroutine.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.state = StateClosing
		e.mu.Unlock()

		err = e.transport.Close()

		<-e.readerDone
		close(e.out)

		e.mu.Lock()
		for id, p := range e.correlation {
			p.resolve(nil, &sdkerrors.ConnectionError{Message: "engine closed"})
			delete(e.correlation, id)
		}
		e.state = StateClosed
		e.mu.Unlock()
	})
	return err
}

func (e *Engine) requireState(want State, op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != want {
		return &sdkerrors.NotConnectedError{Operation: op, State: e.state.String()}
	}
	return nil
}

// internal sentinel discriminators pushed onto the conversation channel;
// these never appear on the wire, only between the reader and
// ReceiveMessages.
const (
	sentinelEnd   = "\x00internal-end"
	sentinelError = "\x00internal-error"
)

// readLoop consumes transport frames and routes each by discriminator.
// It is the engine's sole reader goroutine.
func (e *Engine) readLoop() {
	defer close(e.readerDone)
	defer func() { e.out <- protocol.RawMessage{Type: sentinelEnd} }()

	frames := e.transport.ReadFrames()
	for frame := range frames {
		if frame.Err != nil {
			e.handleFatalReadError(frame.Err)
			return
		}
		e.routeFrame(frame.Line)
	}
}

func (e *Engine) handleFatalReadError(err error) {
	e.logger.Error("fatal error in message reader", "error", err)
	e.mu.Lock()
	pending := make([]*pendingRequest, 0, len(e.correlation))
	for id, p := range e.correlation {
		pending = append(pending, p)
		delete(e.correlation, id)
	}
	e.mu.Unlock()
	for _, p := range pending {
		p.resolve(nil, &sdkerrors.ConnectionError{Message: "transport read failed", Cause: err})
	}
	e.out <- protocol.RawMessage{Type: sentinelError, ErrorMessage: err.Error()}
}

func (e *Engine) routeFrame(line []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		e.logger.Warn("frame decode error", "error", &sdkerrors.FrameDecodeError{Line: string(line), Cause: err})
		return
	}

	switch env.Type {
	case protocol.TypeControlResponse:
		e.routeControlResponse(line)
	case protocol.TypeControlRequest:
		var frame protocol.ControlRequestFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			e.logger.Warn("frame decode error", "error", err)
			return
		}
		go e.handleControlRequest(frame.RequestID, frame.Request)
	case protocol.TypeControlCancelReq:
		// Advisory; acting on it is permitted but not required.
		e.logger.Debug("received control_cancel_request")
	default:
		msg, err := protocol.DecodeRawMessage(line)
		if err != nil {
			e.logger.Warn("frame decode error", "error", err)
			return
		}
		if msg.Type == protocol.TypeResult {
			e.firstResultOnce.Do(func() { close(e.firstResultCh) })
		}
		e.out <- msg
	}
}

func (e *Engine) routeControlResponse(line []byte) {
	var frame protocol.ControlResponseFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		e.logger.Warn("frame decode error", "error", err)
		return
	}
	e.mu.Lock()
	pending, ok := e.correlation[frame.Response.RequestID]
	if ok {
		delete(e.correlation, frame.Response.RequestID)
	}
	e.mu.Unlock()
	if !ok {
		// Unknown id: may correspond to a request that already timed out.
		return
	}
	if frame.Response.Subtype == "error" {
		msg := frame.Response.Error
		if msg == "" {
			msg = "unknown error"
		}
		pending.resolve(nil, &sdkerrors.ProtocolError{Message: msg})
		return
	}
	pending.resolve(frame.Response.Response, nil)
}

// handleControlRequest dispatches one inbound control_request and writes
// exactly one control_response frame, even on failure.
func (e *Engine) handleControlRequest(requestID string, rawRequest json.RawMessage) {
	var body protocol.ControlRequestBody
	if err := json.Unmarshal(rawRequest, &body); err != nil {
		e.writeErrorResponse(requestID, err.Error())
		return
	}

	_, span := tracing.StartDispatchSpan(context.Background(), body.Subtype, requestID)
	var err error
	defer func() { tracing.End(span, err) }()

	var payload any
	payload, err = e.dispatch(body.Subtype, rawRequest)
	if err != nil {
		e.writeErrorResponse(requestID, err.Error())
		return
	}
	e.writeSuccessResponse(requestID, payload)
}

func (e *Engine) dispatch(subtype string, rawRequest json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	switch subtype {
	case protocol.SubtypeCanUseTool:
		return e.handleCanUseTool(rawRequest)
	case protocol.SubtypeHookCallback:
		return e.handleHookCallback(rawRequest)
	case protocol.SubtypeMCPMessage:
		return e.handleMCPMessage(rawRequest)
	case protocol.SubtypeInterrupt:
		return struct{}{}, nil
	case protocol.SubtypeInitialize, protocol.SubtypeSetPermissionMode,
		protocol.SubtypeRewindFiles, protocol.SubtypeStopTask:
		// Outbound-only in normal operation; acknowledge with no body if
		// observed inbound.
		return struct{}{}, nil
	default:
		return nil, fmt.Errorf("unrecognized control request subtype %q", subtype)
	}
}

func (e *Engine) handleCanUseTool(rawRequest json.RawMessage) (any, error) {
	var req protocol.CanUseToolRequest
	if err := json.Unmarshal(rawRequest, &req); err != nil {
		return nil, err
	}
	if e.cfg.CanUseTool == nil {
		return nil, &sdkerrors.CallbackNotRegisteredError{Subtype: protocol.SubtypeCanUseTool, ID: req.ToolUseID}
	}

	pctx := PermissionContext{
		ToolUseID:   req.ToolUseID,
		Suggestions: req.PermissionSuggestions,
		BlockedPath: req.BlockedPath,
	}
	result, err := e.cfg.CanUseTool(context.Background(), req.ToolName, req.Input, pctx)
	if err != nil {
		return nil, err
	}

	switch r := result.(type) {
	case Allow:
		updated := r.UpdatedInput
		if updated == nil {
			updated = req.Input
		}
		return protocol.CanUseToolAllowResponse{
			Behavior:           "allow",
			UpdatedInput:       updated,
			UpdatedPermissions: r.UpdatedPermissions,
		}, nil
	case Deny:
		return protocol.CanUseToolDenyResponse{
			Behavior:  "deny",
			Message:   r.Message,
			Interrupt: r.Interrupt,
		}, nil
	default:
		return nil, fmt.Errorf("permission callback returned unrecognized result type %T", result)
	}
}

func (e *Engine) handleHookCallback(rawRequest json.RawMessage) (any, error) {
	var req protocol.HookCallbackRequest
	if err := json.Unmarshal(rawRequest, &req); err != nil {
		return nil, err
	}
	cb, ok := e.hookCallbacks[req.CallbackID]
	if !ok {
		return nil, &sdkerrors.CallbackNotRegisteredError{Subtype: protocol.SubtypeHookCallback, ID: req.CallbackID}
	}
	output, err := cb(context.Background(), req.Input, req.ToolUseID)
	if err != nil {
		return nil, err
	}
	return normalizeHookOutput(output), nil
}

// normalizeHookOutput strips a trailing underscore from output keys that
// were renamed host-side to avoid a keyword collision (e.g. "async_",
// "continue_"), restoring the natural wire names.
func normalizeHookOutput(output map[string]any) map[string]any {
	normalized := make(map[string]any, len(output))
	for k, v := range output {
		normalized[strings.TrimSuffix(k, "_")] = v
	}
	return normalized
}

func (e *Engine) handleMCPMessage(rawRequest json.RawMessage) (any, error) {
	var req protocol.MCPMessageRequest
	if err := json.Unmarshal(rawRequest, &req); err != nil {
		return nil, err
	}
	resp := e.cfg.ToolServers.Dispatch(context.Background(), req.ServerName, req.Message)
	return protocol.MCPMessageResponsePayload{MCPResponse: resp}, nil
}

func (e *Engine) writeSuccessResponse(requestID string, payload any) {
	frame, err := protocol.NewSuccessResponse(requestID, payload)
	if err != nil {
		e.writeErrorResponse(requestID, err.Error())
		return
	}
	e.writeResponseFrame(frame)
}

func (e *Engine) writeErrorResponse(requestID, message string) {
	e.writeResponseFrame(protocol.NewErrorResponse(requestID, message))
}

func (e *Engine) writeResponseFrame(frame protocol.ControlResponseFrame) {
	line, err := json.Marshal(frame)
	if err != nil {
		e.logger.Error("failed to marshal control response", "error", err)
		return
	}
	if err := e.transport.Write(line); err != nil {
		e.logger.Debug("failed to write control response", "error", err)
	}
}

// newUnboundedChannel returns a producer/consumer channel pair backed by
// an in-memory queue with no capacity bound, so the producer (reader)
// never blocks on the consumer.
func newUnboundedChannel() (chan<- protocol.RawMessage, <-chan protocol.RawMessage) {
	in := make(chan protocol.RawMessage)
	out := make(chan protocol.RawMessage)

	go func() {
		defer close(out)
		var queue []protocol.RawMessage
		for {
			if len(queue) == 0 {
				v, ok := <-in
				if !ok {
					return
				}
				queue = append(queue, v)
				continue
			}
			select {
			case v, ok := <-in:
				if !ok {
					for _, q := range queue {
						out <- q
					}
					return
				}
				queue = append(queue, v)
			case out <- queue[0]:
				queue = queue[1:]
			}
		}
	}()

	return in, out
}

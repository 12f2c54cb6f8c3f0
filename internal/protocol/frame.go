// Package protocol defines the wire types exchanged with the Agent CLI:
// the frame envelope discriminator, the control-request/response envelopes
// and their subtype payloads, and the nested JSON-RPC envelope used for
// in-process tool server messages. Conversation messages are carried
// opaquely as RawMessage; the SDK does not model their internal shape.
package protocol

import "encoding/json"

// Frame discriminator values recognized on the wire. Anything else is a
// conversation message and is passed through to the consumer verbatim.
const (
	TypeControlRequest      = "control_request"
	TypeControlResponse     = "control_response"
	TypeControlCancelReq    = "control_cancel_request"
	TypeUser                = "user"
	TypeResult              = "result"
)

// Envelope is the minimal shape needed to read the discriminator and route
// a decoded line before unmarshaling the rest of it into a concrete type.
type Envelope struct {
	Type string `json:"type"`
}

// ControlRequestFrame is an inbound frame carrying a request id and a
// subtype-discriminated request body.
type ControlRequestFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Request   json.RawMessage `json:"request"`
}

// ControlRequestBody reads just the subtype discriminator out of a
// control_request's request body; callers re-unmarshal into the concrete
// subtype payload once the subtype is known.
type ControlRequestBody struct {
	Subtype string `json:"subtype"`
}

// ControlCancelRequestFrame is the advisory inbound cancel signal for an
// in-flight inbound control_request. Reception is required; acting on it
// is permitted but not required.
type ControlCancelRequestFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

// OutboundControlRequest is the frame the engine writes to issue an
// outbound control request.
type OutboundControlRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Request   any    `json:"request"`
}

// NewOutboundControlRequest builds the wire frame for an outbound control
// request, stamping the subtype onto the payload via requestEnvelope.
func NewOutboundControlRequest(id, subtype string, payload any) OutboundControlRequest {
	return OutboundControlRequest{
		Type:      TypeControlRequest,
		RequestID: id,
		Request:   requestEnvelope{Subtype: subtype, Payload: payload},
	}
}

// requestEnvelope flattens Subtype alongside the marshaled Payload fields
// so the wire object is `{"subtype": "...", ...payload fields}`.
type requestEnvelope struct {
	Subtype string `json:"subtype"`
	Payload any    `json:"-"`
}

func (e requestEnvelope) MarshalJSON() ([]byte, error) {
	payloadBytes, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payloadBytes, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	subtypeBytes, err := json.Marshal(e.Subtype)
	if err != nil {
		return nil, err
	}
	m["subtype"] = subtypeBytes
	return json.Marshal(m)
}

// ControlResponseFrame is the frame shape for both inbound responses to
// the engine's own outbound requests and outbound responses the engine
// writes back for inbound control_request frames.
type ControlResponseFrame struct {
	Type     string          `json:"type"`
	Response ControlResponse `json:"response"`
}

// ControlResponse is the nested response body. Subtype is "success" or
// "error"; on success, Response carries the payload, on error, Error
// carries the message.
type ControlResponse struct {
	RequestID string          `json:"request_id"`
	Subtype   string          `json:"subtype"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewSuccessResponse builds the outbound control_response frame for a
// successful inbound control_request handling.
func NewSuccessResponse(requestID string, payload any) (ControlResponseFrame, error) {
	raw, err := marshalRaw(payload)
	if err != nil {
		return ControlResponseFrame{}, err
	}
	return ControlResponseFrame{
		Type: TypeControlResponse,
		Response: ControlResponse{
			RequestID: requestID,
			Subtype:   "success",
			Response:  raw,
		},
	}, nil
}

// NewErrorResponse builds the outbound control_response frame reporting a
// handler failure for an inbound control_request.
func NewErrorResponse(requestID, message string) ControlResponseFrame {
	return ControlResponseFrame{
		Type: TypeControlResponse,
		Response: ControlResponse{
			RequestID: requestID,
			Subtype:   "error",
			Error:     message,
		},
	}
}

func marshalRaw(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// UserFrame is the outbound conversation frame carrying a single prompt
// turn from the consumer.
type UserFrame struct {
	Type          string      `json:"type"`
	Message       UserMessage `json:"message"`
	SessionID     string      `json:"session_id,omitempty"`
	ParentToolUse string      `json:"parent_tool_use_id,omitempty"`
}

// UserMessage is the nested message body of a UserFrame.
type UserMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserFrame builds an outbound user conversation frame.
func NewUserFrame(content, sessionID, parentToolUseID string) UserFrame {
	return UserFrame{
		Type:          TypeUser,
		Message:       UserMessage{Role: "user", Content: content},
		SessionID:     sessionID,
		ParentToolUse: parentToolUseID,
	}
}

// RawMessage carries a decoded conversation message verbatim, plus its
// extracted type discriminator and (if present) an API error-kind
// annotation. Conversation messages are treated as opaque beyond routing;
// richer typing belongs to a layer above this SDK (see spec Open
// Questions).
type RawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"-"`

	// ErrorKind and ErrorMessage are populated whenever the message
	// carries an "error" annotation; the kind is copied verbatim, and
	// mapping it onto internal/sdkerrors.APIErrorKind happens later.
	ErrorKind    string `json:"-"`
	ErrorMessage string `json:"-"`
}

// apiErrorProbe is used to opportunistically detect an error annotation
// on an otherwise-opaque conversation message without committing to its
// full shape.
type apiErrorProbe struct {
	Type  string `json:"type"`
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Text    string `json:"text"`
	} `json:"error"`
}

// DecodeRawMessage wraps a decoded line believed to be a conversation
// message, extracting its type and any error annotation.
func DecodeRawMessage(line []byte) (RawMessage, error) {
	var probe apiErrorProbe
	if err := json.Unmarshal(line, &probe); err != nil {
		return RawMessage{}, err
	}
	msg := RawMessage{Type: probe.Type, Data: json.RawMessage(append([]byte(nil), line...))}
	if probe.Error != nil {
		msg.ErrorKind = probe.Error.Kind
		msg.ErrorMessage = probe.Error.Message
		if msg.ErrorMessage == "" {
			msg.ErrorMessage = probe.Error.Text
		}
	}
	return msg, nil
}

// MarshalJSON returns the original wire bytes so re-serialization (e.g.
// in the mock agent fixture) round-trips exactly.
func (m RawMessage) MarshalJSON() ([]byte, error) {
	if m.Data != nil {
		return m.Data, nil
	}
	return json.Marshal(struct {
		Type string `json:"type"`
	}{Type: m.Type})
}

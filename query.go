package agentsdk

import (
	"context"

	"github.com/flowloop/agentsdk/internal/idgen"
	"github.com/flowloop/agentsdk/internal/protocol"
	"github.com/flowloop/agentsdk/internal/query"
	"github.com/flowloop/agentsdk/internal/sdkerrors"
)

// Event is one item delivered by Query/QueryStream: either a conversation
// Message or a terminal Err. Once Err is non-nil the channel is closed;
// no further Messages follow.
type Event struct {
	Message Message
	Err     error
}

// Query sends a single prompt turn and streams the conversation back. It
// sets up the transport and protocol engine, performs the initialize
// handshake, emits the prompt, and tears everything down once the
// conversation ends or the caller cancels ctx.
//
// If the caller stops reading the returned channel without cancelling
// ctx, the producing goroutine blocks on delivery and leaks: cancel ctx
// to abandon iteration early. Abandonment is not an error; shutdown
// completes without raising.
func Query(ctx context.Context, prompt string, opts Options) (<-chan Event, error) {
	return runQuery(ctx, opts, false, func(sessionID string, send func(protocol.UserFrame) bool) {
		send(protocol.NewUserFrame(prompt, sessionID, ""))
	})
}

// QueryStream is the streaming-input variant of Query: prompts is a
// channel of user turns, closed by the caller when done. Required when
// Options.CanUseTool is set, since a permission callback needs a
// bidirectional channel that a single string prompt does not keep open.
func QueryStream(ctx context.Context, prompts <-chan string, opts Options) (<-chan Event, error) {
	return runQuery(ctx, opts, true, func(sessionID string, send func(protocol.UserFrame) bool) {
		for p := range prompts {
			if !send(protocol.NewUserFrame(p, sessionID, "")) {
				return
			}
		}
	})
}

func runQuery(ctx context.Context, opts Options, streaming bool, feed func(sessionID string, send func(protocol.UserFrame) bool)) (<-chan Event, error) {
	if err := opts.validate(streaming); err != nil {
		return nil, err
	}

	engine := query.New(opts.buildEngineConfig("sdk-go"))
	if err := engine.Start(ctx); err != nil {
		return nil, err
	}
	if _, err := engine.Initialize(ctx); err != nil {
		engine.Close()
		return nil, err
	}

	inputCh := make(chan protocol.UserFrame)
	sessionID := idgen.NewSessionID()
	go func() {
		defer close(inputCh)
		feed(sessionID, func(f protocol.UserFrame) bool {
			select {
			case inputCh <- f:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	go engine.StreamInput(ctx, inputCh)

	out := make(chan Event)
	go func() {
		defer close(out)
		defer engine.Close()

		received := engine.ReceiveMessages()
		for {
			select {
			case r, ok := <-received:
				if !ok {
					return
				}
				if r.Err != nil {
					sendEvent(ctx, out, Event{Err: r.Err})
					return
				}
				if apiErr := apiErrorFromMessage(r.Message); apiErr != nil {
					sendEvent(ctx, out, Event{Err: apiErr})
					return
				}
				if !sendEvent(ctx, out, Event{Message: r.Message}) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func sendEvent(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// apiErrorFromMessage implements the API-error-surfacing rule:
// a conversation message carrying any error-kind annotation causes the
// next consumer read to raise that typed error immediately rather than
// yielding the message; unrecognized kinds become APIErrorUnknown.
func apiErrorFromMessage(msg Message) error {
	if msg.ErrorKind == "" {
		return nil
	}
	return sdkerrors.NewAPIError(msg.ErrorKind, msg.ErrorMessage, msg.ErrorMessage)
}

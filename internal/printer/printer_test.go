package printer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/flowloop/agentsdk/internal/protocol"
)

func TestNewWithWriterNonTTYDoesNotPanic(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)
	if p.isTTY {
		t.Fatal("a bytes.Buffer should never be detected as a TTY")
	}
}

func TestMessageResultPrintsTurnComplete(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)
	p.Message(protocol.RawMessage{Type: protocol.TypeResult})

	if !strings.Contains(buf.String(), "turn complete") {
		t.Fatalf("expected 'turn complete' in output, got %q", buf.String())
	}
}

func TestMessageAssistantPrintsContentSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)
	p.Message(protocol.RawMessage{
		Type: "assistant",
		Data: []byte(`{"message":{"content":[{"type":"text","text":"hello"}]}}`),
	})

	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected assistant text content in output, got %q", buf.String())
	}
}

func TestMessageUnhandledTypeStillPrinted(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)
	p.Message(protocol.RawMessage{Type: "custom_frame", Data: []byte(`{"foo":"bar"}`)})

	if !strings.Contains(buf.String(), "unhandled frame") {
		t.Fatalf("expected unhandled frame to still be logged, got %q", buf.String())
	}
}

func TestErrorPrintsMessage(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)
	p.Error(errors.New("connection lost"))

	if !strings.Contains(buf.String(), "connection lost") {
		t.Fatalf("expected error message in output, got %q", buf.String())
	}
}

func TestCompactTruncatesLongPayloads(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)
	long := strings.Repeat("a", 1000)
	p.Message(protocol.RawMessage{Type: "system", Data: []byte(`"` + long + `"`)})

	if !strings.Contains(buf.String(), "...") {
		t.Fatalf("expected truncated payload to carry an ellipsis marker")
	}
}

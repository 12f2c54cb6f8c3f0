// Package printer renders a conversation transcript to a terminal,
// falling back to plain text when the writer is not a TTY.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/flowloop/agentsdk/internal/protocol"
)

// Amber color theme, consistent across the SDK's CLI tooling.
var (
	ColorAmber = lipgloss.Color("#f59e0b")
	ColorMuted = lipgloss.Color("#78716c")
	ColorGreen = lipgloss.Color("#10b981")
	ColorRed   = lipgloss.Color("#f43f5e")
	ColorGray  = lipgloss.Color("#a8a29e")
)

// Printer renders Message frames as they arrive from a Query or Client.
type Printer struct {
	out    io.Writer
	logger *log.Logger
	isTTY  bool
}

// New creates a Printer writing to stdout.
func New() *Printer {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Printer with a custom writer.
func NewWithWriter(w io.Writer) *Printer {
	isTTY := isTerminal(w)

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		// Debug is where system events and unrecognized frame types land;
		// a transcript printer that hides them defeats its purpose.
		Level: log.DebugLevel,
	})
	if isTTY {
		logger.SetStyles(amberStyles())
	}

	return &Printer{out: w, logger: logger, isTTY: isTTY}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Message prints one transcript frame, dispatching on its type
// discriminator. Unrecognized types are printed as a raw debug line
// rather than dropped, so nothing silently disappears from the
// transcript.
func (p *Printer) Message(msg protocol.RawMessage) {
	switch msg.Type {
	case protocol.TypeResult:
		p.logger.Info("turn complete", "type", msg.Type)
	case "assistant", "user":
		p.logger.Info(p.contentSummary(msg), "role", msg.Type)
	case "system":
		p.logger.Debug("system event", "raw", p.compact(msg.Data))
	default:
		p.logger.Debug("unhandled frame", "type", msg.Type, "raw", p.compact(msg.Data))
	}
}

// Error prints a terminal error ending the transcript.
func (p *Printer) Error(err error) {
	p.logger.Error(err.Error())
}

func (p *Printer) contentSummary(msg protocol.RawMessage) string {
	var body struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		return p.compact(msg.Data)
	}
	data, err := json.Marshal(body.Message.Content)
	if err != nil {
		return p.compact(msg.Data)
	}
	return string(data)
}

func (p *Printer) compact(data json.RawMessage) string {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%s", []byte(data))
	}
	const maxLen = 500
	if len(buf) > maxLen {
		return string(buf[:maxLen]) + "..."
	}
	return string(buf)
}

func amberStyles() *log.Styles {
	styles := log.DefaultStyles()

	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Foreground(ColorAmber).
		Bold(true)

	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Foreground(ColorRed).
		Bold(true)

	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Foreground(ColorMuted)

	styles.Timestamp = lipgloss.NewStyle().Foreground(ColorMuted)
	styles.Key = lipgloss.NewStyle().Foreground(ColorAmber)
	styles.Value = lipgloss.NewStyle().Foreground(ColorGray)

	return styles
}

package agentsdk

import (
	"io"

	"github.com/flowloop/agentsdk/internal/printer"
)

// Printer renders a conversation transcript to a terminal, with amber
// styling when the writer is a TTY and plain structured lines
// otherwise. It is a convenience for examples and CLI tools built atop
// Query/Client; consumers that want their own rendering can ignore it
// and read Message/Event directly.
type Printer struct{ p *printer.Printer }

// NewPrinter creates a Printer writing to stdout.
func NewPrinter() *Printer { return &Printer{p: printer.New()} }

// NewPrinterWithWriter creates a Printer writing to w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{p: printer.NewWithWriter(w)}
}

// Message prints one transcript frame.
func (p *Printer) Message(msg Message) { p.p.Message(msg) }

// Error prints a terminal error ending the transcript.
func (p *Printer) Error(err error) { p.p.Error(err) }

package query

import (
	"context"

	"github.com/flowloop/agentsdk/internal/transport"
)

// transporter is the subset of *transport.Transport the engine depends on:
// the engine owns protocol bookkeeping, a transporter owns
// transport-specific I/O, and tests substitute a generated mock instead of
// spawning a real child.
//
//go:generate mockgen -destination=mock_transporter_test.go -package=query . transporter
type transporter interface {
	Open(ctx context.Context) error
	Write(line []byte) error
	EndInput() error
	ReadFrames() <-chan transport.Frame
	Close() error
}

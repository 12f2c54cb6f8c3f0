// Package idgen generates the identifiers the protocol engine needs:
// correlation ids for outbound control requests, stable ids for registered
// hook callbacks, and session ids for outbound user frames.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// RequestIDGenerator produces unique, monotonically distinguishable ids for
// outbound control requests: "req_<counter>_<8 hex chars>". The counter
// guarantees uniqueness within the engine's lifetime even if the random
// suffix collides; the random suffix avoids leaking a predictable sequence
// onto the wire.
type RequestIDGenerator struct {
	counter atomic.Int64
}

// Next returns the next request id.
func (g *RequestIDGenerator) Next() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("req_%d_%s", n, randomHex(4))
}

// HookIDGenerator assigns stable identifiers to registered hook callbacks:
// "hook_<counter>". The identifier space is engine-local; the CLI never
// sees the callable itself, only this id.
type HookIDGenerator struct {
	counter atomic.Int64
}

// Next returns the next hook callback id.
func (g *HookIDGenerator) Next() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("hook_%d", n)
}

// NewSessionID returns a fresh session id for an outbound user conversation
// frame. Session ids are consumer-visible, so a standard UUID string is
// used rather than a hand-rolled scheme.
func NewSessionID() string {
	return uuid.NewString()
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failures are effectively unrecoverable on any
		// supported platform; fall back to a fixed, clearly-marked
		// value rather than panicking mid-protocol.
		return "00000000"
	}
	return hex.EncodeToString(buf)
}

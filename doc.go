// Package agentsdk drives an external agent CLI over line-delimited JSON
// on its standard streams. It exposes two consumer façades over a shared
// protocol engine: Query, a one-shot streaming function, and Client, a
// stateful connection supporting hooks, in-process tools, and direct
// control of the running session (interrupt, model switch, permission
// mode, MCP server lifecycle).
//
// The protocol itself (framing, control-request correlation, the
// in-process MCP tool bridge, and the error taxonomy) lives under
// internal/ and is not part of this package's API surface.
package agentsdk

// Package session turns a peer transport into an MCP peer: it performs
// the initialize handshake with version negotiation and fallback,
// caches the peer's tools, resources, and prompts, gates every
// operation by the negotiated version's capabilities, and owns the
// supervised reconnection policy.
//
// The negotiated version is constant for the lifetime of a session; a
// reconnect builds a fresh transport and negotiates anew.
package session

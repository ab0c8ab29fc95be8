// Package transport owns one MCP peer child process: spawning,
// newline-delimited JSON framing over stdio, request/response
// correlation by id, stderr hygiene, and exit classification.
//
// A Transport multiplexes concurrent calls through an id-keyed pending
// map; writes to stdin are serialized, and a single reader task drains
// each of stdout and stderr. Protocol semantics (handshakes,
// capability gating, reconnection) live a layer up in the session.
package transport

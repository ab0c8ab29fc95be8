// Package protocol defines the JSON-RPC 2.0 envelope and the MCP
// payload records exchanged with peer processes over stdio.
//
// Payload types are deliberately loose: peers disagree on which optional
// fields they populate, so every field that can be absent is optional
// and parsing never fails on a missing field. Version-aware validation
// of outgoing messages happens in the version catalog.
package protocol

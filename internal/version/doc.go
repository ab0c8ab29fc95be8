// Package version is the catalog of MCP protocol versions the host
// understands: what each permits, which older versions it can
// interoperate with, and how to translate messages between adjacent
// formats.
//
// The catalog is immutable after construction. Peer code stays
// declarative by gating operations on capabilities rather than on
// method names, so the same call site works across versions.
package version

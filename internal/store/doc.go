// Package store abstracts the host-provided key/value persistence the
// server registry mirrors itself into. The editor host supplies its own
// implementation; FileStore backs the CLI and MemStore backs tests.
package store

// Package manager orchestrates the runtime: it owns the persistent
// server catalog, the installer pipeline, and at most one live session
// per server, and it republishes session and installer events on the
// single stream the host subscribes to.
//
// Sessions never call back into the manager; the only path from a
// session outward is the event bus, keeping the object graph acyclic.
package manager

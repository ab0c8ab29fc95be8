// Package registry is the persistent server catalog: durable
// ServerRecord entries plus their volatile ServerStatus, mirrored
// atomically to the host's key/value store on every mutation.
//
// Records are value types updated by copy-on-write; the registry never
// hands out aliases into its own maps.
package registry

// Package events is the pub/sub stream connecting the runtime to the
// host. Every event is a {kind, payload} pair; kinds are the complete
// enumerated contract the host UI subscribes to.
//
// Each subscriber gets its own ordered bounded channel. Delivery is
// drop-free by default (slow subscribers block the publisher); a
// subscriber may instead opt into dropping with an observable counter.
package events

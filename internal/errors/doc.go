// Package errors defines the error taxonomy shared across the MCP host
// runtime.
//
// It declares sentinel errors for the cross-cutting failure kinds
// (connection state, negotiation, security, persistence) and two typed
// errors that carry structure callers branch on:
//
//   - [TimeoutError] identifies the RPC method whose deadline elapsed.
//   - [PeerError] carries the JSON-RPC error code and message returned
//     by the peer.
//
// Sentinels are declared with cockroachdb/errors so that errors.Is
// works across wrap chains:
//
//	if errors.Is(err, hosterrors.ErrNotConnected) {
//	    // session is not running
//	}
package errors

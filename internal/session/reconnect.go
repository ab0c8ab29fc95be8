package session

import (
	"context"
	"fmt"
	"time"

	"github.com/thoreinstein/mcphost/internal/events"
	"github.com/thoreinstein/mcphost/internal/protocol"
	"github.com/thoreinstein/mcphost/internal/registry"
	"github.com/thoreinstein/mcphost/internal/transport"
)

// typedNotifications maps list-changed methods to their event kinds.
var typedNotifications = map[string]events.Kind{
	protocol.MethodToolsListChanged:     events.KindToolsListChanged,
	protocol.MethodResourcesListChanged: events.KindResourcesListChanged,
	protocol.MethodPromptsListChanged:   events.KindPromptsListChanged,
}

// handleNotification forwards peer notifications. List-changed
// notifications become typed events only when the negotiated version
// has the notifications capability; everything else is forwarded
// generically.
func (s *Session) handleNotification(env *protocol.Envelope) {
	kind, typed := typedNotifications[env.Method]

	s.mu.Lock()
	hasNotifications := false
	for _, f := range s.negotiated.Capabilities {
		if string(f) == "notifications" {
			hasNotifications = true
			break
		}
	}
	s.mu.Unlock()

	if typed && hasNotifications {
		s.publish(kind, events.ServerPayload{ServerID: s.serverID, Detail: env.Method})
		return
	}
	s.publish(events.KindNotification, events.ServerPayload{ServerID: s.serverID, Detail: env.Method})
}

func (s *Session) handleNonJSON(line string) {
	s.publish(events.KindNonJSONOutput, events.OutputPayload{ServerID: s.serverID, Line: line})
}

// handleStderr publishes every stderr line; non-benign connection-class
// lines additionally trigger reconnection consideration.
func (s *Session) handleStderr(line string, benign bool) {
	s.publish(events.KindStderrOutput, events.OutputPayload{ServerID: s.serverID, Line: line, Benign: benign})
	if benign {
		return
	}

	s.publish(events.KindClientError, events.ErrorPayload{ServerID: s.serverID, Err: line})
	if transport.IsConnectionError(line) {
		go s.maybeReconnect("stderr: " + line)
	}
}

// handleTransportError records framing failures. Parse errors are not
// connection-class, so they never escalate to reconnection.
func (s *Session) handleTransportError(err error) {
	s.publish(events.KindClientError, events.ErrorPayload{ServerID: s.serverID, Err: err.Error()})
}

// handleExit reacts to process death: reconnect-eligible exits enter
// the reconnect policy, benign exits settle the state.
func (s *Session) handleExit(info transport.ExitInfo) {
	s.mu.Lock()
	closing := s.closing
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	if closing {
		return
	}

	if wasConnected {
		s.publish(events.KindClientDisconnected, events.ServerPayload{
			ServerID: s.serverID,
			Detail:   fmt.Sprintf("exit code %d", info.Code),
		})
	}

	if info.ReconnectEligible {
		s.publish(events.KindClientError, events.ErrorPayload{
			ServerID: s.serverID,
			Err:      fmt.Sprintf("process exited unexpectedly: code %d signal %s", info.Code, info.Signal),
		})
		go s.maybeReconnect(fmt.Sprintf("exit code %d", info.Code))
		return
	}

	// A code-1 exit after a fatal stderr line is an error; otherwise
	// codes 0 and 1 are benign stops.
	s.mu.Lock()
	if info.Code == 1 && info.SawFatalStderr {
		s.state = registry.StateError
	} else {
		s.state = registry.StateStopped
	}
	s.conn = nil
	s.mu.Unlock()
}

// maybeReconnect runs the supervised reconnection policy: linear
// backoff, bounded attempts, cancellation when a manual restart won the
// race.
func (s *Session) maybeReconnect(cause string) {
	s.mu.Lock()
	if s.closing || s.state == registry.StateReconnecting {
		s.mu.Unlock()
		return
	}
	s.state = registry.StateReconnecting
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			return
		}
		s.attempts++
		attempt := s.attempts
		if attempt > s.opts.MaxReconnectAttempts {
			// Latch in error until an explicit restart or uninstall.
			s.state = registry.StateError
			s.mu.Unlock()
			s.publish(events.KindClientError, events.ErrorPayload{
				ServerID: s.serverID,
				Err:      fmt.Sprintf("giving up after %d reconnect attempts (%s)", s.opts.MaxReconnectAttempts, cause),
			})
			return
		}
		s.mu.Unlock()

		s.publish(events.KindClientReconnecting, events.ReconnectingPayload{
			ServerID: s.serverID,
			Attempt:  attempt,
			Max:      s.opts.MaxReconnectAttempts,
		})

		time.Sleep(s.opts.ReconnectDelay * time.Duration(attempt))

		// A manual restart may have raced with the automatic policy;
		// if the session is already running again, cancel the retry.
		s.mu.Lock()
		if s.closing || s.state == registry.StateRunning {
			s.mu.Unlock()
			return
		}
		s.state = registry.StateStarting
		old := s.conn
		s.conn = nil
		s.mu.Unlock()

		if old != nil {
			_ = old.Close()
		}

		if err := s.connectOnce(context.Background()); err != nil {
			s.opts.Logger.Warn("reconnect attempt failed",
				"server", s.serverID, "attempt", attempt, "error", err)
			s.mu.Lock()
			s.state = registry.StateReconnecting
			s.mu.Unlock()
			continue
		}
		return
	}
}

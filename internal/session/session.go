package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	hosterrors "github.com/thoreinstein/mcphost/internal/errors"
	"github.com/thoreinstein/mcphost/internal/events"
	"github.com/thoreinstein/mcphost/internal/protocol"
	"github.com/thoreinstein/mcphost/internal/registry"
	"github.com/thoreinstein/mcphost/internal/transport"
	"github.com/thoreinstein/mcphost/internal/version"
)

// Defaults for session tuning knobs.
const (
	DefaultCallTimeout          = 30 * time.Second
	DefaultMaxReconnectAttempts = 3
	DefaultReconnectDelay       = 2 * time.Second
)

// Conn is the slice of the transport a session drives. Satisfied by
// *transport.Transport; tests substitute scripted fakes.
type Conn interface {
	Spawn() error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Notify(method string, params any) error
	Close() error
	Pid() int
}

// Factory builds a fresh transport for each connection attempt. A new
// transport (and a new negotiation) is created on every reconnect.
type Factory func(inv registry.Invocation, handlers transport.Handlers) Conn

// DefaultFactory spawns real child processes.
func DefaultFactory(logger *slog.Logger) Factory {
	return func(inv registry.Invocation, handlers transport.Handlers) Conn {
		return transport.New(inv, transport.Options{Logger: logger}, handlers)
	}
}

// Options configures a session.
type Options struct {
	CallTimeout          time.Duration
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	ClientInfo           protocol.Info
	Logger               *slog.Logger
}

func (o *Options) fill() {
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.ClientInfo.Name == "" {
		o.ClientInfo = protocol.Info{Name: "mcphost", Version: "1.0.0"}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Session layers MCP protocol semantics on one peer transport: the
// initialize handshake with version negotiation and fallback, the
// capability cache, per-version gating of every operation, and the
// reconnect policy.
type Session struct {
	serverID string
	inv      registry.Invocation
	catalog  *version.Catalog
	bus      *events.Bus
	factory  Factory
	opts     Options

	mu         sync.Mutex
	state      registry.State
	conn       Conn
	negotiated version.Negotiation
	serverInfo protocol.Info
	peerCaps   protocol.PeerCapabilities
	tools      map[string]protocol.Tool
	resources  map[string]protocol.Resource
	prompts    map[string]protocol.Prompt
	attempts   int
	closing    bool
	connected  bool
}

// New creates a session in the stopped state.
func New(serverID string, inv registry.Invocation, catalog *version.Catalog, bus *events.Bus, factory Factory, opts Options) *Session {
	opts.fill()
	if factory == nil {
		factory = DefaultFactory(opts.Logger)
	}
	return &Session{
		serverID:  serverID,
		inv:       inv,
		catalog:   catalog,
		bus:       bus,
		factory:   factory,
		opts:      opts,
		state:     registry.StateStopped,
		tools:     make(map[string]protocol.Tool),
		resources: make(map[string]protocol.Resource),
		prompts:   make(map[string]protocol.Prompt),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() registry.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Negotiated returns the negotiation outcome; valid once running.
func (s *Session) Negotiated() version.Negotiation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiated
}

// ServerInfo returns the peer's self-description from initialize.
func (s *Session) ServerInfo() protocol.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// Pid returns the peer's process id, or 0 when not running.
func (s *Session) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0
	}
	return s.conn.Pid()
}

// Connect spawns the process and performs the handshake. On success the
// session is running; on failure it is left in the error state.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == registry.StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = registry.StateStarting
	s.mu.Unlock()

	if err := s.connectOnce(ctx); err != nil {
		s.mu.Lock()
		s.state = registry.StateError
		s.mu.Unlock()
		return err
	}
	return nil
}

// connectOnce builds one transport, spawns, and runs the handshake.
func (s *Session) connectOnce(ctx context.Context) error {
	conn := s.factory(s.inv, transport.Handlers{
		OnNotification:   s.handleNotification,
		OnNonJSON:        s.handleNonJSON,
		OnStderr:         s.handleStderr,
		OnTransportError: s.handleTransportError,
		OnExit:           s.handleExit,
	})

	if err := conn.Spawn(); err != nil {
		return errors.Wrapf(err, "spawning server %s", s.serverID)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	neg, info, caps, err := s.handshake(ctx, conn)
	if err != nil {
		_ = conn.Close()
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.negotiated = neg
	s.serverInfo = info
	s.peerCaps = caps
	s.state = registry.StateRunning
	s.attempts = 0
	s.connected = true
	s.mu.Unlock()

	s.publish(events.KindClientConnected, events.ConnectedPayload{
		ServerID:     s.serverID,
		Version:      neg.Version,
		Capabilities: featureStrings(neg.Capabilities),
		PID:          conn.Pid(),
		ServerName:   info.Name,
	})

	s.discoverCapabilities(ctx)
	return nil
}

// handshake negotiates a protocol version with the peer, falling back
// through every supported version when the primary attempt fails.
func (s *Session) handshake(ctx context.Context, conn Conn) (version.Negotiation, protocol.Info, protocol.PeerCapabilities, error) {
	preferred := s.catalog.SupportedVersions()[0]

	neg, info, caps, err := s.initializeWith(ctx, conn, preferred)
	if err == nil {
		return neg, info, caps, nil
	}

	s.opts.Logger.Warn("primary handshake failed, entering version fallback",
		"server", s.serverID, "error", err)

	for _, v := range s.catalog.SupportedVersions() {
		s.publish(events.KindVersionFallbackAttempt, events.VersionPayload{ServerID: s.serverID, Version: v})

		neg, info, caps, ferr := s.initializeWith(ctx, conn, v)
		if ferr != nil {
			continue
		}
		s.publish(events.KindVersionFallbackSuccess, events.VersionPayload{ServerID: s.serverID, Version: neg.Version})
		return neg, info, caps, nil
	}

	s.publish(events.KindVersionNegotiationError, events.VersionPayload{ServerID: s.serverID, Details: err.Error()})
	return version.Negotiation{}, protocol.Info{}, protocol.PeerCapabilities{},
		errors.Wrapf(hosterrors.ErrHandshakeFailed, "server %s: %s", s.serverID, err)
}

// initializeWith performs the initialize exchange starting from the
// given version, renegotiating and re-issuing initialize when the peer
// settles on a different version.
func (s *Session) initializeWith(ctx context.Context, conn Conn, startVersion string) (version.Negotiation, protocol.Info, protocol.PeerCapabilities, error) {
	result, err := s.sendInitialize(ctx, conn, startVersion)
	if err != nil {
		return version.Negotiation{}, protocol.Info{}, protocol.PeerCapabilities{}, err
	}

	peerVersions := peerClaimedVersions(result, startVersion)
	neg, err := s.catalog.Negotiate(peerVersions)
	if err != nil {
		return version.Negotiation{}, protocol.Info{}, protocol.PeerCapabilities{}, err
	}

	// If negotiation settled on a different version than the one we
	// opened with, re-issue initialize so the peer sees consistent
	// capability declarations.
	if neg.Version != startVersion {
		result, err = s.sendInitialize(ctx, conn, neg.Version)
		if err != nil {
			return version.Negotiation{}, protocol.Info{}, protocol.PeerCapabilities{}, err
		}
	}

	if err := conn.Notify(protocol.MethodInitialized, nil); err != nil {
		return version.Negotiation{}, protocol.Info{}, protocol.PeerCapabilities{}, err
	}

	s.publish(events.KindVersionNegotiated, events.VersionPayload{
		ServerID: s.serverID,
		Version:  neg.Version,
		Details:  neg.Details,
	})
	if neg.IsDeprecated {
		s.publish(events.KindVersionWarning, events.VersionPayload{
			ServerID: s.serverID,
			Version:  neg.Version,
			Details:  "negotiated version is deprecated",
		})
	}

	return neg, result.ServerInfo, result.Capabilities, nil
}

func (s *Session) sendInitialize(ctx context.Context, conn Conn, v string) (protocol.InitializeResult, error) {
	params, err := s.catalog.BuildInitializeParams(v, s.opts.ClientInfo)
	if err != nil {
		return protocol.InitializeResult{}, err
	}

	if res := s.validate(protocol.MethodInitialize, params, v); res != nil {
		return protocol.InitializeResult{}, res
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	raw, err := conn.Call(callCtx, protocol.MethodInitialize, params)
	if err != nil {
		return protocol.InitializeResult{}, err
	}

	var result protocol.InitializeResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return protocol.InitializeResult{}, errors.Wrap(err, "decoding initialize result")
		}
	}
	return result, nil
}

// peerClaimedVersions extracts the peer's version claims: prefer
// result.protocolVersion, else capabilities.protocolVersions, else
// assume the version we asked for.
func peerClaimedVersions(result protocol.InitializeResult, asked string) []string {
	if result.ProtocolVersion != "" {
		return []string{result.ProtocolVersion}
	}
	if len(result.Capabilities.ProtocolVersions) > 0 {
		return result.Capabilities.ProtocolVersions
	}
	return []string{asked}
}

// discoverCapabilities lists tools, resources, and prompts, but only
// those enabled both by the negotiated version and by the peer's
// declared capabilities. Failures here are warnings, not fatal.
func (s *Session) discoverCapabilities(ctx context.Context) {
	s.mu.Lock()
	neg := s.negotiated
	caps := s.peerCaps
	s.mu.Unlock()

	has := func(f version.Feature) bool {
		for _, c := range neg.Capabilities {
			if c == f {
				return true
			}
		}
		return false
	}

	if has(version.FeatureTools) && caps.HasTools() {
		if _, err := s.refreshTools(ctx); err != nil {
			s.opts.Logger.Warn("tool discovery failed", "server", s.serverID, "error", err)
		}
	}
	if has(version.FeatureResources) && caps.HasResources() {
		if _, err := s.refreshResources(ctx); err != nil {
			s.opts.Logger.Warn("resource discovery failed", "server", s.serverID, "error", err)
		}
	}
	if has(version.FeaturePrompts) && caps.HasPrompts() {
		if _, err := s.refreshPrompts(ctx); err != nil {
			s.opts.Logger.Warn("prompt discovery failed", "server", s.serverID, "error", err)
		}
	}
}

func featureStrings(features []version.Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = string(f)
	}
	return out
}

// Close tears the session down: shutdown notification, SIGTERM via the
// transport, state stopped. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == registry.StateStopped && s.conn == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.state = registry.StateStopping
	conn := s.conn
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Notify(protocol.MethodShutdown, nil)
		_ = conn.Close()
	}

	s.mu.Lock()
	s.state = registry.StateStopped
	s.conn = nil
	s.mu.Unlock()

	if wasConnected {
		s.publish(events.KindClientDisconnected, events.ServerPayload{ServerID: s.serverID})
	}
	return nil
}

func (s *Session) publish(kind events.Kind, payload any) {
	if s.bus != nil {
		s.bus.Publish(kind, payload)
	}
}

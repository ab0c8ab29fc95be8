package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	hosterrors "github.com/thoreinstein/mcphost/internal/errors"
	"github.com/thoreinstein/mcphost/internal/events"
	"github.com/thoreinstein/mcphost/internal/installer"
	"github.com/thoreinstein/mcphost/internal/logging"
	"github.com/thoreinstein/mcphost/internal/protocol"
	"github.com/thoreinstein/mcphost/internal/registry"
	"github.com/thoreinstein/mcphost/internal/session"
	"github.com/thoreinstein/mcphost/internal/version"
)

// DefaultRestartPause separates the stop and start halves of a restart.
const DefaultRestartPause = time.Second

// Options tunes a Manager at construction time.
type Options struct {
	ClientInfo           protocol.Info
	CallTimeout          time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	RestartPause         time.Duration

	// SessionFactory overrides transport construction; tests use it to
	// substitute scripted peers.
	SessionFactory session.Factory
}

// InstallOptions extends the installer options with manager behavior.
type InstallOptions struct {
	installer.InstallOptions

	// Overwrite replaces an existing record with the same id. Refused
	// by default: the caller must uninstall first.
	Overwrite bool
	// AutoStart starts the server immediately after install.
	AutoStart bool
}

// Manager owns the set of live peer sessions over the persistent
// catalog: install, start, stop, restart, health, and the event stream
// the host subscribes to.
type Manager struct {
	reg       *registry.Registry
	installer *installer.Installer
	catalog   *version.Catalog
	bus       *events.Bus
	logger    *slog.Logger
	opts      Options

	mu       sync.Mutex
	sessions map[string]*session.Session
	disposed bool
}

// New assembles a manager. The bus, registry, and installer are
// construction-time arguments so hosts and tests control their
// lifetimes.
func New(reg *registry.Registry, inst *installer.Installer, catalog *version.Catalog, bus *events.Bus, logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RestartPause <= 0 {
		opts.RestartPause = DefaultRestartPause
	}
	return &Manager{
		reg:       reg,
		installer: inst,
		catalog:   catalog,
		bus:       bus,
		logger:    logger,
		opts:      opts,
		sessions:  make(map[string]*session.Session),
	}
}

// Subscribe attaches a host listener to the event stream.
func (m *Manager) Subscribe(opts ...events.SubscribeOption) *events.Subscription {
	return m.bus.Subscribe(opts...)
}

// Install runs the installer pipeline and registers the produced
// record.
func (m *Manager) Install(ctx context.Context, url string, opts InstallOptions) (registry.ServerRecord, error) {
	rec, err := m.installer.Install(ctx, url, opts.InstallOptions)
	if err != nil {
		return registry.ServerRecord{}, err
	}
	rec.Metadata.AutoStart = opts.AutoStart || rec.Metadata.AutoStart

	if err := m.reg.AddOrReplace(rec, opts.Overwrite); err != nil {
		return registry.ServerRecord{}, err
	}
	m.bus.Publish(events.KindServerInstalled, events.InstallPayload{
		URL:      url,
		ServerID: rec.ID,
	})

	if opts.AutoStart {
		if _, err := m.Start(ctx, rec.ID); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// Start brings the server up. Starting a server that is already
// running returns its session idempotently.
func (m *Manager) Start(ctx context.Context, id string) (*session.Session, error) {
	rec, err := m.reg.Get(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil, errors.New("manager is disposed")
	}
	if existing, ok := m.sessions[id]; ok {
		if existing.State() == registry.StateRunning {
			m.mu.Unlock()
			return existing, nil
		}
		// Stale session from an earlier failure: tear it down first.
		delete(m.sessions, id)
		m.mu.Unlock()
		_ = existing.Close()
		m.mu.Lock()
	}

	sess := session.New(id, rec.Invocation, m.catalog, m.bus, m.opts.SessionFactory, session.Options{
		CallTimeout:          m.opts.CallTimeout,
		MaxReconnectAttempts: m.opts.MaxReconnectAttempts,
		ReconnectDelay:       m.opts.ReconnectDelay,
		ClientInfo:           m.opts.ClientInfo,
		Logger:               logging.WithServer(m.logger, id),
	})
	m.sessions[id] = sess
	m.mu.Unlock()

	m.bus.Publish(events.KindServerStarting, events.ServerPayload{ServerID: id})
	if err := m.reg.SetStatus(id, registry.StateStarting, registry.StatusDetails{}); err != nil {
		m.logger.Warn("status update failed", "server", id, "error", err)
	}

	if err := sess.Connect(ctx); err != nil {
		_ = m.reg.SetStatus(id, registry.StateError, registry.StatusDetails{Err: err.Error()})
		return nil, err
	}

	neg := sess.Negotiated()
	_ = m.reg.SetStatus(id, registry.StateRunning, registry.StatusDetails{
		PID:                 sess.Pid(),
		ProtocolVersion:     neg.Version,
		VersionCapabilities: featureStrings(neg.Capabilities),
	})
	m.bus.Publish(events.KindServerStarted, events.ServerPayload{ServerID: id, Detail: neg.Version})
	return sess, nil
}

func featureStrings(features []version.Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = string(f)
	}
	return out
}

// Stop closes the server's session and records the stop.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	m.bus.Publish(events.KindServerStopping, events.ServerPayload{ServerID: id})
	err := sess.Close()
	if serr := m.reg.SetStatus(id, registry.StateStopped, registry.StatusDetails{}); serr != nil {
		m.logger.Warn("status update failed", "server", id, "error", serr)
	}
	m.bus.Publish(events.KindServerStopped, events.ServerPayload{ServerID: id})
	return err
}

// Restart stops (when live), pauses, and starts again.
func (m *Manager) Restart(ctx context.Context, id string) (*session.Session, error) {
	if _, err := m.reg.Get(id); err != nil {
		return nil, err
	}

	if err := m.Stop(ctx, id); err != nil {
		m.logger.Warn("stop during restart failed", "server", id, "error", err)
	}
	time.Sleep(m.opts.RestartPause)
	m.reg.IncrementRestartCount(id)

	sess, err := m.Start(ctx, id)
	if err != nil {
		m.bus.Publish(events.KindServerRestartFailed, events.ErrorPayload{ServerID: id, Err: err.Error()})
		return nil, err
	}
	return sess, nil
}

// Uninstall stops the server if running, removes its files, and drops
// it from the registry.
func (m *Manager) Uninstall(ctx context.Context, id string) error {
	rec, err := m.reg.Get(id)
	if err != nil {
		return err
	}

	if err := m.Stop(ctx, id); err != nil {
		m.logger.Warn("stop during uninstall failed", "server", id, "error", err)
	}
	if err := m.installer.Uninstall(rec); err != nil {
		return err
	}
	if err := m.reg.Remove(id); err != nil {
		return err
	}
	m.bus.Publish(events.KindServerUninstalled, events.ServerPayload{ServerID: id})
	return nil
}

// Update reinstalls the server from its original install URL.
func (m *Manager) Update(ctx context.Context, id string, opts InstallOptions) (registry.ServerRecord, error) {
	rec, err := m.reg.Get(id)
	if err != nil {
		return registry.ServerRecord{}, err
	}
	if rec.InstallURL == "" {
		return registry.ServerRecord{}, errors.Newf("server %s has no install url", id)
	}

	if err := m.Stop(ctx, id); err != nil {
		m.logger.Warn("stop during update failed", "server", id, "error", err)
	}

	opts.InstallOptions.ID = id
	opts.InstallOptions.ForceReinstall = true
	opts.Overwrite = true
	return m.Install(ctx, rec.InstallURL, opts)
}

// StartAutoStartServers starts every server marked autoStart and
// returns per-id outcomes.
func (m *Manager) StartAutoStartServers(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for _, rec := range m.reg.List() {
		if !rec.Metadata.AutoStart {
			continue
		}
		_, err := m.Start(ctx, rec.ID)
		out[rec.ID] = err
	}
	return out
}

// StopAll stops every live session.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Stop(ctx, id); err != nil {
			m.logger.Warn("stop failed", "server", id, "error", err)
		}
	}
}

// Health probes the server with a tools listing; success means
// healthy.
func (m *Manager) Health(ctx context.Context, id string) error {
	sess, err := m.GetClient(id)
	if err != nil {
		return err
	}
	if _, err := sess.ListTools(ctx); err != nil {
		return errors.Wrapf(err, "health probe for %s", id)
	}
	return nil
}

// GetClient returns the live session for id.
func (m *Manager) GetClient(id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(hosterrors.ErrNotConnected, "server %s has no live session", id)
	}
	return sess, nil
}

// List returns all registered servers.
func (m *Manager) List() []registry.ServerRecord {
	return m.reg.List()
}

// Get returns one server record.
func (m *Manager) Get(id string) (registry.ServerRecord, error) {
	return m.reg.Get(id)
}

// Status returns the server's status, overlaying the live session
// state when one exists.
func (m *Manager) Status(id string) registry.ServerStatus {
	st := m.reg.Status(id)

	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		st.State = sess.State()
	}
	return st
}

// Export returns records for bulk transfer.
func (m *Manager) Export(ids ...string) map[string]registry.ServerRecord {
	return m.reg.Export(ids...)
}

// Import bulk-loads records.
func (m *Manager) Import(blob map[string]registry.ServerRecord, overwrite bool) registry.ImportSummary {
	return m.reg.Import(blob, overwrite)
}

// ClearCache drops the installer's metadata cache.
func (m *Manager) ClearCache() error {
	return m.installer.ClearCache()
}

// Dispose stops everything and closes the event stream. The manager is
// unusable afterwards.
func (m *Manager) Dispose(ctx context.Context) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.mu.Unlock()

	m.StopAll(ctx)
	m.bus.Close()
}

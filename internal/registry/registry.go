package registry

import (
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	hosterrors "github.com/thoreinstein/mcphost/internal/errors"
	"github.com/thoreinstein/mcphost/internal/events"
	"github.com/thoreinstein/mcphost/internal/store"
)

// idPattern validates server ids.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Sentinel errors for registry operations.
var (
	ErrDuplicateID  = errors.New("server id already exists")
	ErrInvalidID    = errors.New("invalid server id")
	ErrEmptyCommand = errors.New("invocation command is empty")
)

// Registry is the persistent server catalog. Every mutation is mirrored
// atomically to the backing store before it commits in memory, so the
// in-memory state and the persisted state are equal after each
// operation returns.
type Registry struct {
	mu      sync.Mutex
	servers map[string]ServerRecord
	status  map[string]ServerStatus
	store   store.Store
	bus     *events.Bus
	now     func() time.Time
}

// StatusDetails carries the optional fields of a status transition.
type StatusDetails struct {
	PID                 int
	Err                 string
	ProtocolVersion     string
	VersionCapabilities []string
}

// ImportSummary counts the outcomes of a bulk import.
type ImportSummary struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// New creates a registry backed by the given store and publishing to
// the given bus. Previously persisted records are loaded immediately.
func New(st store.Store, bus *events.Bus) (*Registry, error) {
	r := &Registry{
		servers: make(map[string]ServerRecord),
		status:  make(map[string]ServerStatus),
		store:   st,
		bus:     bus,
		now:     time.Now,
	}

	var servers map[string]ServerRecord
	if _, err := st.Get(store.KeyServers, &servers); err != nil {
		return nil, errors.Wrap(hosterrors.ErrRegistry, err.Error())
	}
	if servers != nil {
		r.servers = servers
	}

	var status map[string]ServerStatus
	if _, err := st.Get(store.KeyStatus, &status); err != nil {
		return nil, errors.Wrap(hosterrors.ErrRegistry, err.Error())
	}
	if status != nil {
		r.status = status
	}

	return r, nil
}

// persistLocked mirrors both maps to the store. Callers hold r.mu.
func (r *Registry) persistLocked() error {
	if err := r.store.Set(store.KeyServers, r.servers); err != nil {
		return errors.Wrap(hosterrors.ErrRegistry, err.Error())
	}
	if err := r.store.Set(store.KeyStatus, r.status); err != nil {
		return errors.Wrap(hosterrors.ErrRegistry, err.Error())
	}
	return nil
}

func validateRecord(rec ServerRecord) error {
	if !idPattern.MatchString(rec.ID) {
		return errors.Wrapf(ErrInvalidID, "%q", rec.ID)
	}
	if rec.Invocation.Command == "" {
		return errors.Wrapf(ErrEmptyCommand, "server %s", rec.ID)
	}
	return nil
}

// Add validates and inserts a new record, persists, and emits
// serverAdded.
func (r *Registry) Add(rec ServerRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.servers[rec.ID]; exists {
		r.mu.Unlock()
		return errors.Wrapf(ErrDuplicateID, "%q", rec.ID)
	}

	now := r.now()
	if rec.Metadata.CreatedAt.IsZero() {
		rec.Metadata.CreatedAt = now
	}
	rec.Metadata.UpdatedAt = now

	r.servers[rec.ID] = rec.clone()
	if err := r.persistLocked(); err != nil {
		delete(r.servers, rec.ID)
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.publish(events.KindServerAdded, rec.clone())
	return nil
}

// AddOrReplace inserts the record, removing any existing record with
// the same id first when overwrite is set. Without overwrite it is
// equivalent to Add.
func (r *Registry) AddOrReplace(rec ServerRecord, overwrite bool) error {
	if overwrite {
		r.mu.Lock()
		_, exists := r.servers[rec.ID]
		r.mu.Unlock()
		if exists {
			if err := r.Remove(rec.ID); err != nil {
				return err
			}
		}
	}
	return r.Add(rec)
}

// Update applies a merge function to the record. The id is immutable;
// updatedAt is refreshed, the store mirrored, and serverUpdated
// emitted.
func (r *Registry) Update(id string, merge func(*ServerRecord)) (ServerRecord, error) {
	r.mu.Lock()
	existing, ok := r.servers[id]
	if !ok {
		r.mu.Unlock()
		return ServerRecord{}, errors.Wrapf(hosterrors.ErrNotFound, "server %q", id)
	}

	updated := existing.clone()
	merge(&updated)
	updated.ID = id
	updated.Metadata.CreatedAt = existing.Metadata.CreatedAt
	updated.Metadata.UpdatedAt = r.now()

	if err := validateRecord(updated); err != nil {
		r.mu.Unlock()
		return ServerRecord{}, err
	}

	r.servers[id] = updated
	if err := r.persistLocked(); err != nil {
		r.servers[id] = existing
		r.mu.Unlock()
		return ServerRecord{}, err
	}
	r.mu.Unlock()

	r.publish(events.KindServerUpdated, updated.clone())
	return updated.clone(), nil
}

// Remove deletes the record and its status, persists, and emits
// serverRemoved.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	rec, ok := r.servers[id]
	if !ok {
		r.mu.Unlock()
		return errors.Wrapf(hosterrors.ErrNotFound, "server %q", id)
	}
	prevStatus, hadStatus := r.status[id]

	delete(r.servers, id)
	delete(r.status, id)
	if err := r.persistLocked(); err != nil {
		r.servers[id] = rec
		if hadStatus {
			r.status[id] = prevStatus
		}
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.publish(events.KindServerRemoved, rec.clone())
	return nil
}

// Get returns the record for id.
func (r *Registry) Get(id string) (ServerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.servers[id]
	if !ok {
		return ServerRecord{}, errors.Wrapf(hosterrors.ErrNotFound, "server %q", id)
	}
	return rec.clone(), nil
}

// List returns all records sorted by id.
func (r *Registry) List() []ServerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ServerRecord, 0, len(r.servers))
	for _, rec := range r.servers {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByMethod returns records with the given install method, sorted by
// id.
func (r *Registry) ListByMethod(method InstallMethod) []ServerRecord {
	all := r.List()
	out := all[:0]
	for _, rec := range all {
		if rec.InstallMethod == method {
			out = append(out, rec)
		}
	}
	return out
}

// Status returns the volatile status for id; absent ids report stopped.
func (r *Registry) Status(id string) ServerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.status[id]
	if !ok {
		return ServerStatus{State: StateStopped}
	}
	return st
}

// SetStatus records a state transition, maintaining the timestamp and
// counter rules, persists, and emits statusChanged.
func (r *Registry) SetStatus(id string, state State, details StatusDetails) error {
	r.mu.Lock()
	if _, ok := r.servers[id]; !ok {
		r.mu.Unlock()
		return errors.Wrapf(hosterrors.ErrNotFound, "server %q", id)
	}

	prev, hadPrev := r.status[id]
	st := prev
	st.State = state
	now := r.now()
	st.LastUpdated = now

	switch state {
	case StateRunning:
		st.LastStarted = now
		st.PID = details.PID
		st.ProtocolVersion = details.ProtocolVersion
		st.VersionCapabilities = details.VersionCapabilities
		st.LastError = ""
	case StateStopped:
		st.LastStopped = now
		st.PID = 0
		st.ProtocolVersion = ""
		st.VersionCapabilities = nil
	case StateError:
		st.ErrorCount++
		st.LastError = details.Err
		st.PID = 0
	}

	r.status[id] = st
	if err := r.persistLocked(); err != nil {
		if hadPrev {
			r.status[id] = prev
		} else {
			delete(r.status, id)
		}
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.publish(events.KindStatusChanged, StatusChange{ID: id, Status: st})
	return nil
}

// IncrementRestartCount bumps the restart counter for id.
func (r *Registry) IncrementRestartCount(id string) {
	r.mu.Lock()
	st := r.status[id]
	st.RestartCount++
	st.LastUpdated = r.now()
	r.status[id] = st
	_ = r.persistLocked()
	r.mu.Unlock()
}

// StatusChange is the payload of statusChanged events.
type StatusChange struct {
	ID     string       `json:"id"`
	Status ServerStatus `json:"status"`
}

// Export returns the records for the given ids, or all records when ids
// is empty.
func (r *Registry) Export(ids ...string) map[string]ServerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ServerRecord)
	if len(ids) == 0 {
		for id, rec := range r.servers {
			out[id] = rec.clone()
		}
		return out
	}
	for _, id := range ids {
		if rec, ok := r.servers[id]; ok {
			out[id] = rec.clone()
		}
	}
	return out
}

// Import bulk-loads records. Existing ids are skipped unless overwrite
// is set; invalid records count as errors.
func (r *Registry) Import(blob map[string]ServerRecord, overwrite bool) ImportSummary {
	var sum ImportSummary

	ids := make([]string, 0, len(blob))
	for id := range blob {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec := blob[id]
		rec.ID = id
		if err := r.AddOrReplace(rec, overwrite); err != nil {
			if errors.Is(err, ErrDuplicateID) {
				sum.Skipped++
				continue
			}
			sum.Errors++
			continue
		}
		sum.Imported++
	}
	return sum
}

func (r *Registry) publish(kind events.Kind, payload any) {
	if r.bus != nil {
		r.bus.Publish(kind, payload)
	}
}

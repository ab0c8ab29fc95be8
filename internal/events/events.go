package events

import (
	"sync"
	"sync/atomic"
)

// Kind names an event on the host-facing stream. The set of kinds and
// their payload shapes form the observable contract for the host UI.
type Kind string

// Installer events.
const (
	KindInstallStarted    Kind = "installStarted"
	KindInstallProgress   Kind = "installProgress"
	KindInstallCompleted  Kind = "installCompleted"
	KindInstallFailed     Kind = "installFailed"
	KindServerInstalled   Kind = "serverInstalled"
	KindServerUninstalled Kind = "serverUninstalled"
)

// Registry events.
const (
	KindServerAdded   Kind = "serverAdded"
	KindServerUpdated Kind = "serverUpdated"
	KindServerRemoved Kind = "serverRemoved"
	KindStatusChanged Kind = "statusChanged"
)

// Lifecycle events.
const (
	KindServerStarting      Kind = "serverStarting"
	KindServerStarted       Kind = "serverStarted"
	KindServerStopping      Kind = "serverStopping"
	KindServerStopped       Kind = "serverStopped"
	KindServerRestartFailed Kind = "serverRestartFailed"
)

// Client connection events.
const (
	KindClientConnected    Kind = "clientConnected"
	KindClientDisconnected Kind = "clientDisconnected"
	KindClientError        Kind = "clientError"
	KindClientReconnecting Kind = "clientReconnecting"
)

// Version negotiation events.
const (
	KindVersionNegotiated       Kind = "versionNegotiated"
	KindVersionWarning          Kind = "versionWarning"
	KindVersionNegotiationError Kind = "versionNegotiationError"
	KindVersionFallbackAttempt  Kind = "versionFallbackAttempt"
	KindVersionFallbackSuccess  Kind = "versionFallbackSuccess"
)

// Operation events.
const (
	KindToolCalled      Kind = "toolCalled"
	KindResourceRead    Kind = "resourceRead"
	KindPromptRetrieved Kind = "promptRetrieved"
)

// Transport hygiene events.
const (
	KindNonJSONOutput Kind = "nonJsonOutput"
	KindStderrOutput  Kind = "stderrOutput"
)

// Peer notification events. List-changed notifications are typed; any
// other peer notification is forwarded under KindNotification.
const (
	KindToolsListChanged     Kind = "toolsListChanged"
	KindResourcesListChanged Kind = "resourcesListChanged"
	KindPromptsListChanged   Kind = "promptsListChanged"
	KindNotification         Kind = "notification"
)

// Event is one entry on the stream.
type Event struct {
	Kind    Kind
	Payload any
}

// DefaultBuffer is the per-subscriber channel depth.
const DefaultBuffer = 64

// Subscription is one subscriber's view of the bus: an ordered channel
// of events plus a drop counter when the subscription is lossy.
type Subscription struct {
	ch      chan Event
	done    chan struct{}
	lossy   bool
	dropped atomic.Uint64
	bus     *Bus

	mu       sync.Mutex
	closed   bool
	doneOnce sync.Once
}

// Events returns the subscriber's ordered event channel. It is closed
// when the subscription or the bus is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns the number of events discarded because the subscriber
// fell behind. Always zero for blocking subscriptions.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from the bus and closes its channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.detach(s)
	s.terminate()
}

// terminate unblocks any in-flight send, then closes the channel. The
// done close happens outside the lock so a blocked sender can exit.
func (s *Subscription) terminate() {
	s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers one event, respecting the drop policy. Delivery holds
// the subscription lock so the channel cannot close mid-send.
func (s *Subscription) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.lossy {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
		}
		return
	}
	select {
	case s.ch <- ev:
	case <-s.done:
	}
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// WithBuffer sets the channel depth for the subscription.
func WithBuffer(n int) SubscribeOption {
	return func(s *Subscription) {
		if n > 0 {
			s.ch = make(chan Event, n)
		}
	}
}

// WithDropPolicy makes the subscription lossy: when its buffer is full
// the publisher drops the event for this subscriber and increments the
// drop counter instead of blocking.
func WithDropPolicy() SubscribeOption {
	return func(s *Subscription) {
		s.lossy = true
	}
}

// Bus is an in-process pub/sub stream. Events are delivered to each
// subscriber in emission order; delivery is drop-free unless the
// subscriber opted into the drop policy.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe(opts ...SubscribeOption) *Subscription {
	s := &Subscription{
		ch:   make(chan Event, DefaultBuffer),
		done: make(chan struct{}),
		bus:  b,
	}
	for _, opt := range opts {
		opt(s)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.terminate()
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

func (b *Bus) detach(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber. Blocking subscribers
// apply backpressure; lossy subscribers drop with a counter.
func (b *Bus) Publish(kind Kind, payload any) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	ev := Event{Kind: kind, Payload: payload}
	for _, s := range subs {
		s.send(ev)
	}
}

// Close shuts the bus down and closes every subscriber channel. Further
// publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for _, s := range subs {
		s.terminate()
	}
}

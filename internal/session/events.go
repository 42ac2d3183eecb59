package session

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"wagate/internal/engine"
	"wagate/internal/observability"
)

// EventKind labels one lifecycle or traffic event on a session.
type EventKind string

const (
	EventQR           EventKind = "qr"
	EventLoading      EventKind = "loading"
	EventReady        EventKind = "ready"
	EventDisconnected EventKind = "disconnected"
	EventError        EventKind = "error"
	EventMessage      EventKind = "message"
)

// Event is one entry on a session's ordered event stream. The QR payload is
// the raw pairing challenge; rendering it is the bridge's job.
type Event struct {
	Kind        EventKind              `json:"kind"`
	DeviceID    string                 `json:"deviceId"`
	QR          string                 `json:"qr,omitempty"`
	PhoneNumber string                 `json:"phoneNumber,omitempty"`
	Message     *engine.InboundMessage `json:"message,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// subscriberBuffer bounds each subscriber channel. The supervisor never
// blocks on a slow subscriber; overflowing events are dropped with a warning.
const subscriberBuffer = 32

// Subscription is one listener attachment to a session's event stream.
// Cancel detaches the listener; the session itself keeps running.
type Subscription struct {
	ID     string
	Events <-chan Event
	cancel func()
}

func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Subscribe attaches a new listener. Events already emitted are not
// replayed; listeners observe the stream from attachment onward, in order.
// Subscribing to a session whose supervisor has already exited yields an
// already-closed stream, so ranging over Events always terminates.
func (s *Session) Subscribe() *Subscription {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)

	s.subsMu.Lock()
	if s.subs == nil {
		s.subsMu.Unlock()
		close(ch)
		return &Subscription{ID: id, Events: ch, cancel: func() {}}
	}
	s.subs[id] = ch
	s.subsMu.Unlock()

	return &Subscription{
		ID:     id,
		Events: ch,
		cancel: func() { s.unsubscribe(id) },
	}
}

func (s *Session) unsubscribe(id string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	ch, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	close(ch)
}

// emit fans one event out to all subscribers. Only the supervisor goroutine
// calls emit, so subscribers observe events in emission order.
func (s *Session) emit(event Event) {
	event.DeviceID = s.deviceID
	observability.RecordSessionEvent(string(event.Kind))

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- event:
		default:
			log.Warn().
				Str("device_id", s.deviceID).
				Str("subscription_id", id).
				Str("kind", string(event.Kind)).
				Msg("session event dropped for slow subscriber")
		}
	}
}

// closeSubscribers runs once at supervisor exit. Setting subs to nil marks
// the stream finished; Subscribe checks for it.
func (s *Session) closeSubscribers() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

package session

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"wagate/internal/credstore"
	"wagate/internal/engine"
	"wagate/internal/observability"
)

// State is one position in the session lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateAwaitingScan  State = "awaiting_scan"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateLoggedOut     State = "logged_out"
	StateErrored       State = "errored"
)

// Status is a pure snapshot of the connection state. Reading it never
// blocks and never touches the engine.
type Status struct {
	State       State  `json:"state"`
	Connected   bool   `json:"connected"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Session supervises one device's connection to the external chat network.
type Session struct {
	deviceID  string
	dialer    engine.Dialer
	creds     credstore.Store
	reconnect ReconnectConfig
	rng       *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	initOnce sync.Once
	started  atomic.Bool

	mu          sync.Mutex
	state       State
	phoneNumber string
	handle      engine.Handle

	subsMu sync.Mutex
	subs   map[string]chan Event
}

func New(cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.DeviceID) == "" {
		return nil, fmt.Errorf("%w: missing device id", ErrInvalidConfig)
	}
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("%w: missing engine dialer", ErrInvalidConfig)
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("%w: missing credential store", ErrInvalidConfig)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		deviceID:  strings.TrimSpace(cfg.DeviceID),
		dialer:    cfg.Dialer,
		creds:     cfg.Credentials,
		reconnect: cfg.Reconnect.WithDefaults(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateUninitialized,
		subs:      make(map[string]chan Event),
	}, nil
}

func (s *Session) DeviceID() string {
	return s.deviceID
}

// Initialize starts the supervisor. It is idempotent and never returns an
// error: the handshake is asynchronous and multi-step, so callers observe
// the outcome through emitted events, not a return value.
func (s *Session) Initialize() {
	s.initOnce.Do(func() {
		s.started.Store(true)
		go s.run()
	})
}

// Status reports the current connection snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.state,
		Connected:   s.state == StateConnected,
		PhoneNumber: s.phoneNumber,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SendText sends a text message to a normalized destination number.
func (s *Session) SendText(ctx context.Context, number, text string) (engine.SendResult, error) {
	handle, err := s.connectedHandle()
	if err != nil {
		return engine.SendResult{}, err
	}
	address, err := NormalizeAddress(number)
	if err != nil {
		return engine.SendResult{}, err
	}
	return s.send(ctx, handle, "text", address, engine.Message{Kind: engine.KindText, Text: text})
}

// SendMedia reads the stored media file and sends it shaped by MIME type.
func (s *Session) SendMedia(ctx context.Context, number, filePath, caption, mimeType string) (engine.SendResult, error) {
	handle, err := s.connectedHandle()
	if err != nil {
		return engine.SendResult{}, err
	}
	address, err := NormalizeAddress(number)
	if err != nil {
		return engine.SendResult{}, err
	}
	msg, err := BuildMediaMessage(filePath, caption, mimeType)
	if err != nil {
		return engine.SendResult{}, err
	}
	return s.send(ctx, handle, string(msg.Kind), address, msg)
}

// Disconnect tears the session down: logs the engine out when a handle is
// live, releases it, and stops the supervisor. Credential material stays on
// disk; only the logged-out transition deletes it. Safe to call repeatedly.
func (s *Session) Disconnect(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	handle := s.handle
	s.handle = nil
	s.mu.Unlock()

	var logoutErr error
	if handle != nil {
		logoutErr = handle.Logout(ctx)
		_ = handle.Close()
	}

	if s.started.Load() {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	if s.state != StateLoggedOut {
		s.state = StateUninitialized
	}
	s.phoneNumber = ""
	s.mu.Unlock()

	if logoutErr != nil {
		log.Warn().Str("device_id", s.deviceID).Err(logoutErr).Msg("session.Disconnect engine logout failed")
	}
	return nil
}

// Done is closed once the supervisor has fully exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// run is the supervisor loop: connect, watch, decide. One iteration per
// connection attempt; the previous handle is released before the next dial.
func (s *Session) run() {
	defer close(s.done)
	defer s.closeSubscribers()

	attempt := 0
	for {
		if s.ctx.Err() != nil {
			return
		}

		cred, err := s.creds.Load(s.deviceID)
		if err != nil {
			s.fail(fmt.Errorf("load credentials: %w", err))
			return
		}

		handle, err := s.dialer.Dial(s.ctx, engine.DialConfig{
			DeviceID:     s.deviceID,
			Credential:   cred,
			OnCredential: s.saveCredential,
		})
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.fail(fmt.Errorf("connect: %w", err))
			return
		}

		s.mu.Lock()
		s.handle = handle
		s.mu.Unlock()

		out := s.watch(handle)

		// Release before any further decision so a reconnect can never
		// race a live predecessor on the same credential directory.
		s.mu.Lock()
		if s.handle == handle {
			s.handle = nil
		}
		s.phoneNumber = ""
		s.mu.Unlock()
		_ = handle.Close()

		// An explicit Disconnect cancels the context and then logs the
		// engine out; the cancellation wins so the logged-out path (which
		// deletes credentials) only fires for engine-side logouts.
		switch {
		case out.cancelled || s.ctx.Err() != nil:
			return
		case out.loggedOut:
			s.transitionLoggedOut()
			return
		}

		if out.opened {
			attempt = 0
		}
		attempt++
		if s.reconnect.MaxAttempts > 0 && attempt > s.reconnect.MaxAttempts {
			s.fail(fmt.Errorf("%w: reconnect attempts exhausted (%d)", ErrEngine, s.reconnect.MaxAttempts))
			return
		}
		log.Info().
			Str("device_id", s.deviceID).
			Int("attempt", attempt).
			Str("reason", out.reason).
			Msg("session.run reconnecting")
		if !s.waitBackoff(attempt) {
			return
		}
	}
}

type watchOutcome struct {
	opened    bool
	loggedOut bool
	cancelled bool
	reason    string
}

// watch consumes one handle's update and message streams until the
// connection closes or the session is cancelled.
func (s *Session) watch(handle engine.Handle) watchOutcome {
	updates := handle.Updates()
	messages := handle.Messages()
	var out watchOutcome

	for {
		select {
		case <-s.ctx.Done():
			out.cancelled = true
			return out

		case update, ok := <-updates:
			if !ok {
				out.reason = "update stream closed"
				return out
			}
			if update.QR != "" {
				s.setState(StateAwaitingScan, "")
				s.emit(Event{Kind: EventQR, QR: update.QR})
				continue
			}
			switch update.Status {
			case engine.StatusConnecting:
				s.setState(StateConnecting, "")
				s.emit(Event{Kind: EventLoading})
			case engine.StatusOpen:
				phone := phoneFromIdentity(handle.Identity())
				s.setState(StateConnected, phone)
				out.opened = true
				log.Info().Str("device_id", s.deviceID).Str("phone_number", phone).Msg("session.watch connected")
				s.emit(Event{Kind: EventReady, PhoneNumber: phone})
			case engine.StatusClosed:
				out.loggedOut = update.LoggedOut
				out.reason = update.Reason
				return out
			}

		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			inbound := msg
			s.emit(Event{Kind: EventMessage, Message: &inbound})
		}
	}
}

// transitionLoggedOut is the single place credential material is deleted.
func (s *Session) transitionLoggedOut() {
	s.setState(StateLoggedOut, "")
	if err := s.creds.Delete(s.deviceID); err != nil {
		log.Error().Str("device_id", s.deviceID).Err(err).Msg("session.transitionLoggedOut credential delete failed")
	}
	log.Info().Str("device_id", s.deviceID).Msg("session.transitionLoggedOut logged out")
	s.emit(Event{Kind: EventDisconnected})
}

// fail moves the session to errored. Credentials and any prior handle are
// left untouched so a re-initialize can reuse them.
func (s *Session) fail(err error) {
	s.setState(StateErrored, "")
	log.Error().Str("device_id", s.deviceID).Err(err).Msg("session.fail")
	s.emit(Event{Kind: EventError, Error: err.Error()})
}

func (s *Session) setState(state State, phoneNumber string) {
	s.mu.Lock()
	s.state = state
	s.phoneNumber = phoneNumber
	s.mu.Unlock()
}

func (s *Session) connectedHandle() (engine.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.handle == nil {
		return nil, fmt.Errorf("%w: device %s", ErrNotConnected, s.deviceID)
	}
	return s.handle, nil
}

func (s *Session) send(ctx context.Context, handle engine.Handle, kind, address string, msg engine.Message) (engine.SendResult, error) {
	start := time.Now()
	result, err := handle.Send(ctx, address, msg)
	observability.RecordEngineSend(kind, time.Since(start), err == nil)
	if err != nil {
		return engine.SendResult{}, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	return result, nil
}

func (s *Session) saveCredential(cred engine.Credential) {
	if err := s.creds.Save(s.deviceID, cred); err != nil {
		log.Error().Str("device_id", s.deviceID).Err(err).Msg("session.saveCredential persist failed")
	}
}

func (s *Session) waitBackoff(attempt int) bool {
	delay := NextBackoffDelay(s.reconnect.Backoff, attempt, s.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

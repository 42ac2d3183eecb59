// Package registry maps device identifiers to live sessions.
//
// Ownership boundary:
// - at most one live session per device id
// - teardown-before-recreate ordering on re-initialize
// - self-purge of sessions that log out on the network side
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"wagate/internal/credstore"
	"wagate/internal/engine"
	"wagate/internal/observability"
	"wagate/internal/session"
)

var (
	ErrInvalidRegistryConfig = errors.New("registry: invalid configuration")
	ErrInvalidDeviceID       = errors.New("registry: invalid device id")
	ErrDeviceNotFound        = errors.New("registry: device not found")
)

// Config wires the collaborators every session shares.
type Config struct {
	Dialer      engine.Dialer
	Credentials credstore.Store
	Reconnect   session.ReconnectConfig
}

// Registry owns the deviceID -> Session map.
type Registry struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func New(cfg Config) (*Registry, error) {
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("%w: missing engine dialer", ErrInvalidRegistryConfig)
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("%w: missing credential store", ErrInvalidRegistryConfig)
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*session.Session),
	}, nil
}

// Initialize creates and starts a session for the device. Any existing
// session for the same id is fully torn down first, so two engine handles
// can never contend over one credential directory.
func (r *Registry) Initialize(ctx context.Context, deviceID string) (*session.Session, error) {
	key := strings.TrimSpace(deviceID)
	if key == "" {
		return nil, ErrInvalidDeviceID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[key]; ok {
		delete(r.sessions, key)
		observability.RecordSessionGauge(-1)
		if err := old.Disconnect(ctx); err != nil {
			log.Warn().Str("device_id", key).Err(err).Msg("registry.Initialize predecessor teardown failed")
		}
	}

	sess, err := session.New(session.Config{
		DeviceID:    key,
		Dialer:      r.cfg.Dialer,
		Credentials: r.cfg.Credentials,
		Reconnect:   r.cfg.Reconnect,
	})
	if err != nil {
		return nil, err
	}
	r.sessions[key] = sess
	observability.RecordSessionGauge(1)

	// The subscription is taken here, before the session starts, so the
	// watcher never races a quickly-finishing supervisor.
	go r.watchLifecycle(key, sess, sess.Subscribe())
	sess.Initialize()

	log.Info().Str("device_id", key).Msg("registry.Initialize session started")
	return sess, nil
}

// Lookup resolves a live session.
func (r *Registry) Lookup(deviceID string) (*session.Session, error) {
	key := strings.TrimSpace(deviceID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}
	return sess, nil
}

// SendText forwards a text send to the device's session.
func (r *Registry) SendText(ctx context.Context, deviceID, number, text string) (engine.SendResult, error) {
	sess, err := r.Lookup(deviceID)
	if err != nil {
		return engine.SendResult{}, err
	}
	return sess.SendText(ctx, number, text)
}

// SendMedia forwards a media send to the device's session.
func (r *Registry) SendMedia(ctx context.Context, deviceID, number, filePath, caption, mimeType string) (engine.SendResult, error) {
	sess, err := r.Lookup(deviceID)
	if err != nil {
		return engine.SendResult{}, err
	}
	return sess.SendMedia(ctx, number, filePath, caption, mimeType)
}

// Disconnect tears down the device's session and removes it.
func (r *Registry) Disconnect(ctx context.Context, deviceID string) error {
	key := strings.TrimSpace(deviceID)

	r.mu.Lock()
	sess, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
		observability.RecordSessionGauge(-1)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, key)
	}
	return sess.Disconnect(ctx)
}

// Status reports the device's connection snapshot. Unknown devices report
// a disconnected status rather than an error.
func (r *Registry) Status(deviceID string) session.Status {
	sess, err := r.Lookup(deviceID)
	if err != nil {
		return session.Status{State: session.StateUninitialized, Connected: false}
	}
	return sess.Status()
}

// Devices lists registered device ids in stable order.
func (r *Registry) Devices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for key := range r.sessions {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Shutdown disconnects every session. Used on daemon shutdown.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*session.Session, 0, len(r.sessions))
	for key, sess := range r.sessions {
		delete(r.sessions, key)
		observability.RecordSessionGauge(-1)
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()

	for _, sess := range sessions {
		if err := sess.Disconnect(ctx); err != nil {
			log.Warn().Str("device_id", sess.DeviceID()).Err(err).Msg("registry.Shutdown teardown failed")
		}
	}
}

// watchLifecycle purges the registry entry once the session logs out on the
// network side. The entry is removed only when the stored pointer still
// matches, so a successor created in the meantime is never evicted.
func (r *Registry) watchLifecycle(deviceID string, sess *session.Session, sub *session.Subscription) {
	defer sub.Cancel()
	for range sub.Events {
	}
	if sess.State() == session.StateLoggedOut {
		r.removeIf(deviceID, sess)
	}
}

func (r *Registry) removeIf(deviceID string, target *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[deviceID] != target {
		return
	}
	delete(r.sessions, deviceID)
	observability.RecordSessionGauge(-1)
	log.Info().Str("device_id", deviceID).Msg("registry.removeIf purged logged-out session")
}

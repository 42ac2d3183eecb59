// Package loopback is an in-process engine used for local development and
// tests. It simulates the pairing handshake and echoes text sends back as
// inbound messages; nothing leaves the process.
package loopback

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wagate/internal/engine"
)

const Name = "loopback"

const defaultPairDelay = 2 * time.Second

func init() {
	if err := engine.Register(Name, &Dialer{}); err != nil {
		panic(err)
	}
}

// Dialer fabricates loopback connections. A zero Dialer is usable.
type Dialer struct {
	// PairDelay is how long a fresh device waits between the pairing
	// challenge and the simulated scan. Zero means defaultPairDelay.
	PairDelay time.Duration
}

func (d *Dialer) Dial(ctx context.Context, cfg engine.DialConfig) (engine.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := &handle{
		deviceID:  cfg.DeviceID,
		pairDelay: d.PairDelay,
		onCred:    cfg.OnCredential,
		updates:   make(chan engine.Update, 16),
		messages:  make(chan engine.InboundMessage, 16),
		stop:      make(chan struct{}),
	}
	if h.pairDelay <= 0 {
		h.pairDelay = defaultPairDelay
	}
	go h.run(cloneCredential(cfg.Credential))
	return h, nil
}

type handle struct {
	deviceID  string
	pairDelay time.Duration
	onCred    func(engine.Credential)

	updates  chan engine.Update
	messages chan engine.InboundMessage
	stop     chan struct{}

	shutdownOnce sync.Once
	seq          atomic.Uint64

	mu       sync.Mutex
	closed   bool
	open     bool
	identity string
}

func (h *handle) run(cred engine.Credential) {
	if cred.Empty() {
		h.emit(engine.Update{QR: "loopback.pair." + randomHex(16)})
		if !h.sleep(h.pairDelay) {
			return
		}
		cred = engine.Credential{
			"identity": []byte(randomDigits(11)),
			"token":    []byte(randomHex(32)),
		}
		if h.onCred != nil {
			h.onCred(cloneCredential(cred))
		}
	}

	h.emit(engine.Update{Status: engine.StatusConnecting})

	digits := string(cred["identity"])
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.identity = fmt.Sprintf("%s:1@s.whatsapp.net", digits)
	h.open = true
	h.mu.Unlock()

	h.emit(engine.Update{Status: engine.StatusOpen})
}

func (h *handle) Updates() <-chan engine.Update {
	return h.updates
}

func (h *handle) Messages() <-chan engine.InboundMessage {
	return h.messages
}

func (h *handle) Identity() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.identity
}

func (h *handle) Send(ctx context.Context, address string, msg engine.Message) (engine.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return engine.SendResult{}, err
	}
	h.mu.Lock()
	if h.closed || !h.open {
		h.mu.Unlock()
		return engine.SendResult{}, fmt.Errorf("loopback: connection not open")
	}
	now := time.Now()
	result := engine.SendResult{
		MessageID: fmt.Sprintf("loopback.msg.%s.%d", h.deviceID, h.seq.Add(1)),
		Timestamp: now,
	}
	if msg.Kind == engine.KindText {
		// Echo so a dev client sees round-trip traffic.
		select {
		case h.messages <- engine.InboundMessage{From: address, Text: msg.Text, Timestamp: now}:
		default:
		}
	}
	h.mu.Unlock()
	return result, nil
}

func (h *handle) Logout(ctx context.Context) error {
	h.emit(engine.Update{Status: engine.StatusClosed, Reason: "logged out", LoggedOut: true})
	h.shutdown()
	return nil
}

func (h *handle) Close() error {
	h.shutdown()
	return nil
}

func (h *handle) emit(update engine.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.updates <- update:
	default:
	}
}

func (h *handle) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.stop:
		return false
	case <-timer.C:
		return true
	}
}

func (h *handle) shutdown() {
	h.shutdownOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.open = false
		h.identity = ""
		close(h.stop)
		close(h.updates)
		close(h.messages)
		h.mu.Unlock()
	})
}

func cloneCredential(in engine.Credential) engine.Credential {
	if len(in) == 0 {
		return engine.Credential{}
	}
	out := make(engine.Credential, len(in))
	for name, blob := range in {
		copied := make([]byte, len(blob))
		copy(copied, blob)
		out[name] = copied
	}
	return out
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func randomDigits(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%011d", time.Now().UnixNano()%100000000000)
	}
	digits := make([]byte, n)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	if digits[0] == '0' {
		digits[0] = '1'
	}
	return string(digits)
}

package engine

import (
	"context"
	"time"
)

// Status is the normalized connection state reported by a Handle.
type Status string

const (
	// StatusNone marks updates that carry only a pairing challenge.
	StatusNone       Status = ""
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosed     Status = "closed"
)

// Update is one normalized connection-state event from the engine.
//
// Exactly one of QR or Status is meaningful per update: a pairing challenge
// arrives with Status == StatusNone, everything else with an empty QR.
type Update struct {
	QR     string
	Status Status

	// Close attribution. LoggedOut marks the close as an explicit logout,
	// which callers must treat as terminal rather than retryable.
	Reason    string
	LoggedOut bool
}

// MessageKind selects the wire shape of an outbound message.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindDocument MessageKind = "document"
)

// Message is one outbound message payload in engine-neutral form.
type Message struct {
	Kind    MessageKind
	Text    string
	Data    []byte
	Caption string

	// Document-only fields. MimeType carries the literal type for generic
	// documents; FileName is the basename of the stored media file.
	MimeType string
	FileName string
}

// SendResult reports the engine's acknowledgment for one send call.
type SendResult struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

// InboundMessage is one message received from the chat network.
type InboundMessage struct {
	From      string    `json:"from"`
	Text      string    `json:"text,omitempty"`
	MimeType  string    `json:"mimeType,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Credential is the opaque persisted auth material for one device: named
// blobs that the credential store lays out as files in the device directory.
type Credential map[string][]byte

// Empty reports whether no auth material is present, which forces a fresh
// pairing handshake on the next connect.
func (c Credential) Empty() bool {
	return len(c) == 0
}

// DialConfig carries everything a Dialer needs for one connection attempt.
type DialConfig struct {
	DeviceID   string
	Credential Credential

	// OnCredential is invoked whenever the engine mutates auth material.
	// Implementations must tolerate a nil callback.
	OnCredential func(Credential)
}

// Dialer opens live connections against the external chat network.
type Dialer interface {
	Dial(ctx context.Context, cfg DialConfig) (Handle, error)
}

// Handle is one live connection, exclusively owned by a single session.
//
// Updates and Messages are closed by the engine once the connection is fully
// torn down; Close releases the handle without logging the account out.
type Handle interface {
	Updates() <-chan Update
	Messages() <-chan InboundMessage

	// Identity returns the stable account identity once the connection is
	// open, in "<digits>:<agent>@<server>" form. Empty before StatusOpen.
	Identity() string

	Send(ctx context.Context, address string, msg Message) (SendResult, error)
	Logout(ctx context.Context) error
	Close() error
}

// Package credstore persists per-device authentication material.
//
// Ownership boundary:
// - credential blob layout on disk
// - wholesale delete on logout
//
// It knows nothing about the engine's credential semantics: blobs are opaque.
package credstore

import (
	"errors"

	"wagate/internal/engine"
)

var (
	ErrInvalidDeviceID = errors.New("credstore: invalid device id")
	ErrInvalidBlobName = errors.New("credstore: invalid blob name")
)

// Store persists and retrieves credential material keyed by device id.
//
// Load returns an empty credential when no material exists; that is not an
// error, it simply forces a fresh pairing handshake.
type Store interface {
	Load(deviceID string) (engine.Credential, error)
	Save(deviceID string, cred engine.Credential) error
	Delete(deviceID string) error
}

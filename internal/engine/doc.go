// Package engine defines the boundary to the external chat-network protocol
// engine.
//
// Ownership boundary:
// - dialer/handle capability interfaces
// - normalized connection-state updates
// - message content shapes
//
// The engine does not own session lifecycle decisions. Reconnect, credential
// persistence, and teardown ordering belong to internal/session.
//
// Concrete engines register themselves by name (database/sql driver idiom)
// and are selected through configuration.
package engine

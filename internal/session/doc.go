// Package session owns one device's full lifecycle against the external
// chat network.
//
// Ownership boundary:
// - pairing/connect state machine and its transitions
// - reconnect supervision and retry policy
// - credential persistence ordering (delete exactly once, on logout)
// - ordered lifecycle event emission per session
//
// One supervisor goroutine drives each session. It is the only writer of
// state transitions and the only event emitter, which is what guarantees
// per-session event ordering. A reconnect attempt never starts before the
// previous handle has been released by that same goroutine.
//
// The session does not own HTTP shapes, QR rendering, or the device registry.
package session

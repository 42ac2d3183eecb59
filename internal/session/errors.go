package session

import "errors"

var (
	ErrInvalidConfig   = errors.New("session: invalid configuration")
	ErrNotConnected    = errors.New("session: not connected")
	ErrInvalidAddress  = errors.New("session: invalid destination address")
	ErrMediaUnreadable = errors.New("session: media file unreadable")
	ErrEngine          = errors.New("session: engine failure")
)

package playback

import "errors"

var (
	// ErrEmptyText is returned when a play request carries nothing to read.
	ErrEmptyText = errors.New("no text to read")
	// ErrEngineUnavailable means no speech engine could be started in this context.
	ErrEngineUnavailable = errors.New("speech engine is not available")
	// ErrUnknownAction is returned for messages the receiver does not handle.
	ErrUnknownAction = errors.New("unknown action")
)

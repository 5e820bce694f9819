// Package tts wraps the text-to-speech engines available on the host. Every
// engine speaks one utterance at a time; starting a new one supersedes the
// previous one, and each utterance reports its lifecycle through a callback.
package tts

import "readaloud/internal/domain/playback"

// Options are applied to a single utterance.
type Options struct {
	Rate   float64
	Pitch  float64
	Volume float64
	Voice  string
}

// OptionsFrom converts stored settings into utterance options, clamping
// anything outside the engine ranges.
func OptionsFrom(s playback.Settings) Options {
	s = s.Clamped()
	return Options{
		Rate:   s.Rate,
		Pitch:  s.Pitch,
		Volume: s.Volume,
		Voice:  s.SelectedVoice,
	}
}

// EventHandler receives the lifecycle events of one utterance. It may be
// called from an engine goroutine and must not block.
type EventHandler func(playback.Event)

// Engine interface for text-to-speech functionality
type Engine interface {
	// Speak cancels any utterance in progress and starts text. It returns
	// once the new utterance has been handed to the engine.
	Speak(text string, opts Options, onEvent EventHandler) error
	Stop() error
	Pause() error
	Resume() error
	IsPlaying() bool
	IsPaused() bool
	GetAvailableVoices() ([]string, error)
}

// CacheableEngine extends Engine with cache management capabilities
type CacheableEngine interface {
	Engine
	GetCacheStats() (map[string]interface{}, error)
	ClearCache() error
}

func emit(h EventHandler, t playback.EventType, err error) {
	if h == nil {
		return
	}
	h(playback.Event{Type: t, Err: err})
}

package tts

import (
	"strings"
	"sync"
	"time"

	"readaloud/internal/domain/playback"

	"github.com/fatih/color"
)

// Spoken records one Speak call on the MockEngine.
type Spoken struct {
	Text    string
	Options Options
}

// MockEngine stands in for a real engine. Without simulated playback an
// utterance runs until Complete, Fail or Stop is called, which makes it
// suitable for driving lifecycle events from tests.
type MockEngine struct {
	mutex    sync.Mutex
	simulate bool
	voices   []string
	speakErr error
	spoken   []Spoken
	current  *mockUtterance
	stops    int
	pauses   int
	resumes  int
}

type mockUtterance struct {
	onEvent   EventHandler
	paused    bool
	timer     *time.Timer
	remaining time.Duration
	started   time.Time
}

// MockOption configures a MockEngine.
type MockOption func(*MockEngine)

// WithSimulatedPlayback makes each utterance finish on its own after a
// duration estimated from its word count.
func WithSimulatedPlayback() MockOption {
	return func(m *MockEngine) { m.simulate = true }
}

// WithVoices sets what GetAvailableVoices reports.
func WithVoices(voices ...string) MockOption {
	return func(m *MockEngine) { m.voices = voices }
}

func NewMockEngine(opts ...MockOption) *MockEngine {
	m := &MockEngine{voices: []string{"mock-voice"}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockEngine) Speak(text string, opts Options, onEvent EventHandler) error {
	m.mutex.Lock()
	if m.speakErr != nil {
		err := m.speakErr
		m.mutex.Unlock()
		return err
	}
	prev := m.current
	if prev != nil {
		prev.stopTimer()
	}
	u := &mockUtterance{onEvent: onEvent}
	m.current = u
	m.spoken = append(m.spoken, Spoken{Text: text, Options: opts})
	m.mutex.Unlock()

	if prev != nil {
		emit(prev.onEvent, playback.EventInterrupted, nil)
	}

	emit(onEvent, playback.EventStart, nil)

	if m.simulate {
		d := readingTime(text, opts.Rate)
		color.Yellow("🔊 Reading aloud... (simulated for %v)", d)
		m.mutex.Lock()
		if m.current == u {
			u.remaining = d
			m.startTimer(u)
		}
		m.mutex.Unlock()
	}
	return nil
}

// readingTime estimates 150 words per minute at rate 1.
func readingTime(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(text))
	return time.Duration(float64(words) / 150.0 / rate * float64(time.Minute))
}

// startTimer must be called with the mutex held.
func (m *MockEngine) startTimer(u *mockUtterance) {
	u.started = time.Now()
	u.timer = time.AfterFunc(u.remaining, func() { m.finish(u, playback.EventEnd, nil) })
}

// stopTimer must be called with the engine mutex held.
func (u *mockUtterance) stopTimer() {
	if u.timer != nil {
		u.timer.Stop()
	}
}

func (m *MockEngine) finish(u *mockUtterance, t playback.EventType, err error) bool {
	m.mutex.Lock()
	if u == nil || m.current != u {
		m.mutex.Unlock()
		return false
	}
	m.current = nil
	u.stopTimer()
	m.mutex.Unlock()

	emit(u.onEvent, t, err)
	return true
}

// Complete ends the current utterance normally. It reports false when
// nothing was speaking.
func (m *MockEngine) Complete() bool {
	m.mutex.Lock()
	u := m.current
	m.mutex.Unlock()
	return m.finish(u, playback.EventEnd, nil)
}

// Fail ends the current utterance with an engine error.
func (m *MockEngine) Fail(err error) bool {
	m.mutex.Lock()
	u := m.current
	m.mutex.Unlock()
	return m.finish(u, playback.EventError, err)
}

// SetSpeakError makes subsequent Speak calls fail with err. Nil clears it.
func (m *MockEngine) SetSpeakError(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.speakErr = err
}

func (m *MockEngine) Stop() error {
	m.mutex.Lock()
	m.stops++
	u := m.current
	m.current = nil
	if u != nil {
		u.stopTimer()
	}
	m.mutex.Unlock()

	if u != nil {
		emit(u.onEvent, playback.EventInterrupted, nil)
	}
	return nil
}

func (m *MockEngine) Pause() error {
	m.mutex.Lock()
	m.pauses++
	u := m.current
	if u == nil || u.paused {
		m.mutex.Unlock()
		return nil
	}
	u.paused = true
	if u.timer != nil && u.timer.Stop() {
		u.remaining -= time.Since(u.started)
	}
	m.mutex.Unlock()

	emit(u.onEvent, playback.EventPause, nil)
	return nil
}

func (m *MockEngine) Resume() error {
	m.mutex.Lock()
	m.resumes++
	u := m.current
	if u == nil || !u.paused {
		m.mutex.Unlock()
		return nil
	}
	u.paused = false
	if u.timer != nil {
		m.startTimer(u)
	}
	m.mutex.Unlock()

	emit(u.onEvent, playback.EventResume, nil)
	return nil
}

func (m *MockEngine) IsPlaying() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.current != nil && !m.current.paused
}

func (m *MockEngine) IsPaused() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.current != nil && m.current.paused
}

func (m *MockEngine) GetAvailableVoices() ([]string, error) {
	return append([]string(nil), m.voices...), nil
}

// Spoken returns every Speak call so far.
func (m *MockEngine) Spoken() []Spoken {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]Spoken(nil), m.spoken...)
}

func (m *MockEngine) Stops() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.stops
}

func (m *MockEngine) Pauses() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.pauses
}

func (m *MockEngine) Resumes() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.resumes
}

package tts

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"readaloud/internal/domain/playback"
)

type eventLog struct {
	mu     sync.Mutex
	events []playback.EventType
}

func (l *eventLog) handler() EventHandler {
	return func(e playback.Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.events = append(l.events, e.Type)
	}
}

func (l *eventLog) get() []playback.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]playback.EventType(nil), l.events...)
}

func equalEvents(a, b []playback.EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMockEngineLifecycle(t *testing.T) {
	m := NewMockEngine()
	var log eventLog

	if err := m.Speak("hello world", Options{Rate: 1}, log.handler()); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if !m.IsPlaying() {
		t.Fatal("expected engine to be playing after Speak")
	}

	_ = m.Pause()
	if !m.IsPaused() || m.IsPlaying() {
		t.Error("expected engine to be paused")
	}
	_ = m.Resume()
	if !m.IsPlaying() {
		t.Error("expected engine to be playing after Resume")
	}

	if !m.Complete() {
		t.Fatal("Complete() found nothing speaking")
	}
	if m.Complete() {
		t.Error("second Complete() should be a no-op")
	}

	want := []playback.EventType{playback.EventStart, playback.EventPause, playback.EventResume, playback.EventEnd}
	if got := log.get(); !equalEvents(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestMockEngineSupersedes(t *testing.T) {
	m := NewMockEngine()
	var first, second eventLog

	_ = m.Speak("one", Options{}, first.handler())
	_ = m.Speak("two", Options{}, second.handler())

	if got := first.get(); !equalEvents(got, []playback.EventType{playback.EventStart, playback.EventInterrupted}) {
		t.Errorf("first utterance events = %v", got)
	}
	if got := second.get(); !equalEvents(got, []playback.EventType{playback.EventStart}) {
		t.Errorf("second utterance events = %v", got)
	}
	if spoken := m.Spoken(); len(spoken) != 2 || spoken[1].Text != "two" {
		t.Errorf("Spoken() = %+v", spoken)
	}
}

func TestMockEngineStopAndFail(t *testing.T) {
	m := NewMockEngine()
	var log eventLog

	_ = m.Stop()
	if m.Stops() != 1 {
		t.Errorf("Stops() = %d, want 1", m.Stops())
	}

	_ = m.Speak("text", Options{}, log.handler())
	if !m.Fail(errors.New("device lost")) {
		t.Fatal("Fail() found nothing speaking")
	}
	_ = m.Stop()

	want := []playback.EventType{playback.EventStart, playback.EventError}
	if got := log.get(); !equalEvents(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestMockEngineSpeakError(t *testing.T) {
	m := NewMockEngine()
	m.SetSpeakError(errors.New("no audio device"))

	if err := m.Speak("text", Options{}, nil); err == nil {
		t.Fatal("expected Speak to fail")
	}
	if len(m.Spoken()) != 0 {
		t.Error("failed Speak should not be recorded")
	}
}

func TestMockEngineSimulatedPlayback(t *testing.T) {
	m := NewMockEngine(WithSimulatedPlayback())
	done := make(chan playback.EventType, 4)

	_ = m.Speak("hi", Options{Rate: 10}, func(e playback.Event) { done <- e.Type })

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-done:
			if e == playback.EventEnd {
				return
			}
		case <-timeout:
			t.Fatal("simulated utterance never finished")
		}
	}
}

func TestReadingTime(t *testing.T) {
	tests := []struct {
		name string
		text string
		rate float64
		want time.Duration
	}{
		{"150 words at normal rate", repeatWords(150), 1, time.Minute},
		{"double rate halves", repeatWords(150), 2, 30 * time.Second},
		{"zero rate treated as normal", repeatWords(75), 0, 30 * time.Second},
		{"empty", "", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readingTime(tt.text, tt.rate); got != tt.want {
				t.Errorf("readingTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func repeatWords(n int) string {
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		b = append(b, 'a', ' ')
	}
	return string(b)
}

func TestMockEngineVoices(t *testing.T) {
	tests := []struct {
		name string
		opts []MockOption
		want []string
	}{
		{"default", nil, []string{"mock-voice"}},
		{"configured", []MockOption{WithVoices("en-gb", "de")}, []string{"en-gb", "de"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewMockEngine(tt.opts...).GetAvailableVoices()
			if err != nil || !slices.Equal(got, tt.want) {
				t.Errorf("GetAvailableVoices() = %v, %v, want %v", got, err, tt.want)
			}
		})
	}
}

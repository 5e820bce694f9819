// Package popup is the settings panel: it edits the stored settings, offers
// languages and voices from the voice table and plays the live selection of
// the focused tab on its own engine.
package popup

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"readaloud/internal/domain/message"
	"readaloud/internal/domain/playback"
	"readaloud/internal/domain/voices"
	"readaloud/internal/selection"
	"readaloud/internal/settings"
	"readaloud/internal/speech/tts"
	"readaloud/internal/transport"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"golang.org/x/time/rate"
)

// ClickInterval is the minimum time between two handled button clicks.
const ClickInterval = 300 * time.Millisecond

// Form is what the panel currently shows.
type Form struct {
	Rate     float64
	Pitch    float64
	Volume   float64
	Language string
	Voice    string
	// Voices lists the options of Language.
	Voices []string
}

type Popup struct {
	store  settings.Store
	engine tts.Engine
	source selection.Source
	table  *voices.Table

	playGate *rate.Sometimes
	stopGate *rate.Sometimes

	mu     sync.Mutex
	form   Form
	status playback.Status
}

// Option configures a Popup.
type Option func(*Popup)

// WithClickInterval replaces ClickInterval.
func WithClickInterval(d time.Duration) Option {
	return func(p *Popup) {
		p.playGate = &rate.Sometimes{Interval: d}
		p.stopGate = &rate.Sometimes{Interval: d}
	}
}

// WithVoiceTable replaces the built-in voice table.
func WithVoiceTable(t *voices.Table) Option {
	return func(p *Popup) { p.table = t }
}

// New builds a popup. engine may be nil, in which case play and stop only log.
func New(store settings.Store, engine tts.Engine, source selection.Source, opts ...Option) *Popup {
	p := &Popup{
		store:    store,
		engine:   engine,
		source:   source,
		table:    voices.Default(),
		playGate: &rate.Sometimes{Interval: ClickInterval},
		stopGate: &rate.Sometimes{Interval: ClickInterval},
		status:   playback.StatusIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open fills the form from the stored settings. The form is not refreshed
// afterwards; open the panel again to see later changes.
func (p *Popup) Open(ctx context.Context) Form {
	s, err := p.store.Load()
	if err != nil {
		logrus.WithError(err).Warn("failed to read settings, showing defaults")
		s = playback.DefaultSettings()
	}

	form := Form{
		Rate:   s.Rate,
		Pitch:  s.Pitch,
		Volume: s.Volume,
		Voice:  s.SelectedVoice,
	}
	if lang, ok := p.table.LanguageOf(s.SelectedVoice); ok {
		form.Language = lang
		form.Voices = p.table.Voices(lang)
	}

	p.mu.Lock()
	p.form = form
	p.mu.Unlock()
	return p.Form()
}

// Form returns a copy of the current form.
func (p *Popup) Form() Form {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.form
	f.Voices = append([]string(nil), p.form.Voices...)
	return f
}

// Languages lists the voice table labels in order.
func (p *Popup) Languages() []string {
	return p.table.Languages()
}

// OnSettingChange persists one edited field. Numeric fields that do not
// parse are stored as 1.
func (p *Popup) OnSettingChange(field, raw string) error {
	if field == playback.KeyLegacySpeed {
		field = playback.KeyRate
	}

	switch field {
	case playback.KeyRate, playback.KeyPitch, playback.KeyVolume:
		v := parseNumber(raw)
		p.mu.Lock()
		switch field {
		case playback.KeyRate:
			p.form.Rate = v
		case playback.KeyPitch:
			p.form.Pitch = v
		case playback.KeyVolume:
			p.form.Volume = v
		}
		p.mu.Unlock()
		return p.store.Set(field, v)
	case playback.KeySelectedVoice:
		return p.SelectVoice(raw)
	default:
		return fmt.Errorf("%w: %s", settings.ErrUnknownKey, field)
	}
}

func parseNumber(raw string) float64 {
	v, err := cast.ToFloat64E(strings.TrimSpace(raw))
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		logrus.WithField("input", raw).Debug("invalid number, using 1")
		return 1
	}
	return v
}

// SelectLanguage switches the voice options to label's list. Nothing is
// persisted until a voice is picked.
func (p *Popup) SelectLanguage(label string) []string {
	options := p.table.Voices(label)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.form.Language = label
	p.form.Voices = options
	return append([]string(nil), options...)
}

// SelectVoice persists the picked voice. Voices are not checked against the
// engine; an unavailable one falls back to the engine default when spoken.
func (p *Popup) SelectVoice(name string) error {
	p.mu.Lock()
	p.form.Voice = name
	p.mu.Unlock()
	return p.store.Set(playback.KeySelectedVoice, name)
}

// OnPlayClick reads the focused tab's live selection and speaks it with the
// form values. Clicks closer together than the click interval are dropped.
func (p *Popup) OnPlayClick(ctx context.Context) {
	p.playGate.Do(func() { p.play(ctx) })
}

// OnStopClick silences the popup's engine, throttled like OnPlayClick.
func (p *Popup) OnStopClick() {
	p.stopGate.Do(func() {
		if p.engine == nil {
			logrus.WithError(playback.ErrEngineUnavailable).Info("stop ignored")
			return
		}
		if err := p.engine.Stop(); err != nil {
			logrus.WithError(err).Warn("failed to stop speech")
		}
	})
}

func (p *Popup) play(ctx context.Context) {
	if p.engine == nil {
		logrus.WithError(playback.ErrEngineUnavailable).Info("play ignored")
		return
	}

	text, err := p.source.Selection(ctx)
	if err != nil {
		logrus.WithError(err).Info("could not read the selection")
		return
	}
	if strings.TrimSpace(text) == "" {
		logrus.Info("no text selected")
		return
	}

	f := p.Form()
	opts := tts.OptionsFrom(playback.Settings{
		Rate:          f.Rate,
		Pitch:         f.Pitch,
		Volume:        f.Volume,
		SelectedVoice: f.Voice,
	})
	err = p.engine.Speak(text, opts, func(ev playback.Event) {
		if ev.Err != nil {
			logrus.WithError(ev.Err).Warn("popup speech failed")
		}
	})
	if err != nil {
		logrus.WithError(err).Warn("failed to start speech")
	}
}

// HandleMessage mirrors the controller's status broadcasts while open.
func (p *Popup) HandleMessage(ctx context.Context, from transport.TabID, msg message.Message) message.Response {
	if msg.Action != message.ActionStatusUpdate {
		return message.Success()
	}
	status, ok := playback.ParseStatus(msg.Status)
	if !ok {
		return message.Success()
	}

	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
	return message.Success()
}

// Status is the mirrored controller status.
func (p *Popup) Status() playback.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

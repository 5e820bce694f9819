package popup

import (
	"context"
	"errors"
	"testing"
	"time"

	"readaloud/internal/domain/message"
	"readaloud/internal/domain/playback"
	"readaloud/internal/selection"
	"readaloud/internal/settings"
	"readaloud/internal/speech/tts"
)

func openStore(t *testing.T) *settings.ViperStore {
	t.Helper()
	store, err := settings.Open(t.TempDir())
	if err != nil {
		t.Fatalf("settings.Open() error = %v", err)
	}
	return store
}

func TestOpenLoadsSettings(t *testing.T) {
	store := openStore(t)
	if err := store.Set(playback.KeyRate, 1.25); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(playback.KeySelectedVoice, "Google Deutsch (de-DE)"); err != nil {
		t.Fatal(err)
	}

	p := New(store, tts.NewMockEngine(), selection.Static(""))
	form := p.Open(context.Background())

	if form.Rate != 1.25 || form.Pitch != 1 || form.Volume != 1 {
		t.Errorf("form = %+v, want rate 1.25 and defaults", form)
	}
	if form.Language != "German" || len(form.Voices) != 1 {
		t.Errorf("form language = %q voices = %v, want the stored voice's language", form.Language, form.Voices)
	}
	if got := p.Languages(); len(got) != 18 || got[0] != "English-US" {
		t.Errorf("Languages() = %v", got)
	}
}

func TestOpenWithUnknownVoice(t *testing.T) {
	store := openStore(t)
	_ = store.Set(playback.KeySelectedVoice, "espeak-en")

	form := New(store, nil, selection.Static("")).Open(context.Background())

	if form.Voice != "espeak-en" || form.Language != "" || form.Voices != nil {
		t.Errorf("form = %+v", form)
	}
}

func TestOnSettingChange(t *testing.T) {
	tests := []struct {
		name  string
		field string
		raw   string
		key   string
		want  float64
	}{
		{"rate", "rate", "1.5", playback.KeyRate, 1.5},
		{"legacy speed field writes rate", "speed", "2", playback.KeyRate, 2},
		{"pitch", "pitch", "0.5", playback.KeyPitch, 0.5},
		{"volume with spaces", "volume", " 0.3 ", playback.KeyVolume, 0.3},
		{"empty input", "rate", "", playback.KeyRate, 1},
		{"garbage input", "pitch", "loud", playback.KeyPitch, 1},
		{"not a number", "volume", "NaN", playback.KeyVolume, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openStore(t)
			p := New(store, nil, selection.Static(""))
			p.Open(context.Background())

			if err := p.OnSettingChange(tt.field, tt.raw); err != nil {
				t.Fatalf("OnSettingChange() error = %v", err)
			}

			s, err := store.Load()
			if err != nil {
				t.Fatal(err)
			}
			got := map[string]float64{
				playback.KeyRate:   s.Rate,
				playback.KeyPitch:  s.Pitch,
				playback.KeyVolume: s.Volume,
			}[tt.key]
			if got != tt.want {
				t.Errorf("stored %s = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestOnSettingChangeUnknownField(t *testing.T) {
	p := New(openStore(t), nil, selection.Static(""))

	if err := p.OnSettingChange("colour", "red"); !errors.Is(err, settings.ErrUnknownKey) {
		t.Errorf("error = %v, want ErrUnknownKey", err)
	}
}

func TestSelectLanguageAndVoice(t *testing.T) {
	store := openStore(t)
	p := New(store, nil, selection.Static(""))
	p.Open(context.Background())

	options := p.SelectLanguage("English-UK")
	if len(options) != 2 || options[0] != "Google UK English Female (en-GB)" {
		t.Fatalf("SelectLanguage() = %v", options)
	}
	if s, _ := store.Load(); s.SelectedVoice != "" {
		t.Error("choosing a language must not persist a voice")
	}

	if got := p.SelectLanguage("Klingon"); got != nil {
		t.Errorf("unknown language offered %v", got)
	}

	if err := p.SelectVoice(options[1]); err != nil {
		t.Fatal(err)
	}
	s, _ := store.Load()
	if s.SelectedVoice != options[1] {
		t.Errorf("stored voice = %q", s.SelectedVoice)
	}
}

func TestPlayClickSpeaksSelectionWithForm(t *testing.T) {
	store := openStore(t)
	engine := tts.NewMockEngine()
	p := New(store, engine, selection.Static("page text"))
	p.Open(context.Background())
	_ = p.OnSettingChange("rate", "1.5")
	_ = p.SelectVoice("Google français (fr-FR)")

	p.OnPlayClick(context.Background())

	spoken := engine.Spoken()
	if len(spoken) != 1 {
		t.Fatalf("engine spoke %d times, want 1", len(spoken))
	}
	want := tts.Options{Rate: 1.5, Pitch: 1, Volume: 1, Voice: "Google français (fr-FR)"}
	if spoken[0].Text != "page text" || spoken[0].Options != want {
		t.Errorf("spoken = %+v", spoken[0])
	}
}

func TestRapidPlayClicksSpeakOnce(t *testing.T) {
	engine := tts.NewMockEngine()
	p := New(openStore(t), engine, selection.Static("page text"), WithClickInterval(time.Hour))
	p.Open(context.Background())

	p.OnPlayClick(context.Background())
	p.OnPlayClick(context.Background())

	if n := len(engine.Spoken()); n != 1 {
		t.Errorf("engine spoke %d times, want 1", n)
	}
}

func TestPlayClicksAfterIntervalBothSpeak(t *testing.T) {
	engine := tts.NewMockEngine()
	p := New(openStore(t), engine, selection.Static("page text"), WithClickInterval(10*time.Millisecond))
	p.Open(context.Background())

	p.OnPlayClick(context.Background())
	time.Sleep(30 * time.Millisecond)
	p.OnPlayClick(context.Background())

	if n := len(engine.Spoken()); n != 2 {
		t.Errorf("engine spoke %d times, want 2", n)
	}
}

func TestPlayClickWithoutSelection(t *testing.T) {
	sources := map[string]selection.Source{
		"empty":  selection.Static("  "),
		"failed": selection.SourceFunc(func(context.Context) (string, error) { return "", errors.New("tab gone") }),
	}

	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			engine := tts.NewMockEngine()
			p := New(openStore(t), engine, src)
			p.Open(context.Background())

			p.OnPlayClick(context.Background())

			if n := len(engine.Spoken()); n != 0 {
				t.Errorf("engine spoke %d times", n)
			}
		})
	}
}

func TestStopClick(t *testing.T) {
	engine := tts.NewMockEngine()
	p := New(openStore(t), engine, selection.Static("page text"), WithClickInterval(time.Hour))
	p.Open(context.Background())
	p.OnPlayClick(context.Background())

	p.OnStopClick()
	p.OnStopClick()

	if engine.Stops() != 1 {
		t.Errorf("engine stopped %d times, want 1", engine.Stops())
	}
	if engine.IsPlaying() {
		t.Error("engine still playing")
	}
}

func TestWithoutEngine(t *testing.T) {
	p := New(openStore(t), nil, selection.Static("page text"))
	p.Open(context.Background())

	p.OnPlayClick(context.Background())
	p.OnStopClick()
}

func TestHandleMessageMirrorsStatus(t *testing.T) {
	p := New(openStore(t), nil, selection.Static(""))

	p.HandleMessage(context.Background(), "", message.StatusUpdate(playback.StatusPaused))
	if p.Status() != playback.StatusPaused {
		t.Errorf("Status() = %v, want paused", p.Status())
	}

	p.HandleMessage(context.Background(), "", message.Message{Action: message.ActionStatusUpdate, Status: "??"})
	if p.Status() != playback.StatusPaused {
		t.Error("unknown status should be ignored")
	}
}

package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"readaloud/internal/cli/scheme/colours"
	"readaloud/internal/domain/message"
	"readaloud/internal/popup"
	"readaloud/internal/selection"
	"readaloud/internal/settings"
	"readaloud/internal/speech/tts"
	"readaloud/internal/transport"

	"github.com/spf13/cobra"
)

// openPopup builds a panel over the local settings. source and engine may
// be nil for commands that only edit settings.
func (a *App) openPopup(engine tts.Engine, source selection.Source) (*popup.Popup, error) {
	store, err := settings.Open(a.Config.SettingsDir)
	if err != nil {
		return nil, err
	}
	table, err := a.voiceTable()
	if err != nil {
		return nil, err
	}
	if source == nil {
		source = selection.Static("")
	}
	p := popup.New(store, engine, source, popup.WithVoiceTable(table))
	p.Open(a.ctx)
	return p, nil
}

func (a *App) PopupShow(cmd *cobra.Command, args []string) error {
	p, err := a.openPopup(nil, nil)
	if err != nil {
		return err
	}
	f := p.Form()

	fmt.Fprintln(a.Out)
	colours.Title.Fprintln(a.Out, "⚙️ Speech Settings ⚙️")
	fmt.Fprintf(a.Out, "  • Rate:   %.2f\n", f.Rate)
	fmt.Fprintf(a.Out, "  • Pitch:  %.2f\n", f.Pitch)
	fmt.Fprintf(a.Out, "  • Volume: %.2f\n", f.Volume)
	voice := f.Voice
	if voice == "" {
		voice = "engine default"
	}
	fmt.Fprint(a.Out, "  • Voice:  ")
	colours.Voice.Fprintln(a.Out, voice)
	if f.Language != "" {
		colours.Info.Fprintf(a.Out, "  🌍 %s\n", f.Language)
	}
	return nil
}

func (a *App) PopupSet(cmd *cobra.Command, args []string) error {
	p, err := a.openPopup(nil, nil)
	if err != nil {
		return err
	}
	field, value := args[0], strings.Join(args[1:], " ")
	if err := p.OnSettingChange(field, value); err != nil {
		return err
	}
	colours.Success.Fprintf(a.Out, "✅ %s saved\n", field)
	return nil
}

func (a *App) PopupLanguages(cmd *cobra.Command, args []string) error {
	p, err := a.openPopup(nil, nil)
	if err != nil {
		return err
	}
	current := p.Form().Language
	for i, lang := range p.Languages() {
		marker := " "
		if lang == current {
			marker = "*"
		}
		fmt.Fprintf(a.Out, "%s %2d. ", marker, i+1)
		colours.Title.Fprintln(a.Out, lang)
	}
	return nil
}

// PopupVoices lists the voices of a language, or picks one with --pick.
func (a *App) PopupVoices(cmd *cobra.Command, args []string) error {
	p, err := a.openPopup(nil, nil)
	if err != nil {
		return err
	}

	options := p.SelectLanguage(args[0])
	if len(options) == 0 {
		colours.Warning.Fprintf(a.Out, "🔍 No voices listed for %q\n", args[0])
		return nil
	}

	pick, _ := cmd.Flags().GetInt("pick")
	if pick > 0 {
		if pick > len(options) {
			return fmt.Errorf("there are only %d voices for %s", len(options), args[0])
		}
		if err := p.SelectVoice(options[pick-1]); err != nil {
			return err
		}
		colours.Success.Fprintf(a.Out, "✅ Voice set to %s\n", options[pick-1])
		return nil
	}

	for i, v := range options {
		fmt.Fprintf(a.Out, "  %d. ", i+1)
		colours.Voice.Fprintln(a.Out, v)
	}
	return nil
}

// PopupPlay reads the focused page's selection on this process's engine and
// waits until it is done. Interrupting stops it.
func (a *App) PopupPlay(cmd *cobra.Command, args []string) error {
	engine := a.newEngine()

	// broadcasts can arrive before the panel is open
	var opened atomic.Pointer[popup.Popup]
	client, err := a.dial(transport.RolePopup, "", func(ctx context.Context, from transport.TabID, msg message.Message) message.Response {
		if p := opened.Load(); p != nil {
			return p.HandleMessage(ctx, from, msg)
		}
		return message.Success()
	})
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := a.openPopup(engine, selection.BridgeSource{Client: client})
	if err != nil {
		return err
	}
	opened.Store(p)

	p.OnPlayClick(a.ctx)
	if engine == nil {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for engine.IsPlaying() || engine.IsPaused() {
		select {
		case <-a.ctx.Done():
			p.OnStopClick()
			colours.Warning.Fprintln(a.Out, "⏹️  Stopped")
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

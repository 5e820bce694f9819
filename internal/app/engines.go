package app

import (
	"fmt"

	"readaloud/internal/cli/scheme/colours"
	"readaloud/internal/speech/tts"

	"github.com/spf13/cobra"
)

func (a *App) Engines(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(a.Out)
	colours.Title.Fprintln(a.Out, "🎤 Speech engines 🎤")
	for _, e := range tts.GetAvailableEngines() {
		marker := " "
		if e.String() == a.Config.Engine {
			marker = "*"
		}
		fmt.Fprintf(a.Out, "  %s %s\n", marker, e)
	}

	showVoices, _ := cmd.Flags().GetBool("list-voices")
	if !showVoices {
		return nil
	}

	engine := a.newEngine()
	if engine == nil {
		return fmt.Errorf("engine %s is not available", a.Config.Engine)
	}
	list, err := engine.GetAvailableVoices()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out)
	colours.Info.Fprintf(a.Out, "🗣️  %d voices installed for %s\n", len(list), a.Config.Engine)
	for _, v := range list {
		fmt.Fprintf(a.Out, "  • %s\n", v)
	}
	return nil
}

// Cache reports on, or clears, the audio cache of engines that keep one.
func (a *App) Cache(cmd *cobra.Command, args []string) error {
	engine, ok := a.newEngine().(tts.CacheableEngine)
	if !ok {
		colours.Warning.Fprintf(a.Out, "🔍 Engine %s keeps no cache\n", a.Config.Engine)
		return nil
	}

	wipe, _ := cmd.Flags().GetBool("clear")
	if wipe {
		if err := engine.ClearCache(); err != nil {
			return err
		}
		colours.Success.Fprintln(a.Out, "🧹 Cache cleared")
		return nil
	}

	stats, err := engine.GetCacheStats()
	if err != nil {
		return err
	}
	for k, v := range stats {
		fmt.Fprintf(a.Out, "  • %s: %v\n", k, v)
	}
	return nil
}

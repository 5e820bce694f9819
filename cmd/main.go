package main

import (
	"fmt"
	"os"
	"os/signal"
	"readaloud/internal/app"
	"readaloud/internal/cli/scheme/colours"
	"readaloud/internal/config"
	"readaloud/internal/domain/message"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {

	a := app.New()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		a.Cancel()
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye!"))
		<-sigChan
		os.Exit(130)
	}()

	rootCmd := &cobra.Command{
		Use:   "readaloud",
		Short: "🔊 Read selected text aloud",
		Long: `
┌─────────────────────────────────────┐
│  🔊 readaloud                       │
│  Select text, hear it spoken        │
└─────────────────────────────────────┘

Run "readaloud serve" once; every other command talks to it.
		`,
		PersistentPreRunE: a.Setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().String("addr", "", "Daemon address (default 127.0.0.1:7345)")
	rootCmd.PersistentFlags().StringP("engine", "e", "", "Speech engine: auto, espeak, sapi, avfoundation, googleclassic, mock")
	rootCmd.PersistentFlags().String("settings-dir", "", "Directory holding settings.yaml")
	rootCmd.PersistentFlags().String("voices", "", "Voice table YAML replacing the built-in one")
	rootCmd.PersistentFlags().Bool("debug", false, "Verbose logging")
	for _, key := range []string{config.KeyAddr, config.KeyEngine, config.KeySettingsDir, config.KeyVoices, config.KeyDebug} {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "🏠 Run the playback daemon",
		Long:  "Own the playback state, drive the speech engine and accept pages, popups and commands over a websocket",
		Args:  cobra.NoArgs,
		RunE:  a.Serve,
	}

	playCmd := &cobra.Command{
		Use:   "play [text]",
		Short: "▶️ Read text aloud",
		Long:  "Read the arguments aloud, or standard input when there are none",
		RunE:  a.Play,
	}

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "⏸️ Pause reading",
		Args:  cobra.NoArgs,
		RunE:  a.Command(message.Pause(), "⏸️  Paused"),
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "▶️ Resume reading",
		Args:  cobra.NoArgs,
		RunE:  a.Command(message.Resume(), "▶️  Resumed"),
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "⏹️ Stop reading",
		Args:  cobra.NoArgs,
		RunE:  a.Command(message.Stop(), "⏹️  Stopped"),
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "📊 Show the playback status",
		Args:  cobra.NoArgs,
		RunE:  a.Status,
	}

	readSelectionCmd := &cobra.Command{
		Use:   "read-selection",
		Short: "📋 Read the text selected on the desktop",
		Long:  "Read the primary selection (or the clipboard where there is none), like the Read Selected Text menu entry",
		Args:  cobra.NoArgs,
		RunE:  a.ReadSelection,
	}

	widgetCmd := &cobra.Command{
		Use:   "widget",
		Short: "📄 Open a terminal page with reading controls",
		Args:  cobra.NoArgs,
		RunE:  a.Widget,
	}

	popupCmd := &cobra.Command{
		Use:   "popup",
		Short: "⚙️ Speech settings and voices",
	}

	popupShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current settings",
		Args:  cobra.NoArgs,
		RunE:  a.PopupShow,
	}

	popupSetCmd := &cobra.Command{
		Use:   "set <rate|pitch|volume|selectedVoice> <value>",
		Short: "Change one setting",
		Args:  cobra.MinimumNArgs(2),
		RunE:  a.PopupSet,
	}

	popupLanguagesCmd := &cobra.Command{
		Use:   "languages",
		Short: "List the languages of the voice table",
		Args:  cobra.NoArgs,
		RunE:  a.PopupLanguages,
	}

	popupVoicesCmd := &cobra.Command{
		Use:   "voices <language>",
		Short: "List or pick the voices of a language",
		Args:  cobra.ExactArgs(1),
		RunE:  a.PopupVoices,
	}

	popupPlayCmd := &cobra.Command{
		Use:   "play",
		Short: "Read the focused page's selection here; Ctrl+C stops",
		Args:  cobra.NoArgs,
		RunE:  a.PopupPlay,
	}

	enginesCmd := &cobra.Command{
		Use:   "engines",
		Short: "🎤 List speech engines",
		Args:  cobra.NoArgs,
		RunE:  a.Engines,
	}

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "🗄️ Show or clear the speech audio cache",
		Args:  cobra.NoArgs,
		RunE:  a.Cache,
	}

	// Add flags
	popupVoicesCmd.Flags().Int("pick", 0, "Store the n-th voice as the selected voice")
	enginesCmd.Flags().Bool("list-voices", false, "Also list the voices the selected engine has installed")
	cacheCmd.Flags().Bool("clear", false, "Remove every cached file")

	popupCmd.AddCommand(popupShowCmd, popupSetCmd, popupLanguagesCmd, popupVoicesCmd, popupPlayCmd)
	rootCmd.AddCommand(serveCmd, playCmd, pauseCmd, resumeCmd, stopCmd, statusCmd,
		readSelectionCmd, widgetCmd, popupCmd, enginesCmd, cacheCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

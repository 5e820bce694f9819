// Package app wires the contexts together behind the command line.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"readaloud/internal/cli/scheme/colours"
	"readaloud/internal/config"
	"readaloud/internal/controller"
	"readaloud/internal/domain/message"
	"readaloud/internal/domain/playback"
	"readaloud/internal/domain/voices"
	"readaloud/internal/selection"
	"readaloud/internal/settings"
	"readaloud/internal/speech/tts"
	"readaloud/internal/transport"
	"readaloud/internal/widget"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// DialTimeout bounds connecting to the daemon.
const DialTimeout = 3 * time.Second

// App holds what every command needs.
type App struct {
	Config config.Config
	Out    io.Writer
	In     io.Reader

	ctx    context.Context
	Cancel context.CancelFunc
}

func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Out:    os.Stdout,
		In:     os.Stdin,
		ctx:    ctx,
		Cancel: cancel,
	}
}

// Setup loads the configuration. It runs before every command.
func (a *App) Setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.SetupLogging(cfg.Debug)
	a.Config = cfg
	return nil
}

func (a *App) newEngine() tts.Engine {
	engine, err := tts.NewEngine(tts.Config{Type: a.Config.Engine, CachePath: a.Config.CacheDir})
	if err != nil {
		logrus.WithError(err).WithField("engine", a.Config.Engine).Error("failed to create tts engine")
		return nil
	}
	return engine
}

func (a *App) voiceTable() (*voices.Table, error) {
	if a.Config.VoicesFile == "" {
		return voices.Default(), nil
	}
	return voices.Load(a.Config.VoicesFile)
}

// Serve runs the background context and the bridge until interrupted.
func (a *App) Serve(cmd *cobra.Command, args []string) error {
	store, err := settings.Open(a.Config.SettingsDir)
	if err != nil {
		return err
	}

	engine := a.newEngine()
	bus := transport.NewBus()
	ctrl := controller.New(engine, store, bus)
	if err := ctrl.Install(); err != nil {
		return err
	}

	go func() {
		err := store.Watch(a.ctx, func(s playback.Settings) {
			logrus.WithFields(logrus.Fields{
				"rate":  s.Rate,
				"pitch": s.Pitch,
				"voice": s.SelectedVoice,
			}).Info("settings changed")
		})
		if err != nil {
			logrus.WithError(err).Warn("not watching settings")
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", transport.NewServer(bus))
	srv := &http.Server{Addr: a.Config.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	colours.Success.Fprintf(a.Out, "🔊 readaloud listening on %s\n", a.Config.Addr)
	colours.Info.Fprintf(a.Out, "⚙️  settings in %s\n", store.Path())

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge stopped: %w", err)
		}
	case <-a.ctx.Done():
	}

	// pages still connected hear the final stop
	_ = ctrl.Stop(context.Background())
	ctrl.Flush()
	shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}

func (a *App) dial(role transport.Role, tab transport.TabID, h transport.Handler) (*transport.Client, error) {
	ctx, cancel := context.WithTimeout(a.ctx, DialTimeout)
	defer cancel()
	client, err := transport.Dial(ctx, a.Config.Addr, role, tab, h)
	if err != nil {
		return nil, fmt.Errorf("is `readaloud serve` running? %w", err)
	}
	return client, nil
}

func (a *App) send(msg message.Message) (message.Response, error) {
	client, err := a.dial(transport.RoleCommand, "", nil)
	if err != nil {
		return message.Response{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(a.ctx, transport.ReplyTimeout)
	defer cancel()
	resp, err := client.Send(ctx, msg)
	if err != nil {
		return resp, err
	}
	if resp.Status != message.StatusSuccess {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

// Play sends a play command with the arguments, or stdin when there are none.
func (a *App) Play(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		data, err := io.ReadAll(a.In)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return playback.ErrEmptyText
	}

	if _, err := a.send(message.Play(text)); err != nil {
		return err
	}
	colours.Success.Fprintln(a.Out, "▶️  Playing")
	return nil
}

// Command returns the handler for a bare playback command.
func (a *App) Command(msg message.Message, done string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if _, err := a.send(msg); err != nil {
			return err
		}
		colours.Success.Fprintln(a.Out, done)
		return nil
	}
}

func (a *App) Status(cmd *cobra.Command, args []string) error {
	resp, err := a.send(message.Message{Action: message.ActionGetStatus})
	if err != nil {
		return err
	}
	colours.Title.Fprintf(a.Out, "%s\n", resp.Text)
	return nil
}

// ReadSelection is the context-menu entry for the desktop: it reads the
// primary selection and asks the daemon to read it.
func (a *App) ReadSelection(cmd *cobra.Command, args []string) error {
	text, err := selection.NewDesktop().Selection(a.ctx)
	if err != nil {
		return err
	}
	if text == "" {
		colours.Warning.Fprintln(a.Out, "🔍 Nothing is selected")
		return nil
	}
	if _, err := a.send(message.MenuClicked(controller.MenuReadSelection, text)); err != nil {
		return err
	}
	colours.Success.Fprintln(a.Out, "▶️  Reading the selection")
	return nil
}

// Widget runs a terminal page. Every input line is a new selection; lines
// starting with ':' are control clicks.
func (a *App) Widget(cmd *cobra.Command, args []string) error {
	tab := transport.NewTabID()
	var (
		client *transport.Client
		w      *widget.Widget
	)
	w = widget.New(widget.SenderFunc(func(ctx context.Context, msg message.Message) (message.Response, error) {
		return client.Send(ctx, msg)
	}), widget.CancelFunc(func() error {
		// the daemon's engine is shared by every page; only the page that
		// mirrors an utterance stops it
		if st := w.Status(); st != playback.StatusPlaying && st != playback.StatusPaused {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), transport.ReplyTimeout)
		defer cancel()
		_, err := client.Send(ctx, message.Stop())
		return err
	}), widget.NewTerminalRenderer(a.Out))

	client, err := a.dial(transport.RoleTab, tab, w.HandleMessage)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Send(a.ctx, message.Message{Action: message.ActionActivate}); err != nil {
		return err
	}

	colours.Title.Fprintln(a.Out, "📄 Type text to select it.")
	colours.Prompt.Fprintln(a.Out, "   :p play/pause  :s stop  :h hide page  :q quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.In)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	row := 0
	for {
		select {
		case <-a.ctx.Done():
			w.OnUnload()
			return nil
		case <-client.Done():
			w.OnUnload()
			return errors.New("daemon went away")
		case line, ok := <-lines:
			if !ok {
				w.OnUnload()
				return nil
			}
			row++
			switch strings.TrimSpace(line) {
			case ":p":
				w.TogglePlayPause(a.ctx)
			case ":s":
				w.OnCommandIntent(a.ctx, playback.ActionStop)
			case ":h":
				w.OnVisibilityChange(true)
			case ":q":
				w.OnUnload()
				return nil
			case "":
				w.OnPointerDown(false, "")
				w.OnSelectionChange("", 0, 0)
			default:
				w.OnSelectionChange(line, 0, float64(row))
			}
		}
	}
}

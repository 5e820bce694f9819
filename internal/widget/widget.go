// Package widget is the per-page context: it watches the selection, places
// the floating controls and mirrors the playback status the controller
// broadcasts. It never decides the status itself, with one exception: a
// page that is hidden or unloading is always stopped.
package widget

import (
	"context"
	"strings"
	"sync"

	"readaloud/internal/domain/message"
	"readaloud/internal/domain/playback"
	"readaloud/internal/transport"

	"github.com/sirupsen/logrus"
)

// ControlsOffset is how far below the selection end the controls appear.
const ControlsOffset = 5

// Renderer draws the floating controls.
type Renderer interface {
	Show(x, y float64)
	Hide()
	SetPlaying(playing bool)
}

// Sender delivers a message to the background context.
type Sender interface {
	Send(ctx context.Context, msg message.Message) (message.Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg message.Message) (message.Response, error)

func (f SenderFunc) Send(ctx context.Context, msg message.Message) (message.Response, error) {
	return f(ctx, msg)
}

// BusSender sends to the background of an in-process bus on behalf of tab.
func BusSender(bus *transport.Bus, tab transport.TabID) Sender {
	return SenderFunc(func(ctx context.Context, msg message.Message) (message.Response, error) {
		return bus.SendToBackground(ctx, tab, msg)
	})
}

// Canceler silences speech started locally in the page.
type Canceler interface {
	Stop() error
}

// CancelFunc adapts a function to Canceler.
type CancelFunc func() error

func (f CancelFunc) Stop() error { return f() }

// Snapshot is the selection the controls were last shown for.
type Snapshot struct {
	Text string
	X, Y float64
}

type Widget struct {
	sender Sender
	speech Canceler
	render Renderer

	mu       sync.Mutex
	status   playback.Status
	snapshot Snapshot
	live     string
	visible  bool
}

// New builds a widget. speech may be nil when the page has no local engine.
func New(sender Sender, speech Canceler, render Renderer) *Widget {
	return &Widget{
		sender: sender,
		speech: speech,
		render: render,
		status: playback.StatusIdle,
	}
}

// OnSelectionChange runs when the pointer is released. x, y is where the
// selection ends.
func (w *Widget) OnSelectionChange(text string, x, y float64) {
	text = strings.TrimSpace(text)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.live = text
	if text == "" {
		if w.status != playback.StatusPlaying {
			w.hide()
		}
		return
	}

	w.snapshot = Snapshot{Text: text, X: x, Y: y + ControlsOffset}
	w.show(w.snapshot.X, w.snapshot.Y)
	w.render.SetPlaying(w.status == playback.StatusPlaying)
}

// OnPointerDown hides the controls on a click elsewhere on the page when
// nothing is selected and nothing plays.
func (w *Widget) OnPointerDown(insideControls bool, selection string) {
	if insideControls || strings.TrimSpace(selection) != "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != playback.StatusPlaying {
		w.hide()
	}
}

// OnCommandIntent forwards a control click to the controller. The mirrored
// status only changes when the resulting broadcast arrives.
func (w *Widget) OnCommandIntent(ctx context.Context, action playback.Action) {
	var msg message.Message
	switch action {
	case playback.ActionPlay:
		w.mu.Lock()
		text := w.snapshot.Text
		w.mu.Unlock()
		if text == "" {
			logrus.WithError(playback.ErrEmptyText).Debug("play ignored")
			return
		}
		msg = message.Play(text)
	case playback.ActionPause:
		msg = message.Pause()
	case playback.ActionResume:
		msg = message.Resume()
	case playback.ActionStop:
		msg = message.Stop()
	default:
		logrus.WithError(playback.ErrUnknownAction).WithField("action", action).Debug("intent ignored")
		return
	}

	if _, err := w.sender.Send(ctx, msg); err != nil {
		logrus.WithError(err).WithField("action", msg.Action).Debug("command not delivered")
	}
}

// TogglePlayPause is the single play/pause button.
func (w *Widget) TogglePlayPause(ctx context.Context) {
	switch w.Status() {
	case playback.StatusPlaying:
		w.OnCommandIntent(ctx, playback.ActionPause)
	case playback.StatusPaused:
		w.OnCommandIntent(ctx, playback.ActionResume)
	default:
		w.OnCommandIntent(ctx, playback.ActionPlay)
	}
}

// HandleMessage receives messages the bus delivers to this page.
func (w *Widget) HandleMessage(ctx context.Context, from transport.TabID, msg message.Message) message.Response {
	switch msg.Action {
	case message.ActionStatusUpdate:
		status, ok := playback.ParseStatus(msg.Status)
		if !ok {
			logrus.WithField("status", msg.Status).Debug("ignoring unknown status")
			return message.Success()
		}
		w.mirror(status)
		return message.Success()
	case message.ActionGetSelection:
		return message.Response{Status: message.StatusSuccess, Text: w.CurrentSelection()}
	default:
		return message.Success()
	}
}

func (w *Widget) mirror(status playback.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status = status
	if status == playback.StatusPlaying && !w.visible {
		w.show(w.snapshot.X, w.snapshot.Y)
	}
	w.render.SetPlaying(status == playback.StatusPlaying)
}

// OnVisibilityChange runs when the page is shown or hidden.
func (w *Widget) OnVisibilityChange(hidden bool) {
	if hidden {
		w.silence()
	}
}

// OnUnload runs before the page goes away.
func (w *Widget) OnUnload() {
	w.silence()
}

// silence cancels local speech and resets the page to stopped without
// waiting for the controller.
func (w *Widget) silence() {
	if w.speech != nil {
		if err := w.speech.Stop(); err != nil {
			logrus.WithError(err).Debug("failed to cancel local speech")
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = playback.StatusStopped
	w.render.SetPlaying(false)
	w.hide()
}

func (w *Widget) show(x, y float64) {
	w.visible = true
	w.render.Show(x, y)
}

func (w *Widget) hide() {
	if !w.visible {
		return
	}
	w.visible = false
	w.render.Hide()
}

// Status is the mirrored playback status.
func (w *Widget) Status() playback.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Widget) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot
}

// CurrentSelection is the live selection, empty once the user deselects.
// The snapshot keeps the last non-empty one.
func (w *Widget) CurrentSelection() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live
}

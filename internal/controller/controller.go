// Package controller is the background context: it owns the authoritative
// playback status, drives the speech engine and broadcasts every transition
// to the active tab and any open popup.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"readaloud/internal/domain/message"
	"readaloud/internal/domain/playback"
	"readaloud/internal/settings"
	"readaloud/internal/speech/tts"
	"readaloud/internal/transport"

	"github.com/sirupsen/logrus"
)

// MenuReadSelection is the context-menu entry registered on install.
const MenuReadSelection = "readSelectedText"

// MenuItem is a context-menu registration.
type MenuItem struct {
	ID       string
	Title    string
	Contexts []string
}

type installer interface {
	Install() (bool, error)
}

// Controller answers command messages from every other context. Its mutex
// is never held across engine or transport calls; engine callbacks lock it.
type Controller struct {
	engine tts.Engine
	store  settings.Store
	bus    *transport.Bus

	mu         sync.Mutex
	status     playback.Status
	generation uint64
	activeTab  transport.TabID
	menu       []MenuItem

	// outbox holds status changes not yet broadcast, oldest first. One
	// goroutine drains it while sending is set.
	outMu       sync.Mutex
	outIdle     *sync.Cond
	outbox      []playback.Status
	sending     bool
	unavailable sync.Once
}

// New builds the controller and registers it as the bus background. A nil
// engine leaves every command a logged no-op.
func New(engine tts.Engine, store settings.Store, bus *transport.Bus) *Controller {
	c := &Controller{
		engine: engine,
		store:  store,
		bus:    bus,
		status: playback.StatusIdle,
	}
	c.outIdle = sync.NewCond(&c.outMu)
	bus.SetBackground(c.HandleCommand)
	bus.OnTabActivated(c.setActiveTab)
	return c
}

// Install writes the default settings and registers the context menu. It is
// run once per start and leaves existing settings untouched.
func (c *Controller) Install() error {
	if in, ok := c.store.(installer); ok {
		if _, err := in.Install(); err != nil {
			return err
		}
	} else {
		for k, v := range playback.DefaultSettings().Map() {
			if err := c.store.Set(k, v); err != nil {
				return fmt.Errorf("failed to write default %s: %w", k, err)
			}
		}
	}

	c.mu.Lock()
	c.menu = []MenuItem{{
		ID:       MenuReadSelection,
		Title:    "Read Selected Text",
		Contexts: []string{"selection"},
	}}
	c.mu.Unlock()
	return nil
}

// Menu returns the registered context-menu entries.
func (c *Controller) Menu() []MenuItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MenuItem(nil), c.menu...)
}

// Status is the authoritative playback status.
func (c *Controller) Status() playback.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// HandleCommand is the background message handler. Every message is
// acknowledged with success; failures are only logged.
func (c *Controller) HandleCommand(ctx context.Context, from transport.TabID, msg message.Message) message.Response {
	log := logrus.WithFields(logrus.Fields{"action": msg.Action, "from": from})

	switch msg.Action {
	case message.ActionGetStatus:
		return message.Response{Status: message.StatusSuccess, Text: c.Status().String()}
	case message.ActionMenuClicked:
		c.MenuClicked(ctx, msg.MenuItemID, msg.Text)
		return message.Success()
	}

	action, ok := msg.Command()
	if !ok {
		log.WithError(playback.ErrUnknownAction).Warn("ignoring message")
		return message.Success()
	}

	var err error
	switch action {
	case playback.ActionPlay:
		err = c.Play(ctx, msg.Text)
	case playback.ActionPause:
		err = c.Pause(ctx)
	case playback.ActionResume:
		err = c.Resume(ctx)
	case playback.ActionStop:
		err = c.Stop(ctx)
	}
	if err != nil && !errors.Is(err, playback.ErrEngineUnavailable) {
		log.WithError(err).Info("command not carried out")
	}
	return message.Success()
}

// MenuClicked handles a context-menu activation on a selection.
func (c *Controller) MenuClicked(ctx context.Context, id, selection string) {
	if id != MenuReadSelection {
		logrus.WithField("menuItemId", id).Debug("ignoring unknown menu item")
		return
	}
	if err := c.Play(ctx, selection); err != nil {
		logrus.WithError(err).Debug("menu read not carried out")
	}
}

// Play reads the settings, cancels the utterance in flight and speaks text.
// Lifecycle events of the new utterance drive the status from then on.
func (c *Controller) Play(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return playback.ErrEmptyText
	}
	if !c.available() {
		return playback.ErrEngineUnavailable
	}

	s, err := c.store.Load()
	if err != nil {
		logrus.WithError(err).Warn("failed to read settings, using defaults")
		s = playback.DefaultSettings()
	}

	gen := c.supersede()
	if err := c.engine.Stop(); err != nil {
		logrus.WithError(err).Debug("failed to cancel previous utterance")
	}

	opts := tts.OptionsFrom(s)
	logrus.WithFields(logrus.Fields{
		"chars": len(text),
		"rate":  opts.Rate,
		"voice": opts.Voice,
	}).Debug("speaking")

	err = c.engine.Speak(text, opts, func(ev playback.Event) {
		c.onEngineEvent(gen, ev)
	})
	if err != nil {
		c.onEngineEvent(gen, playback.Event{Type: playback.EventError, Err: err})
		return fmt.Errorf("failed to start speech: %w", err)
	}
	return nil
}

func (c *Controller) Pause(ctx context.Context) error {
	return c.command(playback.ActionPause, func() error { return c.engine.Pause() })
}

func (c *Controller) Resume(ctx context.Context) error {
	return c.command(playback.ActionResume, func() error { return c.engine.Resume() })
}

// Stop silences the engine. Events still arriving from the stopped
// utterance are ignored, so every Stop yields exactly one stopped broadcast.
func (c *Controller) Stop(ctx context.Context) error {
	return c.command(playback.ActionStop, func() error {
		c.supersede()
		return c.engine.Stop()
	})
}

// command issues an engine primitive and sets the status it implies whether
// or not the primitive succeeded. It does not wait for the broadcast.
func (c *Controller) command(action playback.Action, call func() error) error {
	if !c.available() {
		return playback.ErrEngineUnavailable
	}
	status, _ := playback.StatusForAction(action)

	err := call()
	if err != nil {
		logrus.WithError(err).WithField("action", action).Warn("engine call failed")
	}

	c.mu.Lock()
	c.status = status
	c.enqueue(status)
	c.mu.Unlock()
	return err
}

// supersede invalidates callbacks of every earlier utterance and returns the
// generation of the next one.
func (c *Controller) supersede() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

func (c *Controller) onEngineEvent(gen uint64, ev playback.Event) {
	log := logrus.WithFields(logrus.Fields{"event": ev.Type, "generation": gen})
	if ev.Err != nil {
		log.WithError(ev.Err).Warn("speech engine reported an error")
	}

	status, ok := playback.StatusForEvent(ev.Type)
	if !ok {
		return
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		log.Debug("dropping event of superseded utterance")
		return
	}
	c.status = status
	c.enqueue(status)
	c.mu.Unlock()
}

func (c *Controller) available() bool {
	if c.engine != nil {
		return true
	}
	c.unavailable.Do(func() {
		logrus.WithError(playback.ErrEngineUnavailable).Error("playback commands will be ignored")
	})
	return false
}

func (c *Controller) setActiveTab(id transport.TabID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeTab = id
}

// resolveBroadcastTarget returns the cached active tab, falling back to the
// focused tab reported by the bus.
func (c *Controller) resolveBroadcastTarget() (transport.TabID, bool) {
	c.mu.Lock()
	id := c.activeTab
	c.mu.Unlock()
	if id != "" {
		return id, true
	}

	id, ok := c.bus.ActiveTab()
	if !ok {
		return "", false
	}
	c.setActiveTab(id)
	return id, true
}

// enqueue schedules a broadcast of status. Callers hold mu, so the outbox
// order is the order of status changes.
func (c *Controller) enqueue(status playback.Status) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	c.outbox = append(c.outbox, status)
	if !c.sending {
		c.sending = true
		go c.drain()
	}
}

func (c *Controller) drain() {
	for {
		c.outMu.Lock()
		if len(c.outbox) == 0 {
			c.sending = false
			c.outIdle.Broadcast()
			c.outMu.Unlock()
			return
		}
		status := c.outbox[0]
		c.outbox = c.outbox[1:]
		c.outMu.Unlock()

		c.broadcast(context.Background(), status)
	}
}

// Flush blocks until every queued status broadcast has been attempted.
func (c *Controller) Flush() {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	for c.sending {
		c.outIdle.Wait()
	}
}

// broadcast sends status to every open view and the active tab. Delivery
// failures are logged and never reach the caller.
func (c *Controller) broadcast(ctx context.Context, status playback.Status) {
	msg := message.StatusUpdate(status)
	log := logrus.WithField("status", msg.Status)

	if n := c.bus.SendToViews(ctx, msg); n > 0 {
		log.WithField("views", n).Debug("status sent to views")
	}

	tab, ok := c.resolveBroadcastTarget()
	if !ok {
		log.Debug("no active tab, status broadcast suppressed")
		return
	}
	if _, err := c.bus.SendToTab(ctx, tab, msg); err != nil {
		log.WithError(err).Debug("status broadcast not delivered")
		if errors.Is(err, transport.ErrNoReceiver) {
			c.forgetTab(tab)
		}
	}
}

// forgetTab drops a cached reference to a tab that no longer exists.
func (c *Controller) forgetTab(id transport.TabID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeTab == id {
		c.activeTab = ""
	}
}

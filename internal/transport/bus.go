// Package transport carries messages between contexts.
//
// Delivery is best effort and at most once: a message reaches the receiver
// registered at the moment of sending or nobody at all, there is no retry and
// no ordering promise between different senders. A missing receiver is
// reported as ErrNoReceiver, which senders treat as a normal outcome.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"readaloud/internal/domain/message"

	"github.com/google/uuid"
)

// ErrNoReceiver means the target context does not exist (any more).
var ErrNoReceiver = errors.New("no receiving context")

// TabID identifies one page context.
type TabID string

// NewTabID returns a fresh random tab id.
func NewTabID() TabID {
	return TabID(uuid.NewString())
}

// Handler receives a message. from is the sending tab, empty when the sender
// is not a page (popup, command line, background).
type Handler func(ctx context.Context, from TabID, msg message.Message) message.Response

// Bus is the in-process stand-in for the host runtime: one background
// receiver, any number of tabs and extension views (popups), and a notion of
// the focused tab. Handlers run on the sender's goroutine, never under the
// bus lock.
type Bus struct {
	mu         sync.RWMutex
	background Handler
	tabs       map[TabID]Handler
	views      map[string]Handler
	focused    TabID
	onActivate []func(TabID)
}

func NewBus() *Bus {
	return &Bus{
		tabs:  make(map[TabID]Handler),
		views: make(map[string]Handler),
	}
}

// SetBackground installs the background receiver. A nil handler removes it.
func (b *Bus) SetBackground(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.background = h
}

// SendToBackground delivers msg to the background context.
func (b *Bus) SendToBackground(ctx context.Context, from TabID, msg message.Message) (message.Response, error) {
	b.mu.RLock()
	h := b.background
	b.mu.RUnlock()

	if h == nil {
		return message.Response{}, fmt.Errorf("background: %w", ErrNoReceiver)
	}
	return h(ctx, from, msg), nil
}

// AddTab registers a page context. Re-adding an id replaces its handler.
func (b *Bus) AddTab(id TabID, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tabs[id] = h
}

// RemoveTab drops a page context. Removing the focused tab leaves no tab focused.
func (b *Bus) RemoveTab(id TabID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tabs, id)
	if b.focused == id {
		b.focused = ""
	}
}

// SendToTab delivers msg to one page context.
func (b *Bus) SendToTab(ctx context.Context, id TabID, msg message.Message) (message.Response, error) {
	b.mu.RLock()
	h, ok := b.tabs[id]
	b.mu.RUnlock()

	if !ok {
		return message.Response{}, fmt.Errorf("tab %s: %w", id, ErrNoReceiver)
	}
	return h(ctx, "", msg), nil
}

// ActivateTab focuses a tab and notifies activation listeners.
func (b *Bus) ActivateTab(id TabID) error {
	b.mu.Lock()
	if _, ok := b.tabs[id]; !ok {
		b.mu.Unlock()
		return fmt.Errorf("tab %s: %w", id, ErrNoReceiver)
	}
	b.focused = id
	listeners := append([]func(TabID){}, b.onActivate...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
	return nil
}

// ActiveTab answers the host query for the currently focused tab.
func (b *Bus) ActiveTab() (TabID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.focused, b.focused != ""
}

// OnTabActivated registers fn for every later ActivateTab.
func (b *Bus) OnTabActivated(fn func(TabID)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onActivate = append(b.onActivate, fn)
}

// AddView registers an extension view such as an open popup and returns a
// function that removes it again.
func (b *Bus) AddView(h Handler) (remove func()) {
	id := uuid.NewString()

	b.mu.Lock()
	b.views[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.views, id)
	}
}

// SendToViews delivers msg to every open view and returns how many got it.
func (b *Bus) SendToViews(ctx context.Context, msg message.Message) int {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.views))
	for _, h := range b.views {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, "", msg)
	}
	return len(handlers)
}

// QueryActiveSelection asks the focused tab for its live selection.
func (b *Bus) QueryActiveSelection(ctx context.Context) (string, error) {
	id, ok := b.ActiveTab()
	if !ok {
		return "", fmt.Errorf("active tab: %w", ErrNoReceiver)
	}
	resp, err := b.SendToTab(ctx, id, message.Message{Action: message.ActionGetSelection})
	if err != nil {
		return "", err
	}
	if resp.Status != message.StatusSuccess {
		return "", fmt.Errorf("tab %s: selection query failed: %s", id, resp.Error)
	}
	return resp.Text, nil
}

package transport

import (
	"context"
	"errors"
	"testing"

	"readaloud/internal/domain/message"
)

func echo(text string) Handler {
	return func(ctx context.Context, from TabID, msg message.Message) message.Response {
		return message.Response{Status: message.StatusSuccess, Text: text + ":" + string(from) + ":" + msg.Action}
	}
}

func TestSendToBackground(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	if _, err := bus.SendToBackground(ctx, "", message.Stop()); !errors.Is(err, ErrNoReceiver) {
		t.Fatalf("SendToBackground() without receiver error = %v, want ErrNoReceiver", err)
	}

	bus.SetBackground(echo("bg"))
	resp, err := bus.SendToBackground(ctx, "tab-1", message.Pause())
	if err != nil {
		t.Fatalf("SendToBackground() error = %v", err)
	}
	if resp.Text != "bg:tab-1:pause" {
		t.Errorf("response = %+v", resp)
	}
}

func TestTabsAndActivation(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var activated []TabID
	bus.OnTabActivated(func(id TabID) { activated = append(activated, id) })

	if _, ok := bus.ActiveTab(); ok {
		t.Fatal("fresh bus has an active tab")
	}
	if err := bus.ActivateTab("ghost"); !errors.Is(err, ErrNoReceiver) {
		t.Errorf("ActivateTab(unknown) error = %v", err)
	}

	bus.AddTab("a", echo("a"))
	bus.AddTab("b", echo("b"))
	_ = bus.ActivateTab("a")
	_ = bus.ActivateTab("b")

	if id, ok := bus.ActiveTab(); !ok || id != "b" {
		t.Errorf("ActiveTab() = %q, %v, want b", id, ok)
	}
	if len(activated) != 2 || activated[0] != "a" || activated[1] != "b" {
		t.Errorf("activation listeners saw %v", activated)
	}

	resp, err := bus.SendToTab(ctx, "a", message.StatusUpdate(0))
	if err != nil || resp.Text != "a::statusUpdate" {
		t.Errorf("SendToTab(a) = %+v, %v", resp, err)
	}

	bus.RemoveTab("b")
	if _, ok := bus.ActiveTab(); ok {
		t.Error("removing the focused tab should clear focus")
	}
	if _, err := bus.SendToTab(ctx, "b", message.Stop()); !errors.Is(err, ErrNoReceiver) {
		t.Errorf("SendToTab(removed) error = %v", err)
	}
}

func TestViews(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var got []string
	remove := bus.AddView(func(ctx context.Context, from TabID, msg message.Message) message.Response {
		got = append(got, msg.Status)
		return message.Success()
	})

	if n := bus.SendToViews(ctx, message.Message{Action: message.ActionStatusUpdate, Status: "playing"}); n != 1 {
		t.Errorf("SendToViews() delivered to %d views, want 1", n)
	}
	remove()
	if n := bus.SendToViews(ctx, message.Message{Action: message.ActionStatusUpdate, Status: "stopped"}); n != 0 {
		t.Errorf("SendToViews() after remove delivered to %d views", n)
	}
	if len(got) != 1 || got[0] != "playing" {
		t.Errorf("view received %v", got)
	}
}

func TestQueryActiveSelection(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	if _, err := bus.QueryActiveSelection(ctx); !errors.Is(err, ErrNoReceiver) {
		t.Fatalf("QueryActiveSelection() without tabs error = %v", err)
	}

	bus.AddTab("page", func(ctx context.Context, from TabID, msg message.Message) message.Response {
		if msg.Action != message.ActionGetSelection {
			return message.Failure(errors.New("unexpected"))
		}
		return message.Response{Status: message.StatusSuccess, Text: "selected words"}
	})
	_ = bus.ActivateTab("page")

	text, err := bus.QueryActiveSelection(ctx)
	if err != nil || text != "selected words" {
		t.Errorf("QueryActiveSelection() = %q, %v", text, err)
	}
}

func TestNewTabIDUnique(t *testing.T) {
	if NewTabID() == NewTabID() {
		t.Error("NewTabID returned the same id twice")
	}
}

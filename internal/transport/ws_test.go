package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"readaloud/internal/domain/message"
)

func startBridge(t *testing.T, bus *Bus) string {
	t.Helper()
	srv := httptest.NewServer(NewServer(bus))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBridgeCommandReachesBackground(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	var received []message.Message
	bus.SetBackground(func(ctx context.Context, from TabID, msg message.Message) message.Response {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg)
		return message.Success()
	})
	addr := startBridge(t, bus)

	ctx := context.Background()
	client, err := Dial(ctx, addr, RoleCommand, "", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	resp, err := client.Send(ctx, message.Play("hello world"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Status != message.StatusSuccess {
		t.Errorf("response = %+v", resp)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Text != "hello world" {
		t.Errorf("background received %+v", received)
	}
}

func TestBridgeTabReceivesBroadcastAndSelectionQuery(t *testing.T) {
	bus := NewBus()
	addr := startBridge(t, bus)
	ctx := context.Background()

	statuses := make(chan string, 4)
	tab := NewTabID()
	client, err := Dial(ctx, addr, RoleTab, tab, func(ctx context.Context, from TabID, msg message.Message) message.Response {
		switch msg.Action {
		case message.ActionStatusUpdate:
			statuses <- msg.Status
			return message.Success()
		case message.ActionGetSelection:
			return message.Response{Status: message.StatusSuccess, Text: "live selection"}
		}
		return message.Failure(ErrNoReceiver)
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	if resp, err := client.Send(ctx, message.Message{Action: message.ActionActivate}); err != nil || resp.Status != message.StatusSuccess {
		t.Fatalf("activate = %+v, %v", resp, err)
	}
	if id, ok := bus.ActiveTab(); !ok || id != tab {
		t.Fatalf("ActiveTab() = %q, %v", id, ok)
	}

	if _, err := bus.SendToTab(ctx, tab, message.StatusUpdate(1)); err != nil {
		t.Fatalf("SendToTab() error = %v", err)
	}
	select {
	case s := <-statuses:
		if s != "playing" {
			t.Errorf("tab saw status %q", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tab never received the broadcast")
	}

	popup, err := Dial(ctx, addr, RolePopup, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer popup.Close()

	resp, err := popup.Send(ctx, message.Message{Action: message.ActionGetSelection})
	if err != nil || resp.Text != "live selection" {
		t.Errorf("selection query = %+v, %v", resp, err)
	}
}

func TestBridgeRemovesTabOnDisconnect(t *testing.T) {
	bus := NewBus()
	addr := startBridge(t, bus)
	ctx := context.Background()

	tab := NewTabID()
	client, err := Dial(ctx, addr, RoleTab, tab, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Send(ctx, message.Message{Action: message.ActionActivate}); err != nil {
		t.Fatal(err)
	}
	_ = client.Close()

	waitFor(t, func() bool {
		_, ok := bus.ActiveTab()
		return !ok
	})
}

func TestBridgeRejectsBadRole(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewBus()))
	defer srv.Close()

	for _, query := range []string{"?role=admin", "?role=tab"} {
		resp, err := http.Get(srv.URL + "/ws" + query)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", query, resp.StatusCode)
		}
	}
}

func TestBridgeWithoutBackground(t *testing.T) {
	addr := startBridge(t, NewBus())
	ctx := context.Background()

	client, err := Dial(ctx, addr, RoleCommand, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	resp, err := client.Send(ctx, message.Stop())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Status != message.StatusError {
		t.Errorf("response = %+v, want error status", resp)
	}
}

// Package selection answers "what text is selected right now" for the
// popup and the context-menu command.
package selection

import (
	"context"
	"fmt"
	"strings"

	"readaloud/internal/domain/message"
	"readaloud/internal/transport"

	"github.com/atotto/clipboard"
)

// Source re-reads the live selection on every call.
type Source interface {
	Selection(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Selection(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static always answers with the same text.
func Static(text string) Source {
	return SourceFunc(func(context.Context) (string, error) { return text, nil })
}

// BridgeSource asks the focused tab through a bridge connection.
type BridgeSource struct {
	Client *transport.Client
}

func (s BridgeSource) Selection(ctx context.Context) (string, error) {
	resp, err := s.Client.Send(ctx, message.Message{Action: message.ActionGetSelection})
	if err != nil {
		return "", err
	}
	if resp.Status != message.StatusSuccess {
		return "", fmt.Errorf("selection query failed: %s", resp.Error)
	}
	return resp.Text, nil
}

// Desktop reads the X11/Wayland primary selection (the text highlighted in
// any window) where the platform has one, and the clipboard elsewhere.
type Desktop struct{}

func NewDesktop() Desktop {
	usePrimarySelection()
	return Desktop{}
}

func (Desktop) Selection(ctx context.Context) (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("no clipboard utility found (install xsel, xclip or wl-clipboard)")
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}
	return strings.TrimSpace(text), nil
}

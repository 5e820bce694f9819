package widget

import (
	"io"
	"sync"

	"readaloud/internal/cli/scheme/colours"
)

// TerminalRenderer draws the controls as status lines.
type TerminalRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	shown   bool
	playing bool
}

func NewTerminalRenderer(out io.Writer) *TerminalRenderer {
	return &TerminalRenderer{out: out}
}

func (r *TerminalRenderer) Show(x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = true
	colours.Info.Fprintf(r.out, "🎛️  controls at (%.0f, %.0f)  %s\n", x, y, r.buttons())
}

func (r *TerminalRenderer) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = false
	colours.Warning.Fprintln(r.out, "🙈 controls hidden")
}

func (r *TerminalRenderer) SetPlaying(playing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if playing == r.playing {
		return
	}
	r.playing = playing
	if !r.shown {
		return
	}
	if playing {
		colours.Success.Fprintf(r.out, "▶️  playing  %s\n", r.buttons())
	} else {
		colours.Warning.Fprintf(r.out, "⏹️  not playing  %s\n", r.buttons())
	}
}

func (r *TerminalRenderer) buttons() string {
	if r.playing {
		return "[p]ause [s]top"
	}
	return "[p]lay [s]top"
}

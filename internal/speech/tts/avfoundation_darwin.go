//go:build darwin

package tts

import (
	"fmt"
	"math"
	"os/exec"
	"strings"
)

// AVFoundationEngine speaks through the macOS built-in 'say' command.
type AVFoundationEngine struct {
	processEngine
}

func newAVFoundationEngine() (*AVFoundationEngine, error) {
	if _, err := exec.LookPath("say"); err != nil {
		return nil, fmt.Errorf("say not found: %w", err)
	}
	av := &AVFoundationEngine{}
	av.processEngine = processEngine{name: "avfoundation", build: sayCommand, voices: av.GetAvailableVoices}
	return av, nil
}

// say has no pitch or volume flags; both follow the system settings.
func sayCommand(text string, opts Options) (*exec.Cmd, error) {
	args := []string{}

	if opts.Voice != "" && opts.Voice != "default" {
		args = append(args, "-v", opts.Voice)
	}

	// words per minute, default is ~175
	args = append(args, "-r", fmt.Sprintf("%.0f", math.Round(175*opts.Rate)))
	args = append(args, "-f", "-")

	cmd := exec.Command("say", args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd, nil
}

func (av *AVFoundationEngine) GetAvailableVoices() ([]string, error) {
	output, err := exec.Command("say", "-v", "?").Output()
	if err != nil {
		return nil, err
	}
	return parseSayVoices(string(output)), nil
}

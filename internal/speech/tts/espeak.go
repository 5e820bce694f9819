package tts

import (
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// espeakBinaries in order of preference.
var espeakBinaries = []string{"espeak-ng", "espeak"}

// ESpeakEngine speaks through an espeak-ng (or classic espeak) child process.
type ESpeakEngine struct {
	processEngine
	path string
}

func newESpeakEngine() (*ESpeakEngine, error) {
	path, err := lookPathAny(espeakBinaries...)
	if err != nil {
		return nil, err
	}
	if err := exec.Command(path, "--version").Run(); err != nil {
		return nil, fmt.Errorf("%s does not run: %w", filepath.Base(path), err)
	}

	e := &ESpeakEngine{path: path}
	e.processEngine = processEngine{name: "espeak", build: e.command, voices: e.voiceIDs}
	return e, nil
}

func (e *ESpeakEngine) command(text string, opts Options) (*exec.Cmd, error) {
	cmd := exec.Command(e.path, espeakArgs(opts)...)
	cmd.Stdin = strings.NewReader(text)
	return cmd, nil
}

// espeakArgs maps utterance options onto eSpeak flags. Text is fed on stdin.
func espeakArgs(opts Options) []string {
	args := []string{}

	if opts.Voice != "" && opts.Voice != "default" {
		args = append(args, "-v", opts.Voice)
	}

	// words per minute, default is 175
	speed := int(math.Round(175 * opts.Rate))
	args = append(args, "-s", strconv.Itoa(speed))

	// 0-99, default is 50
	pitch := int(math.Round(50 * opts.Pitch))
	if pitch > 99 {
		pitch = 99
	}
	args = append(args, "-p", strconv.Itoa(pitch))

	// amplitude 0-200, default is 100
	volume := int(math.Round(100 * opts.Volume))
	args = append(args, "-a", strconv.Itoa(volume))

	return append(args, "--stdin")
}

func (e *ESpeakEngine) GetAvailableVoices() ([]string, error) {
	output, err := exec.Command(e.path, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("listing espeak voices: %w", err)
	}
	return parseESpeakVoices(string(output)), nil
}

// voiceIDs lists everything -v accepts: language codes and voice names.
func (e *ESpeakEngine) voiceIDs() ([]string, error) {
	output, err := exec.Command(e.path, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("listing espeak voices: %w", err)
	}
	return parseESpeakVoiceIDs(string(output)), nil
}

//go:build windows

package tts

import (
	"fmt"
	"math"
	"os/exec"
	"strings"
)

// SAPIEngine speaks through System.Speech driven from PowerShell.
type SAPIEngine struct {
	processEngine
}

func newSAPIEngine() (*SAPIEngine, error) {
	if _, err := exec.LookPath("powershell"); err != nil {
		return nil, fmt.Errorf("powershell not found: %w", err)
	}
	s := &SAPIEngine{}
	s.processEngine = processEngine{name: "sapi", build: sapiCommand, voices: s.GetAvailableVoices}
	return s, nil
}

// The text is read from stdin so it never has to be quoted into the script.
func sapiCommand(text string, opts Options) (*exec.Cmd, error) {
	script := `Add-Type -AssemblyName System.Speech;
$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer;
$synth.Rate = %d;
$synth.Volume = %d;
%s
$synth.Speak([Console]::In.ReadToEnd())`

	selectVoice := ""
	if opts.Voice != "" && opts.Voice != "default" {
		selectVoice = fmt.Sprintf("$synth.SelectVoice('%s');", strings.ReplaceAll(opts.Voice, "'", "''"))
	}

	cmd := exec.Command("powershell", "-NoProfile", "-Command",
		fmt.Sprintf(script,
			sapiRate(opts.Rate),
			int(math.Round(opts.Volume*100)), // SAPI range 0 to 100
			selectVoice))
	cmd.Stdin = strings.NewReader(text)
	return cmd, nil
}

// sapiRate converts a rate multiplier to the SAPI range -10 to 10.
func sapiRate(rate float64) int {
	r := int(math.Round(rate*10)) - 10
	if r < -10 {
		return -10
	}
	if r > 10 {
		return 10
	}
	return r
}

func (s *SAPIEngine) GetAvailableVoices() ([]string, error) {
	script := `Add-Type -AssemblyName System.Speech;
(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | ForEach-Object { $_.VoiceInfo.Name }`
	output, err := exec.Command("powershell", "-NoProfile", "-Command", script).Output()
	if err != nil {
		return nil, err
	}
	voices := make([]string, 0)
	for _, line := range strings.Split(string(output), "\n") {
		if v := strings.TrimSpace(line); v != "" {
			voices = append(voices, v)
		}
	}
	return voices, nil
}

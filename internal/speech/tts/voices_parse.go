package tts

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var sayColumns = regexp.MustCompile(`\s{2,}`)

// parseSayVoices reads the output of `say -v ?`, one voice per line:
// "Name    lang_CC    # sample sentence". Names may contain single spaces.
func parseSayVoices(output string) []string {
	voices := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name := strings.TrimSpace(sayColumns.Split(line, 2)[0])
		if name != "" {
			voices = append(voices, name)
		}
	}
	return voices
}

// parseESpeakVoices reads the table printed by `espeak --voices`:
// "Pty Language Age/Gender VoiceName File Other Languages". The voice name
// is the fourth column.
func parseESpeakVoices(output string) []string {
	return lo.FilterMap(strings.Split(output, "\n"), func(line string, _ int) (string, bool) {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] == "Pty" {
			return "", false
		}
		return fields[3], true
	})
}

// parseESpeakVoiceIDs returns the language and voice name columns of
// `espeak --voices`.
func parseESpeakVoiceIDs(output string) []string {
	return lo.FlatMap(strings.Split(output, "\n"), func(line string, _ int) []string {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] == "Pty" {
			return nil
		}
		return []string{fields[1], fields[3]}
	})
}

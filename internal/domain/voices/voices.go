// Package voices holds the static language to voice-name table the popup
// offers. The table is a versioned YAML document; the built-in copy is
// embedded and another can be loaded from disk.
package voices

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// SupportedVersion is the only table format version this build reads.
const SupportedVersion = 1

//go:embed voices.yaml
var builtin []byte

// Language is one entry of the table.
type Language struct {
	Label  string   `yaml:"label"`
	Voices []string `yaml:"voices"`
}

// Table is read-only after construction.
type Table struct {
	Version int        `yaml:"version"`
	Entries []Language `yaml:"languages"`
}

// Default returns the embedded table.
func Default() *Table {
	t, err := Parse(builtin)
	if err != nil {
		// the embedded document is part of the build
		panic(fmt.Sprintf("voices: embedded table: %v", err))
	}
	return t
}

// Load reads a table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice table %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a table document. Duplicate voice names within
// a language are collapsed, keeping the first occurrence.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse voice table: %w", err)
	}
	if t.Version != SupportedVersion {
		return nil, fmt.Errorf("unsupported voice table version %d", t.Version)
	}

	seen := make(map[string]bool, len(t.Entries))
	for i, l := range t.Entries {
		label := strings.TrimSpace(l.Label)
		if label == "" {
			return nil, fmt.Errorf("voice table entry %d has no label", i)
		}
		if seen[label] {
			return nil, fmt.Errorf("voice table label %q listed twice", label)
		}
		seen[label] = true
		t.Entries[i].Label = label
		t.Entries[i].Voices = lo.Uniq(l.Voices)
	}
	return &t, nil
}

// Languages returns the labels in table order.
func (t *Table) Languages() []string {
	return lo.Map(t.Entries, func(l Language, _ int) string { return l.Label })
}

// Voices returns the voice names for a label, or nil when the label is unknown.
func (t *Table) Voices(label string) []string {
	l, ok := lo.Find(t.Entries, func(l Language) bool { return l.Label == label })
	if !ok {
		return nil
	}
	return append([]string(nil), l.Voices...)
}

// LanguageOf finds the label whose list contains voice.
func (t *Table) LanguageOf(voice string) (string, bool) {
	if voice == "" {
		return "", false
	}
	l, ok := lo.Find(t.Entries, func(l Language) bool { return lo.Contains(l.Voices, voice) })
	return l.Label, ok
}

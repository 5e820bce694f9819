package voices

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTable(t *testing.T) {
	table := Default()

	langs := table.Languages()
	if len(langs) != 18 {
		t.Fatalf("len(Languages()) = %d, want 18", len(langs))
	}
	if langs[0] != "English-US" || langs[len(langs)-1] != "Cantonese-HK" {
		t.Errorf("languages not in table order: first=%q last=%q", langs[0], langs[len(langs)-1])
	}

	us := table.Voices("English-US")
	if len(us) != 4 {
		t.Fatalf("English-US voices = %v", us)
	}
	if us[3] != "Google US English (en-US)" {
		t.Errorf("voice order changed: %v", us)
	}

	if got := table.Voices("Klingon"); got != nil {
		t.Errorf("Voices(unknown) = %v, want nil", got)
	}
}

func TestVoicesReturnsCopy(t *testing.T) {
	table := Default()
	v := table.Voices("German")
	v[0] = "changed"
	if table.Voices("German")[0] == "changed" {
		t.Error("Voices exposed the table's backing slice")
	}
}

func TestLanguageOf(t *testing.T) {
	table := Default()

	tests := []struct {
		voice string
		label string
		ok    bool
	}{
		{"Google UK English Male (en-GB)", "English-UK", true},
		{"Google 日本語 (ja-JP)", "Japanese", true},
		{"", "", false},
		{"espeak-en", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.voice, func(t *testing.T) {
			label, ok := table.LanguageOf(tt.voice)
			if ok != tt.ok || label != tt.label {
				t.Errorf("LanguageOf(%q) = %q, %v, want %q, %v", tt.voice, label, ok, tt.label, tt.ok)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		voices  int
	}{
		{
			name:   "duplicates collapsed",
			doc:    "version: 1\nlanguages:\n  - label: Hindi\n    voices: [a, a, b]\n",
			voices: 2,
		},
		{
			name:    "wrong version",
			doc:     "version: 2\nlanguages: []\n",
			wantErr: true,
		},
		{
			name:    "missing label",
			doc:     "version: 1\nlanguages:\n  - voices: [a]\n",
			wantErr: true,
		},
		{
			name:    "repeated label",
			doc:     "version: 1\nlanguages:\n  - label: x\n  - label: x\n",
			wantErr: true,
		},
		{
			name:    "not yaml",
			doc:     "version: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(table.Entries[0].Voices) != tt.voices {
				t.Errorf("voices = %v, want %d entries", table.Entries[0].Voices, tt.voices)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.yaml")
	doc := "version: 1\nlanguages:\n  - label: Welsh\n    voices: [cy]\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := table.Languages(); len(got) != 1 || got[0] != "Welsh" {
		t.Errorf("Languages() = %v", got)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

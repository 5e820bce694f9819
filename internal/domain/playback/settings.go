package playback

// Settings keys as persisted by the settings store.
const (
	KeyRate               = "rate"
	KeyPitch              = "pitch"
	KeyVolume             = "volume"
	KeySelectedVoice      = "selectedVoice"
	KeyAutoDetectLanguage = "autoDetectLanguage"

	// KeyLegacySpeed is the name older popups wrote the rate under. It is only
	// read when KeyRate is absent.
	KeyLegacySpeed = "speed"
)

const (
	MinRate   = 0.1
	MaxRate   = 10.0
	MinPitch  = 0.0
	MaxPitch  = 2.0
	MinVolume = 0.0
	MaxVolume = 1.0
)

// Settings are the user's speech preferences, read before every utterance.
type Settings struct {
	Rate               float64 `json:"rate" mapstructure:"rate"`
	Pitch              float64 `json:"pitch" mapstructure:"pitch"`
	Volume             float64 `json:"volume" mapstructure:"volume"`
	SelectedVoice      string  `json:"selectedVoice" mapstructure:"selectedVoice"`
	AutoDetectLanguage bool    `json:"autoDetectLanguage" mapstructure:"autoDetectLanguage"`
}

// DefaultSettings are written on first install and substituted for missing fields.
func DefaultSettings() Settings {
	return Settings{
		Rate:               1.0,
		Pitch:              1.0,
		Volume:             1.0,
		SelectedVoice:      "",
		AutoDetectLanguage: true,
	}
}

// Clamped returns a copy with every numeric field inside the engine's range.
// A non-positive rate falls back to the default.
func (s Settings) Clamped() Settings {
	if s.Rate <= 0 {
		s.Rate = DefaultSettings().Rate
	}
	s.Rate = clamp(s.Rate, MinRate, MaxRate)
	s.Pitch = clamp(s.Pitch, MinPitch, MaxPitch)
	s.Volume = clamp(s.Volume, MinVolume, MaxVolume)
	return s
}

// Map flattens the settings into store keys.
func (s Settings) Map() map[string]any {
	return map[string]any{
		KeyRate:               s.Rate,
		KeyPitch:              s.Pitch,
		KeyVolume:             s.Volume,
		KeySelectedVoice:      s.SelectedVoice,
		KeyAutoDetectLanguage: s.AutoDetectLanguage,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

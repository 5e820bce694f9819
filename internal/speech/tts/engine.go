package tts

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type EngineType string

const (
	EngineTypeMock          EngineType = "mock"
	EngineTypeESpeak        EngineType = "espeak"
	EngineTypeSAPI          EngineType = "sapi"         // Windows only
	EngineTypeAVFoundation  EngineType = "avfoundation" // macOS only
	EngineTypeGoogleClassic EngineType = "googleclassic"
	EngineTypeAuto          EngineType = "auto" // first one that starts, in platform preference order
)

func (e EngineType) String() string {
	return string(e)
}

// Config selects and parameterises an engine.
type Config struct {
	Type      string
	CachePath string
}

type engineEntry struct {
	kind EngineType
	// platforms the engine runs on, empty for all
	platforms []string
	// ready reports whether it is worth trying on this host
	ready func() bool
	build func(Config) (Engine, error)
}

var engines = []engineEntry{
	{
		kind:  EngineTypeGoogleClassic,
		ready: hasGoogleCredentials,
		build: func(c Config) (Engine, error) { return wrap(newGoogleClassicEngine(c.CachePath)) },
	},
	{
		kind:      EngineTypeSAPI,
		platforms: []string{"windows"},
		build:     func(Config) (Engine, error) { return wrap(newSAPIEngine()) },
	},
	{
		kind:      EngineTypeAVFoundation,
		platforms: []string{"darwin"},
		build:     func(Config) (Engine, error) { return wrap(newAVFoundationEngine()) },
	},
	{
		kind:  EngineTypeESpeak,
		ready: func() bool { _, err := lookPathAny(espeakBinaries...); return err == nil },
		build: func(Config) (Engine, error) { return wrap(newESpeakEngine()) },
	},
	{
		kind:  EngineTypeMock,
		build: func(Config) (Engine, error) { return NewMockEngine(WithSimulatedPlayback()), nil },
	},
}

// wrap keeps a failed constructor's typed nil out of the Engine interface.
func wrap[E Engine](e E, err error) (Engine, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s engineEntry) onThisPlatform() bool {
	return len(s.platforms) == 0 || lo.Contains(s.platforms, runtime.GOOS)
}

// NewEngine creates the engine named by config.Type. With auto (or no type)
// every real engine available on the platform is tried in preference order;
// the mock is never picked automatically.
func NewEngine(config Config) (Engine, error) {
	if config.Type == "" || config.Type == EngineTypeAuto.String() {
		return newAutoEngine(config)
	}

	entry, ok := lo.Find(engines, func(s engineEntry) bool { return s.kind.String() == config.Type })
	if !ok {
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
	if !entry.onThisPlatform() {
		return nil, fmt.Errorf("%s engine is not supported on %s", entry.kind, runtime.GOOS)
	}
	return entry.build(config)
}

func newAutoEngine(config Config) (Engine, error) {
	var errs []error
	for _, entry := range engines {
		if entry.kind == EngineTypeMock || !entry.onThisPlatform() {
			continue
		}
		if entry.ready != nil && !entry.ready() {
			continue
		}
		engine, err := entry.build(config)
		if err == nil {
			logrus.WithField("engine", entry.kind).Debug("selected tts engine")
			return engine, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", entry.kind, err))
	}
	return nil, fmt.Errorf("no tts engine could be started: %w", errors.Join(errs...))
}

// GetAvailableEngines returns engines available on the current platform
func GetAvailableEngines() []EngineType {
	usable := lo.Filter(engines, func(s engineEntry, _ int) bool {
		return s.onThisPlatform() && (s.ready == nil || s.ready())
	})
	return lo.Map(usable, func(s engineEntry, _ int) EngineType { return s.kind })
}

// IsKnownEngine reports whether name is an engine type this build understands.
func IsKnownEngine(name string) bool {
	return name == EngineTypeAuto.String() ||
		lo.ContainsBy(engines, func(s engineEntry) bool { return s.kind.String() == name })
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}

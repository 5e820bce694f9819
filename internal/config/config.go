// Package config resolves process configuration. Environment variables
// give the base values and command-line flags bound into viper override
// them. User playback settings are not configuration; see package settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	gap "github.com/muesli/go-app-paths"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const appName = "readaloud"

// viper keys the command line binds its flags to.
const (
	KeyAddr        = "addr"
	KeyEngine      = "engine"
	KeySettingsDir = "settings-dir"
	KeyVoices      = "voices"
	KeyDebug       = "debug"
)

// Config is the process configuration.
type Config struct {
	// Addr is where the daemon serves the bridge and clients dial it.
	Addr        string `env:"READALOUD_ADDR" envDefault:"127.0.0.1:7345"`
	Engine      string `env:"READALOUD_ENGINE" envDefault:"auto"`
	SettingsDir string `env:"READALOUD_SETTINGS_DIR"`
	// VoicesFile replaces the built-in voice table when set.
	VoicesFile string `env:"READALOUD_VOICES"`
	CacheDir   string `env:"READALOUD_CACHE_DIR"`
	Debug      bool   `env:"READALOUD_DEBUG"`
}

// Load reads the environment, applies flag overrides and fills in the
// platform directories.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}
	applyOverrides(&cfg)

	scope := gap.NewScope(gap.User, appName)
	if cfg.SettingsDir == "" {
		dirs, err := scope.ConfigDirs()
		if err != nil || len(dirs) == 0 {
			return Config{}, fmt.Errorf("could not find a configuration directory: %w", err)
		}
		cfg.SettingsDir = dirs[0]
	}
	if cfg.CacheDir == "" {
		dir, err := scope.CacheDir()
		if err != nil {
			dir = filepath.Join(os.TempDir(), appName)
		}
		cfg.CacheDir = dir
	}
	return cfg, nil
}

// applyOverrides copies every flag the user actually passed.
func applyOverrides(cfg *Config) {
	if viper.IsSet(KeyAddr) {
		cfg.Addr = viper.GetString(KeyAddr)
	}
	if viper.IsSet(KeyEngine) {
		cfg.Engine = viper.GetString(KeyEngine)
	}
	if viper.IsSet(KeySettingsDir) {
		cfg.SettingsDir = viper.GetString(KeySettingsDir)
	}
	if viper.IsSet(KeyVoices) {
		cfg.VoicesFile = viper.GetString(KeyVoices)
	}
	if viper.IsSet(KeyDebug) {
		cfg.Debug = viper.GetBool(KeyDebug)
	}
}

// SetupLogging configures the package-level logrus logger.
func SetupLogging(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.InfoLevel)
}

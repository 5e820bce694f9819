package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("READALOUD_SETTINGS_DIR", "/tmp/readaloud-settings")
	t.Setenv("READALOUD_CACHE_DIR", "/tmp/readaloud-cache")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != "127.0.0.1:7345" || cfg.Engine != "auto" || cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SettingsDir != "/tmp/readaloud-settings" || cfg.CacheDir != "/tmp/readaloud-cache" {
		t.Errorf("dirs = %q, %q", cfg.SettingsDir, cfg.CacheDir)
	}
}

func TestLoadEnvironment(t *testing.T) {
	viper.Reset()
	t.Setenv("READALOUD_ADDR", "0.0.0.0:9000")
	t.Setenv("READALOUD_ENGINE", "mock")
	t.Setenv("READALOUD_DEBUG", "true")
	t.Setenv("READALOUD_SETTINGS_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" || cfg.Engine != "mock" || !cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Setenv("READALOUD_ENGINE", "espeak")
	t.Setenv("READALOUD_SETTINGS_DIR", t.TempDir())
	viper.Set(KeyEngine, "mock")
	viper.Set(KeyVoices, "/etc/voices.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != "mock" || cfg.VoicesFile != "/etc/voices.yaml" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsBadBool(t *testing.T) {
	viper.Reset()
	t.Setenv("READALOUD_DEBUG", "sometimes")

	if _, err := Load(); err == nil {
		t.Error("Load() should reject an unparsable READALOUD_DEBUG")
	}
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	SetupLogging(true)
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v", logrus.GetLevel())
	}
	SetupLogging(false)
	if logrus.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v", logrus.GetLevel())
	}
}

// Package settings persists the user's playback settings as a flat YAML
// record. The record is read on demand and written field by field as the
// user edits it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"readaloud/internal/domain/playback"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// FileName is the settings record inside the settings directory.
const FileName = "settings.yaml"

// ErrUnknownKey is returned by Set for keys outside the settings record.
var ErrUnknownKey = errors.New("unknown settings key")

// Keys lists every key of the record.
var Keys = []string{
	playback.KeyRate,
	playback.KeyPitch,
	playback.KeyVolume,
	playback.KeySelectedVoice,
	playback.KeyAutoDetectLanguage,
}

// Store is the persistent key-value settings record.
type Store interface {
	// Load returns the current settings with defaults for missing fields.
	Load() (playback.Settings, error)
	// Set persists a single field immediately.
	Set(key string, value any) error
}

// ViperStore keeps the record in a YAML file through a private viper instance.
// Viper folds key case, so selectedVoice is written as selectedvoice; lookups
// are case-insensitive either way.
type ViperStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
	// modTime and size of the file when it was last read
	modTime time.Time
	size    int64
}

// Open prepares the store in dir, reading the record if one exists.
func Open(dir string) (*ViperStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create settings dir: %w", err)
	}

	s := &ViperStore{
		v:    viper.New(),
		path: filepath.Join(dir, FileName),
	}
	s.v.SetConfigFile(s.path)
	s.v.SetConfigType("yaml")

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", s.path, err)
	}
	return s, nil
}

// Path is the settings file location.
func (s *ViperStore) Path() string {
	return s.path
}

// Installed reports whether the record has been written before.
func (s *ViperStore) Installed() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Install writes the default record on first run. It reports whether it did.
func (s *ViperStore) Install() (bool, error) {
	if s.Installed() {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(playback.DefaultSettings().Map()); err != nil {
		return false, fmt.Errorf("failed to write default settings: %w", err)
	}
	logrus.WithField("path", s.path).Info("installed default settings")
	return true, nil
}

// Load picks up writes made by other processes since the last read.
func (s *ViperStore) Load() (playback.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		logrus.WithError(err).Warn("failed to re-read settings, keeping the last values")
	}

	out := playback.DefaultSettings()
	switch {
	case s.v.IsSet(playback.KeyRate):
		out.Rate = s.v.GetFloat64(playback.KeyRate)
	case s.v.IsSet(playback.KeyLegacySpeed):
		// records written by the old popup only carry speed
		logrus.WithField("path", s.path).Warn("settings use legacy key speed; save the rate to migrate it")
		out.Rate = s.v.GetFloat64(playback.KeyLegacySpeed)
	}
	if s.v.IsSet(playback.KeyPitch) {
		out.Pitch = s.v.GetFloat64(playback.KeyPitch)
	}
	if s.v.IsSet(playback.KeyVolume) {
		out.Volume = s.v.GetFloat64(playback.KeyVolume)
	}
	if s.v.IsSet(playback.KeySelectedVoice) {
		out.SelectedVoice = s.v.GetString(playback.KeySelectedVoice)
	}
	if s.v.IsSet(playback.KeyAutoDetectLanguage) {
		out.AutoDetectLanguage = s.v.GetBool(playback.KeyAutoDetectLanguage)
	}
	return out, nil
}

func (s *ViperStore) Set(key string, value any) error {
	if !lo.Contains(Keys, key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(map[string]any{key: value}); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// write merges values into the record on disk. Values go into viper's config
// layer, never its override layer, so later file contents still win.
func (s *ViperStore) write(values map[string]any) error {
	s.modTime = time.Time{}
	if err := s.refresh(); err != nil {
		return err
	}
	if err := s.v.MergeConfigMap(values); err != nil {
		return err
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return err
	}
	s.stamp()
	return nil
}

// refresh re-reads the file when it changed since the last read. Callers
// hold mu.
func (s *ViperStore) refresh() error {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return nil
	}
	if err := s.v.ReadInConfig(); err != nil {
		return err
	}
	s.modTime, s.size = info.ModTime(), info.Size()
	return nil
}

func (s *ViperStore) stamp() {
	if info, err := os.Stat(s.path); err == nil {
		s.modTime, s.size = info.ModTime(), info.Size()
	}
}

// Watch calls fn with the reloaded settings whenever the file changes on
// disk, until ctx is done. Writes made through Set are reported too.
func (s *ViperStore) Watch(ctx context.Context, fn func(playback.Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	// editors replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				if err := s.reload(); err != nil {
					logrus.WithError(err).Warn("failed to reload settings")
					continue
				}
				settings, _ := s.Load()
				fn(settings)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Warn("settings watcher error")
			}
		}
	}()
	return nil
}

func (s *ViperStore) reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.v.ReadInConfig(); err != nil {
		return err
	}
	s.stamp()
	return nil
}

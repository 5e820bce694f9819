package tts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"readaloud/internal/domain/playback"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

const (
	googleDefaultVoice = "en-GB-Chirp3-HD-Umbriel"
	googleChunkLimit   = 4800 // bytes, a little under the 5000 byte request limit
)

// GoogleClassicEngine synthesizes through Google Cloud Text-to-Speech, caches
// the MP3 chunks on disk and plays them through the beep speaker.
type GoogleClassicEngine struct {
	client       *texttospeech.Client
	ctx          context.Context
	cacheRootDir string

	mu         sync.Mutex
	current    *googleUtterance
	sampleRate beep.SampleRate
}

type googleUtterance struct {
	ctrl    *beep.Ctrl
	closers []beep.StreamSeekCloser
	onEvent EventHandler
	once    sync.Once
}

func newGoogleClassicEngine(cacheDir string) (*GoogleClassicEngine, error) {
	if cacheDir == "" {
		return nil, fmt.Errorf("google engine needs a cache directory")
	}

	ctx := context.Background()
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	return &GoogleClassicEngine{
		client:       client,
		ctx:          ctx,
		cacheRootDir: cacheDir,
	}, nil
}

func (g *GoogleClassicEngine) Speak(text string, opts Options, onEvent EventHandler) error {
	paths, err := g.synthesize(text, opts)
	if err != nil {
		return err
	}

	if err := g.Stop(); err != nil {
		logrus.WithError(err).Warn("failed to stop previous google utterance")
	}

	u := &googleUtterance{onEvent: onEvent}
	streamers := make([]beep.Streamer, 0, len(paths)+1)
	for _, path := range paths {
		s, err := g.open(path, u)
		if err != nil {
			u.close()
			return err
		}
		streamers = append(streamers, s)
	}
	// the callback runs inside the speaker lock
	streamers = append(streamers, beep.Callback(func() {
		go g.finish(u, playback.EventEnd, nil)
	}))
	u.ctrl = &beep.Ctrl{Streamer: beep.Seq(streamers...)}

	g.mu.Lock()
	g.current = u
	g.mu.Unlock()

	speaker.Play(u.ctrl)
	emit(onEvent, playback.EventStart, nil)
	return nil
}

// open decodes one cached chunk, initialising the speaker with the first
// sample rate seen and resampling later chunks to match it.
func (g *GoogleClassicEngine) open(path string, u *googleUtterance) (beep.Streamer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cached MP3 %s: %w", path, err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3 %s: %w", path, err)
	}
	u.closers = append(u.closers, streamer)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sampleRate == 0 {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return nil, fmt.Errorf("failed to initialise speaker: %w", err)
		}
		g.sampleRate = format.SampleRate
	}
	if format.SampleRate != g.sampleRate {
		return beep.Resample(4, format.SampleRate, g.sampleRate, streamer), nil
	}
	return streamer, nil
}

// synthesize returns the cached chunk files for text, generating any that are missing.
func (g *GoogleClassicEngine) synthesize(text string, opts Options) ([]string, error) {
	voice := googleVoice(opts.Voice)

	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	// Chirp voices don't support speakingRate/pitch
	if !strings.Contains(strings.ToLower(voice), "chirp") {
		audioCfg.SpeakingRate = clampFloat(opts.Rate, 0.25, 4.0)
		audioCfg.Pitch = clampFloat((opts.Pitch-1)*20, -20, 20)
		audioCfg.VolumeGainDb = volumeGainDb(opts.Volume)
	}

	prefix := chunkPrefix(text, voice, opts)

	chunks := splitIntoChunks(text, googleChunkLimit)
	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		path := filepath.Join(g.cacheRootDir, fmt.Sprintf("%s_%d.mp3", prefix, i))
		paths = append(paths, path)

		if _, err := os.Stat(path); err == nil {
			continue
		}

		req := &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: languageCode(voice),
				Name:         voice,
			},
			AudioConfig: audioCfg,
		}
		resp, err := g.client.SynthesizeSpeech(g.ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d: %w", i, err)
		}
		if err := os.WriteFile(path, resp.AudioContent, 0644); err != nil {
			return nil, fmt.Errorf("failed to write MP3 chunk %d to %s: %w", i, path, err)
		}
		logrus.WithFields(logrus.Fields{"chunk": i + 1, "of": len(chunks), "path": path}).Debug("cached audio chunk")
	}
	return paths, nil
}

func (g *GoogleClassicEngine) finish(u *googleUtterance, t playback.EventType, err error) {
	u.once.Do(func() {
		g.mu.Lock()
		if g.current == u {
			g.current = nil
		}
		g.mu.Unlock()

		speaker.Lock()
		u.ctrl.Streamer = nil
		u.ctrl.Paused = false
		speaker.Unlock()

		u.close()
		emit(u.onEvent, t, err)
	})
}

func (u *googleUtterance) close() {
	for _, c := range u.closers {
		c.Close()
	}
}

func (g *GoogleClassicEngine) Stop() error {
	g.mu.Lock()
	u := g.current
	g.mu.Unlock()

	if u != nil {
		g.finish(u, playback.EventInterrupted, nil)
	}
	return nil
}

func (g *GoogleClassicEngine) Pause() error {
	return g.setPaused(true, playback.EventPause)
}

func (g *GoogleClassicEngine) Resume() error {
	return g.setPaused(false, playback.EventResume)
}

func (g *GoogleClassicEngine) setPaused(paused bool, t playback.EventType) error {
	g.mu.Lock()
	u := g.current
	g.mu.Unlock()
	if u == nil {
		return nil
	}

	speaker.Lock()
	changed := u.ctrl.Paused != paused
	u.ctrl.Paused = paused
	speaker.Unlock()

	if changed {
		emit(u.onEvent, t, nil)
	}
	return nil
}

func (g *GoogleClassicEngine) IsPlaying() bool {
	g.mu.Lock()
	u := g.current
	g.mu.Unlock()
	if u == nil {
		return false
	}
	speaker.Lock()
	defer speaker.Unlock()
	return !u.ctrl.Paused
}

func (g *GoogleClassicEngine) IsPaused() bool {
	g.mu.Lock()
	u := g.current
	g.mu.Unlock()
	if u == nil {
		return false
	}
	speaker.Lock()
	defer speaker.Unlock()
	return u.ctrl.Paused
}

func (g *GoogleClassicEngine) GetAvailableVoices() ([]string, error) {
	resp, err := g.client.ListVoices(g.ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, err
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

// GetCacheStats summarises the synthesized chunks kept on disk.
func (g *GoogleClassicEngine) GetCacheStats() (map[string]interface{}, error) {
	files, err := g.cachedChunks()
	if err != nil {
		return nil, err
	}
	size := lo.SumBy(files, func(f fs.FileInfo) int64 { return f.Size() })
	return map[string]interface{}{
		"cache_directory": g.cacheRootDir,
		"cached_files":    len(files),
		"total_size_mb":   float64(size) / (1 << 20),
	}, nil
}

// ClearCache deletes the cached chunks and leaves the directory in place.
func (g *GoogleClassicEngine) ClearCache() error {
	files, err := g.cachedChunks()
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if err := os.Remove(filepath.Join(g.cacheRootDir, f.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	logrus.WithField("removed", len(files)-len(errs)).Debug("cleared speech cache")
	return errors.Join(errs...)
}

func (g *GoogleClassicEngine) cachedChunks() ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(g.cacheRootDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache dir: %w", err)
	}
	return lo.FilterMap(entries, func(e fs.DirEntry, _ int) (fs.FileInfo, bool) {
		if e.IsDir() || filepath.Ext(e.Name()) != ".mp3" {
			return nil, false
		}
		info, err := e.Info()
		return info, err == nil
	}), nil
}

// languageCode takes the locale prefix of a Google voice name, "en-GB" for
// "en-GB-Chirp3-HD-Umbriel".
func languageCode(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

// volumeGainDb maps a 0-1 volume onto the API's -96 to 16 dB gain.
func volumeGainDb(volume float64) float64 {
	if volume <= 0 {
		return -96
	}
	return clampFloat(20*math.Log10(volume), -96, 16)
}

func clampFloat(v, low, high float64) float64 {
	return math.Max(low, math.Min(high, v))
}

// chunkPrefix names the cache files of one utterance; the same text and
// options always map to the same files.
func chunkPrefix(text, voice string, opts Options) string {
	key := fmt.Sprintf("%s|%s|%.2f|%.2f|%.2f", text, voice, opts.Rate, opts.Pitch, opts.Volume)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// splitIntoChunks cuts text into pieces of at most limit bytes without
// splitting a rune.
func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			// a single rune wider than limit
			_, cut = utf8.DecodeRuneInString(text)
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

var googleVoiceName = regexp.MustCompile(`^[a-z]{2,3}-[A-Z]{2,3}-`)

// googleVoice returns voice when it names a Cloud voice ("en-GB-Wavenet-A")
// and the default voice otherwise, so entries meant for other engines still
// speak.
func googleVoice(voice string) string {
	if !googleVoiceName.MatchString(voice) {
		if voice != "" && voice != "default" {
			logrus.WithField("voice", voice).Debug("not a cloud voice, using the default")
		}
		return googleDefaultVoice
	}
	return voice
}

package tts

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"readaloud/internal/domain/playback"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// commandBuilder returns the command that speaks text with opts applied.
type commandBuilder func(text string, opts Options) (*exec.Cmd, error)

// processEngine speaks each utterance with a child process. Pause and resume
// signal the process where the platform allows it.
type processEngine struct {
	name  string
	build commandBuilder
	// voices lists the names the engine accepts, nil to accept any
	voices func() ([]string, error)

	mutex   sync.Mutex
	current *utterance

	voicesOnce sync.Once
	installed  []string
}

type utterance struct {
	cmd     *exec.Cmd
	onEvent EventHandler
	stopped bool
	paused  bool
	done    chan struct{}
}

func (p *processEngine) Speak(text string, opts Options, onEvent EventHandler) error {
	cmd, err := p.build(text, p.withInstalledVoice(opts))
	if err != nil {
		return err
	}

	// last writer wins: the old process is gone before the new one starts
	if err := p.Stop(); err != nil {
		logrus.WithError(err).WithField("engine", p.name).Warn("failed to stop previous utterance")
	}

	u := &utterance{cmd: cmd, onEvent: onEvent, done: make(chan struct{})}

	p.mutex.Lock()
	if err := cmd.Start(); err != nil {
		p.mutex.Unlock()
		emit(onEvent, playback.EventError, err)
		return fmt.Errorf("%s failed to start: %w", p.name, err)
	}
	p.current = u
	p.mutex.Unlock()

	emit(onEvent, playback.EventStart, nil)
	go p.wait(u)
	return nil
}

// withInstalledVoice clears a voice the engine does not have, so the
// utterance is spoken in the engine's default voice instead of failing.
func (p *processEngine) withInstalledVoice(opts Options) Options {
	if opts.Voice == "" || opts.Voice == "default" || p.voices == nil {
		return opts
	}
	p.voicesOnce.Do(func() {
		list, err := p.voices()
		if err != nil {
			logrus.WithError(err).WithField("engine", p.name).Debug("could not list installed voices")
			return
		}
		p.installed = list
	})
	if p.installed == nil {
		return opts
	}
	if !lo.ContainsBy(p.installed, func(v string) bool { return strings.EqualFold(v, opts.Voice) }) {
		logrus.WithFields(logrus.Fields{"engine": p.name, "voice": opts.Voice}).Debug("voice not installed, using the default")
		opts.Voice = ""
	}
	return opts
}

func (p *processEngine) wait(u *utterance) {
	err := u.cmd.Wait()

	p.mutex.Lock()
	stopped := u.stopped
	if p.current == u {
		p.current = nil
	}
	p.mutex.Unlock()

	switch {
	case stopped:
		emit(u.onEvent, playback.EventInterrupted, nil)
	case err != nil:
		logrus.WithError(err).WithField("engine", p.name).Warn("speech process failed")
		emit(u.onEvent, playback.EventError, err)
	default:
		emit(u.onEvent, playback.EventEnd, nil)
	}
	close(u.done)
}

// Stop kills the running utterance and waits until its final event has been
// delivered. Stopping with nothing running is not an error.
func (p *processEngine) Stop() error {
	p.mutex.Lock()
	u := p.current
	if u == nil {
		p.mutex.Unlock()
		return nil
	}
	u.stopped = true
	p.current = nil
	p.mutex.Unlock()

	if err := u.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logrus.WithError(err).WithField("engine", p.name).Warn("failed to kill speech process")
	}
	<-u.done
	return nil
}

func (p *processEngine) Pause() error {
	p.mutex.Lock()
	u := p.current
	if u == nil || u.paused {
		p.mutex.Unlock()
		return nil
	}
	if err := pauseProcess(u.cmd.Process); err != nil {
		p.mutex.Unlock()
		return fmt.Errorf("%s pause: %w", p.name, err)
	}
	u.paused = true
	p.mutex.Unlock()

	emit(u.onEvent, playback.EventPause, nil)
	return nil
}

func (p *processEngine) Resume() error {
	p.mutex.Lock()
	u := p.current
	if u == nil || !u.paused {
		p.mutex.Unlock()
		return nil
	}
	if err := resumeProcess(u.cmd.Process); err != nil {
		p.mutex.Unlock()
		return fmt.Errorf("%s resume: %w", p.name, err)
	}
	u.paused = false
	p.mutex.Unlock()

	emit(u.onEvent, playback.EventResume, nil)
	return nil
}

func (p *processEngine) IsPlaying() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.current != nil && !p.current.paused
}

func (p *processEngine) IsPaused() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.current != nil && p.current.paused
}

// lookPathAny returns the first of names found on PATH.
func lookPathAny(names ...string) (string, error) {
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %v found in PATH: %w", names, exec.ErrNotFound)
}

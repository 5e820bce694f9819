//go:build windows

package tts

import (
	"errors"
	"os"
)

// Windows has no SIGSTOP/SIGCONT equivalent for an arbitrary child process.
var errPauseUnsupported = errors.New("pause is not supported for speech processes on Windows")

func pauseProcess(p *os.Process) error {
	return errPauseUnsupported
}

func resumeProcess(p *os.Process) error {
	return errPauseUnsupported
}

//go:build !windows

package tts

import "fmt"

func newSAPIEngine() (Engine, error) {
	return nil, fmt.Errorf("SAPI engine only supports Windows")
}

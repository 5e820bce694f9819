//go:build freebsd || linux || netbsd || openbsd || solaris || dragonfly

package selection

import "github.com/atotto/clipboard"

func usePrimarySelection() {
	clipboard.Primary = true
}

//go:build !(freebsd || linux || netbsd || openbsd || solaris || dragonfly)

package selection

// Only X11 and Wayland have a primary selection.
func usePrimarySelection() {}

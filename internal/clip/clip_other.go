//go:build !darwin && !windows && !linux

package clip

// New returns an in-memory backend; no native clipboard is supported here.
func New() Backend {
	return NewHeadless()
}

//go:build !linux

package capture

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedPlatform is returned by NewLinuxRawSocketSource on any
// platform other than Linux.
var ErrUnsupportedPlatform = errors.New("capture: raw socket capture is only implemented on linux")

// LinuxRawSocketSource is a stub on non-Linux platforms; NewLinuxRawSocketSource
// always fails. It exists so callers can reference the type without build tags.
type LinuxRawSocketSource struct{}

// NewLinuxRawSocketSource always fails on non-Linux platforms.
func NewLinuxRawSocketSource(ifName string) (*LinuxRawSocketSource, error) {
	return nil, fmt.Errorf("capture: open %q: %w", ifName, ErrUnsupportedPlatform)
}

// Next always fails; LinuxRawSocketSource has no Linux backing on this platform.
func (s *LinuxRawSocketSource) Next() ([]byte, time.Time, error) {
	return nil, time.Time{}, ErrUnsupportedPlatform
}

// Close is a no-op on this platform.
func (s *LinuxRawSocketSource) Close() error {
	return nil
}

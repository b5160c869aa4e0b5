// -*- Mode: Go; indent-tabs-mode: t -*-

//go:build !linux

package capture

import (
	"errors"

	"github.com/icarito/transwacom/internal/devices"
)

// ErrStopped is returned by ReadEvent once Close has been called.
var ErrStopped = errors.New("capture: device source stopped")

// NewLinuxSource is unavailable outside Linux; the evdev character
// device layer it reads from doesn't exist elsewhere (§1).
func NewLinuxSource(desc devices.Descriptor) (DeviceSource, error) {
	return nil, errors.New("capture: host device capture is only supported on linux")
}

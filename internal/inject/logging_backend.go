// -*- Mode: Go; indent-tabs-mode: t -*-

package inject

import (
	"github.com/icarito/transwacom/internal/devices"
	"github.com/icarito/transwacom/internal/logger"
)

// LoggingBackend is the stand-in VirtualDeviceBackend shipped in place
// of the out-of-scope uinput-equivalent facility (§1): it logs every
// operation instead of creating a real device, letting the rest of
// the injection pipeline run and be tested end to end against a real
// seam.
type LoggingBackend struct{}

// CreateDevice logs the creation and returns a loggingDevice.
func (LoggingBackend) CreateDevice(class devices.Class, name string, template Template) (VirtualDevice, error) {
	logger.Noticef("inject: (stub) would create %s virtual device %q with %d axes, %d buttons",
		class, name, len(template.Axes), len(template.Buttons))
	return &loggingDevice{class: class, name: name}, nil
}

type loggingDevice struct {
	class devices.Class
	name  string
}

func (d *loggingDevice) WriteEvent(evType, evCode, value int) error {
	logger.Debugf("inject: (stub) %s %q write type=%d code=%d value=%d", d.class, d.name, evType, evCode, value)
	return nil
}

func (d *loggingDevice) Sync() error {
	logger.Debugf("inject: (stub) %s %q sync", d.class, d.name)
	return nil
}

func (d *loggingDevice) Close() error {
	logger.Debugf("inject: (stub) %s %q close", d.class, d.name)
	return nil
}

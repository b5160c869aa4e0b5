// -*- Mode: Go; indent-tabs-mode: t -*-

package devicectl

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// dbusBackend is the generic input-enable toggle of §4.5: a D-Bus call
// to the desktop's input-settings service, mirroring the way
// original_source/device_detector.py shells out to a desktop-agnostic
// toggle before falling back to a tool-specific one.
type dbusBackend struct{}

const (
	inputSettingsDest = "org.transwacom.InputSettings"
	inputSettingsPath = "/org/transwacom/InputSettings"
	inputSettingsIfc  = inputSettingsDest + ".Device"
)

func (b *dbusBackend) name() string { return "dbus" }

func (b *dbusBackend) setEnabled(devicePath string, enabled bool) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("devicectl: dbus session bus: %w", err)
	}
	obj := conn.Object(inputSettingsDest, dbus.ObjectPath(inputSettingsPath))
	call := obj.Call(inputSettingsIfc+".SetEnabled", 0, devicePath, enabled)
	return call.Err
}

func (b *dbusBackend) setRelativeMode(devicePath string, relative bool) (string, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return "", fmt.Errorf("devicectl: dbus session bus: %w", err)
	}
	obj := conn.Object(inputSettingsDest, dbus.ObjectPath(inputSettingsPath))

	var previous string
	if err := obj.Call(inputSettingsIfc+".GetMode", 0, devicePath).Store(&previous); err != nil {
		return "", fmt.Errorf("devicectl: dbus GetMode: %w", err)
	}

	mode := "absolute"
	if relative {
		mode = "relative"
	}
	if call := obj.Call(inputSettingsIfc+".SetMode", 0, devicePath, mode); call.Err != nil {
		return "", call.Err
	}
	return previous, nil
}

func (b *dbusBackend) setMode(devicePath string, mode string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("devicectl: dbus session bus: %w", err)
	}
	obj := conn.Object(inputSettingsDest, dbus.ObjectPath(inputSettingsPath))
	call := obj.Call(inputSettingsIfc+".SetMode", 0, devicePath, mode)
	return call.Err
}

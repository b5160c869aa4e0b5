// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2024 TransWacom Contributors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package inject implements the consumer-side injection pipeline
// (§4.4): routing received event batches to a per-device-class virtual
// device, translating wire codes back to (type, code) pairs and
// replaying them, grounded on
// original_source/consumer_device_emulation.py's
// WacomVirtualDevice/JoystickVirtualDevice.
//
// The virtual-device facility itself (uinput or equivalent) is the
// out-of-scope external collaborator named in §1; this package defines
// the VirtualDeviceBackend seam and ships only a logging stub against
// it, the same "interface only" scoping applied to capture's
// DeviceSource.
package inject

import (
	"fmt"

	"github.com/icarito/transwacom/internal/devices"
	"github.com/icarito/transwacom/internal/events"
	"github.com/icarito/transwacom/internal/logger"
	"github.com/icarito/transwacom/internal/wire"
)

// AxisRange is one ABS_* axis's inclusive value range in a capability
// template.
type AxisRange struct {
	Code string
	Min  int
	Max  int
}

// Template describes the capability set a VirtualDevice must expose
// for one device class (§4.4).
type Template struct {
	Axes    []AxisRange
	Buttons []string
}

// WacomTemplate is the Wacom-class capability template of §4.4.
var WacomTemplate = Template{
	Axes: []AxisRange{
		{Code: "ABS_X", Min: 0, Max: 15360},
		{Code: "ABS_Y", Min: 0, Max: 10240},
		{Code: "ABS_PRESSURE", Min: 0, Max: 2047},
		{Code: "ABS_TILT_X", Min: -64, Max: 63},
		{Code: "ABS_TILT_Y", Min: -64, Max: 63},
		{Code: "ABS_DISTANCE", Min: 0, Max: 63},
	},
	Buttons: []string{"BTN_TOOL_PEN", "BTN_TOOL_RUBBER", "BTN_TOUCH", "BTN_STYLUS", "BTN_STYLUS2"},
}

// JoystickTemplate is the gamepad-class capability template of §4.4.
var JoystickTemplate = Template{
	Axes: []AxisRange{
		{Code: "ABS_X", Min: -32768, Max: 32767},
		{Code: "ABS_Y", Min: -32768, Max: 32767},
		{Code: "ABS_RX", Min: -32768, Max: 32767},
		{Code: "ABS_RY", Min: -32768, Max: 32767},
		{Code: "ABS_Z", Min: 0, Max: 255},
		{Code: "ABS_RZ", Min: 0, Max: 255},
		{Code: "ABS_HAT0X", Min: -1, Max: 1},
		{Code: "ABS_HAT0Y", Min: -1, Max: 1},
	},
	Buttons: []string{
		"BTN_A", "BTN_B", "BTN_X", "BTN_Y",
		"BTN_TL", "BTN_TR", "BTN_TL2", "BTN_TR2",
		"BTN_SELECT", "BTN_START", "BTN_MODE", "BTN_THUMBL", "BTN_THUMBR",
	},
}

// TemplateFor returns the capability template for class, and whether
// one is defined; §4.4 only names templates for Wacom and joystick
// classes.
func TemplateFor(class devices.Class) (Template, bool) {
	switch class {
	case devices.ClassWacom:
		return WacomTemplate, true
	case devices.ClassJoystick:
		return JoystickTemplate, true
	default:
		return Template{}, false
	}
}

// ErrNoTemplate is returned when a device_type has no known
// capability template.
var ErrNoTemplate = fmt.Errorf("inject: no capability template for device class")

// VirtualDevice is one emulated input device, created from a Template.
type VirtualDevice interface {
	// WriteEvent replays one decoded (type, code, value) triple.
	WriteEvent(evType, evCode, value int) error
	// Sync emits the synthesis pulse that closes out a batch (§4.4,
	// step 3).
	Sync() error
	// Close releases the virtual device.
	Close() error
}

// VirtualDeviceBackend creates VirtualDevices for a capability
// template. It is the out-of-scope external collaborator's seam
// (§1) — production deployments plug in a uinput-backed
// implementation; this module ships only the LoggingBackend stub.
type VirtualDeviceBackend interface {
	CreateDevice(class devices.Class, name string, template Template) (VirtualDevice, error)
}

// Router maps each device_type it sees to a lazily created
// VirtualDevice and replays event batches onto it (§4.4).
type Router struct {
	backend VirtualDeviceBackend
	devs    map[devices.Class]VirtualDevice
}

// NewRouter builds a Router over backend.
func NewRouter(backend VirtualDeviceBackend) *Router {
	return &Router{backend: backend, devs: make(map[devices.Class]VirtualDevice)}
}

// HandleBatch processes one received event batch: creating the
// target VirtualDevice on first use, replaying each event, and
// emitting the closing sync pulse.
//
// Creation failure is returned to the caller. HandleBatch does not
// close any session and keeps no record of the failure: the next
// batch for the same class tries creation again.
func (r *Router) HandleBatch(batch wire.EventBatch) error {
	class := devices.Class(batch.DeviceType)

	dev, ok := r.devs[class]
	if !ok {
		template, known := TemplateFor(class)
		if !known {
			return fmt.Errorf("%w: %s", ErrNoTemplate, batch.DeviceType)
		}
		created, err := r.backend.CreateDevice(class, batch.DeviceType, template)
		if err != nil {
			return fmt.Errorf("inject: cannot create virtual device for %s: %w", batch.DeviceType, err)
		}
		r.devs[class] = created
		dev = created
	}

	for _, ev := range batch.Events {
		evType, evCode, ok := events.FromWireCode(ev.Code)
		if !ok {
			logger.Noticef("inject: dropping event with unrecognised code %q", ev.Code)
			continue
		}
		if err := dev.WriteEvent(evType, evCode, ev.Value); err != nil {
			return fmt.Errorf("inject: write event to %s device: %w", batch.DeviceType, err)
		}
	}

	return dev.Sync()
}

// Close releases every VirtualDevice the router has created.
func (r *Router) Close() error {
	var firstErr error
	for class, dev := range r.devs {
		if err := dev.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("inject: closing %s device: %w", class, err)
		}
	}
	r.devs = make(map[devices.Class]VirtualDevice)
	return firstErr
}

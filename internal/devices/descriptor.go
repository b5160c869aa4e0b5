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

// Package devices implements the DeviceDescriptor data model (§3),
// device enumeration and the vendor/product name lookup, grounded on
// original_source/device_detector.py.
package devices

import "github.com/icarito/transwacom/internal/wire"

// Class is the closed device_type alphabet (§3).
type Class string

const (
	ClassWacom    Class = "wacom"
	ClassJoystick Class = "joystick"
	ClassGeneric  Class = "generic"
)

// Known capability names (§3).
const (
	CapPressure      = "pressure"
	CapTilt          = "tilt"
	CapProximity     = "proximity"
	CapStylusButtons = "stylus_buttons"
	CapEraser        = "eraser"
	CapLeftStick     = "left_stick"
	CapRightStick    = "right_stick"
	CapTriggers      = "triggers"
	CapDpad          = "dpad"
)

// Descriptor describes a physical input device (§3). It is immutable
// once constructed; re-enumeration produces new values rather than
// mutating existing ones.
type Descriptor struct {
	Class        Class
	Path         string
	Name         string
	Capabilities []string
	VendorID     string
	ProductID    string
}

// ToWire converts a Descriptor to its handshake wire representation.
func (d Descriptor) ToWire() wire.DeviceInfo {
	return wire.DeviceInfo{
		Type:         string(d.Class),
		Path:         d.Path,
		Name:         d.Name,
		Capabilities: append([]string(nil), d.Capabilities...),
		VendorID:     d.VendorID,
		ProductID:    d.ProductID,
	}
}

// FromWire converts a handshake's device entry back to a Descriptor.
func FromWire(info wire.DeviceInfo) Descriptor {
	return Descriptor{
		Class:        Class(info.Type),
		Path:         info.Path,
		Name:         info.Name,
		Capabilities: append([]string(nil), info.Capabilities...),
		VendorID:     info.VendorID,
		ProductID:    info.ProductID,
	}
}

// HasCapability reports whether capability is present on the descriptor.
func (d Descriptor) HasCapability(capability string) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

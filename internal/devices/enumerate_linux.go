// -*- Mode: Go; indent-tabs-mode: t -*-

//go:build linux

package devices

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	evdev "github.com/gvalkov/golang-evdev"

	"github.com/icarito/transwacom/internal/logger"
)

// defaultGlob matches the Linux evdev character devices, mirroring
// original_source/device_detector.py's scan of /dev/input/event*.
const defaultGlob = "/dev/input/event*"

// Enumerate lists the local input devices matching glob (defaultGlob
// when empty), classifying each one the way
// original_source/host_input.py's InputCapture._get_device_type and
// get_device_info do.
func Enumerate(glob string, vendorDB *VendorDB) ([]Descriptor, error) {
	if glob == "" {
		glob = defaultGlob
	}

	paths, err := matchingPaths(glob)
	if err != nil {
		return nil, fmt.Errorf("devices: cannot glob %s: %w", glob, err)
	}
	sort.Strings(paths)

	var out []Descriptor
	for _, path := range paths {
		dev, err := evdev.Open(path)
		if err != nil {
			logger.Debugf("devices: skipping %s: %v", path, err)
			continue
		}
		d := describe(path, dev)
		dev.Close()
		if vendorDB != nil {
			d = vendorDB.Resolve(d)
		}
		out = append(out, d)
	}
	return out, nil
}

// matchingPaths expands glob against the root filesystem using
// doublestar, which (unlike filepath.Glob) also supports "**"
// patterns.
func matchingPaths(glob string) ([]string, error) {
	pattern := strings.TrimPrefix(glob, "/")
	matches, err := doublestar.Glob(os.DirFS("/"), pattern)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, "/"+m)
	}
	return out, nil
}

func describe(path string, dev *evdev.InputDevice) Descriptor {
	caps := capabilitySet(dev)
	class := classify(dev, caps)

	return Descriptor{
		Class:        class,
		Path:         path,
		Name:         dev.Name,
		Capabilities: caps,
		VendorID:     strconv.FormatUint(uint64(dev.Vendor), 16),
		ProductID:    strconv.FormatUint(uint64(dev.Product), 16),
	}
}

func isWacomLike(dev *evdev.InputDevice) bool {
	name := strings.ToLower(dev.Name)
	return strings.Contains(name, "wacom") || strings.Contains(name, "pen")
}

func hasAbsCode(dev *evdev.InputDevice, code int) bool {
	return hasCode(dev, evdev.EV_ABS, code)
}

func hasKeyCode(dev *evdev.InputDevice, code int) bool {
	return hasCode(dev, evdev.EV_KEY, code)
}

func hasCode(dev *evdev.InputDevice, evType, code int) bool {
	for capType, codes := range dev.Capabilities {
		if capType.Type != evType {
			continue
		}
		for _, c := range codes {
			if c.Code == code {
				return true
			}
		}
	}
	return false
}

func classify(dev *evdev.InputDevice, caps []string) Class {
	if isWacomLike(dev) {
		return ClassWacom
	}
	if hasAbsCode(dev, evdev.ABS_X) && (hasAbsCode(dev, evdev.ABS_RX) || hasAbsCode(dev, evdev.ABS_HAT0X)) {
		return ClassJoystick
	}
	return ClassGeneric
}

func capabilitySet(dev *evdev.InputDevice) []string {
	var caps []string
	if isWacomLike(dev) {
		if hasAbsCode(dev, evdev.ABS_PRESSURE) {
			caps = append(caps, CapPressure)
		}
		if hasAbsCode(dev, evdev.ABS_TILT_X) && hasAbsCode(dev, evdev.ABS_TILT_Y) {
			caps = append(caps, CapTilt)
		}
		if hasAbsCode(dev, evdev.ABS_DISTANCE) {
			caps = append(caps, CapProximity)
		}
		if hasKeyCode(dev, evdev.BTN_STYLUS) {
			caps = append(caps, CapStylusButtons)
		}
		if hasKeyCode(dev, evdev.BTN_TOOL_RUBBER) {
			caps = append(caps, CapEraser)
		}
		return caps
	}

	if hasAbsCode(dev, evdev.ABS_X) && hasAbsCode(dev, evdev.ABS_Y) {
		caps = append(caps, CapLeftStick)
	}
	if hasAbsCode(dev, evdev.ABS_RX) && hasAbsCode(dev, evdev.ABS_RY) {
		caps = append(caps, CapRightStick)
	}
	if hasAbsCode(dev, evdev.ABS_Z) || hasAbsCode(dev, evdev.ABS_RZ) {
		caps = append(caps, CapTriggers)
	}
	if hasAbsCode(dev, evdev.ABS_HAT0X) || hasAbsCode(dev, evdev.ABS_HAT0Y) {
		caps = append(caps, CapDpad)
	}
	return caps
}

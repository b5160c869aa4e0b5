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

// Package events implements the closed symbolic code alphabet of §3
// and its translation to/from the (event-type, event-code) integer
// pairs the OS input layer deals in. Per §9's design note, this is a
// static, generated-by-hand table built from
// github.com/gvalkov/golang-evdev's integer constants — not the
// runtime reflection the Python original used over evdev.ecodes.
package events

import (
	"strconv"

	evdev "github.com/gvalkov/golang-evdev"
)

// Class identifies which evdev event-type family a code belongs to.
type Class int

const (
	ClassAbs Class = iota
	ClassKey
	ClassRel
	ClassSyn
)

// EVType returns the evdev event-type integer for a Class.
func (c Class) EVType() int {
	switch c {
	case ClassAbs:
		return evdev.EV_ABS
	case ClassKey:
		return evdev.EV_KEY
	case ClassRel:
		return evdev.EV_REL
	case ClassSyn:
		return evdev.EV_SYN
	default:
		return -1
	}
}

// absCodes is the ABS_* subset of the closed alphabet (§3), covering
// the Wacom and gamepad capability templates of §4.4.
var absCodes = map[string]int{
	"ABS_X":        evdev.ABS_X,
	"ABS_Y":        evdev.ABS_Y,
	"ABS_Z":        evdev.ABS_Z,
	"ABS_RX":       evdev.ABS_RX,
	"ABS_RY":       evdev.ABS_RY,
	"ABS_RZ":       evdev.ABS_RZ,
	"ABS_PRESSURE": evdev.ABS_PRESSURE,
	"ABS_DISTANCE": evdev.ABS_DISTANCE,
	"ABS_TILT_X":   evdev.ABS_TILT_X,
	"ABS_TILT_Y":   evdev.ABS_TILT_Y,
	"ABS_HAT0X":    evdev.ABS_HAT0X,
	"ABS_HAT0Y":    evdev.ABS_HAT0Y,
	"ABS_THROTTLE": evdev.ABS_THROTTLE,
	"ABS_MISC":     evdev.ABS_MISC,
}

// btnAndKeyCodes is the BTN_*/KEY_* subset (both live under EV_KEY).
var btnAndKeyCodes = map[string]int{
	"BTN_TOOL_PEN":    evdev.BTN_TOOL_PEN,
	"BTN_TOOL_RUBBER": evdev.BTN_TOOL_RUBBER,
	"BTN_TOUCH":       evdev.BTN_TOUCH,
	"BTN_STYLUS":      evdev.BTN_STYLUS,
	"BTN_STYLUS2":     evdev.BTN_STYLUS2,
	"BTN_TOOL_BRUSH":  evdev.BTN_TOOL_BRUSH,
	"BTN_A":           evdev.BTN_A,
	"BTN_B":           evdev.BTN_B,
	"BTN_X":           evdev.BTN_X,
	"BTN_Y":           evdev.BTN_Y,
	"BTN_TL":          evdev.BTN_TL,
	"BTN_TR":          evdev.BTN_TR,
	"BTN_TL2":         evdev.BTN_TL2,
	"BTN_TR2":         evdev.BTN_TR2,
	"BTN_SELECT":      evdev.BTN_SELECT,
	"BTN_START":       evdev.BTN_START,
	"BTN_MODE":        evdev.BTN_MODE,
	"BTN_THUMBL":      evdev.BTN_THUMBL,
	"BTN_THUMBR":      evdev.BTN_THUMBR,
	"KEY_ESC":         evdev.KEY_ESC,
}

// relCodes is the REL_* subset.
var relCodes = map[string]int{
	"REL_X":      evdev.REL_X,
	"REL_Y":      evdev.REL_Y,
	"REL_WHEEL":  evdev.REL_WHEEL,
	"REL_HWHEEL": evdev.REL_HWHEEL,
}

// synCodes is the SYN_* subset.
var synCodes = map[string]int{
	"SYN_REPORT":    evdev.SYN_REPORT,
	"SYN_CONFIG":    evdev.SYN_CONFIG,
	"SYN_MT_REPORT": evdev.SYN_MT_REPORT,
	"SYN_DROPPED":   evdev.SYN_DROPPED,
}

type reverseKey struct {
	evType int
	evCode int
}

var (
	forward = mergeForward(absCodes, btnAndKeyCodes, relCodes, synCodes)
	reverse = buildReverse()
)

func mergeForward(tables ...map[string]int) map[string]int {
	out := make(map[string]int)
	for _, t := range tables {
		for k, v := range t {
			out[k] = v
		}
	}
	return out
}

func classOf(name string) (Class, bool) {
	switch {
	case hasPrefix(name, "ABS_"):
		return ClassAbs, true
	case hasPrefix(name, "BTN_"), hasPrefix(name, "KEY_"):
		return ClassKey, true
	case hasPrefix(name, "REL_"):
		return ClassRel, true
	case hasPrefix(name, "SYN_"):
		return ClassSyn, true
	default:
		return 0, false
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func buildReverse() map[reverseKey]string {
	out := make(map[reverseKey]string, len(forward))
	for name, code := range forward {
		class, ok := classOf(name)
		if !ok {
			continue
		}
		out[reverseKey{evType: class.EVType(), evCode: code}] = name
	}
	return out
}

// ToWireCode resolves the symbolic code name for a raw (event-type,
// event-code) pair, per §4.3's translation rule. Unknown pairs
// synthesise "TYPE_<t>_CODE_<c>" rather than failing.
func ToWireCode(evType, evCode int) string {
	if name, ok := reverse[reverseKey{evType: evType, evCode: evCode}]; ok {
		return name
	}
	return synthesize(evType, evCode)
}

// FromWireCode parses a symbolic code name back into its
// (event-type, event-code) pair. ok is false for anything outside the
// closed alphabet — callers drop the event with a warning (§3, §4.4).
func FromWireCode(name string) (evType, evCode int, ok bool) {
	class, recognised := classOf(name)
	if !recognised {
		return 0, 0, false
	}
	code, found := forward[name]
	if !found {
		return 0, 0, false
	}
	return class.EVType(), code, true
}

func synthesize(evType, evCode int) string {
	return "TYPE_" + strconv.Itoa(evType) + "_CODE_" + strconv.Itoa(evCode)
}

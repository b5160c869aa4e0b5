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

// Package devicectl implements the host-side device control of §4.5:
// disabling local delivery and switching a Wacom-class device to
// relative mode for the duration of a share, with a save/restore
// invariant that every exit path honours. Grounded on
// original_source/device_detector.py's xinput/xsetwacom backend pair.
package devicectl

import "github.com/icarito/transwacom/internal/logger"

// Controller mutates and restores one device's local-delivery/mode
// state around a share. Disable/Restore are each attempted against
// every configured backend in turn; success of any one backend is
// sufficient (§4.5).
type Controller interface {
	// Disable records the device's prior mode and applies the
	// share-time configuration (local delivery off, relative mode on
	// when enabled). The prior enabled state is not queried: whenever
	// Disable turns delivery off, Restore turns it back on.
	Disable() error
	// Restore reapplies the state recorded by Disable. It is
	// idempotent: calling it without a prior Disable, or calling it
	// more than once, is a no-op.
	Restore() error
}

// savedState is what Disable records for Restore: originalMode is the
// mode read back before switching to relative mode, and wasEnabled is
// set when Disable turned local delivery off (the device's enabled
// state before that is not read).
type savedState struct {
	wasEnabled   bool
	originalMode string
	captured     bool
}

// backend is one of the two alternative device-control back-ends
// (§4.5): a generic input-enable toggle and a tablet-specific setter.
// Each is tried independently; Disable/Restore on the Controller
// succeed if any backend succeeds.
type backend interface {
	name() string
	setEnabled(devicePath string, enabled bool) error
	setRelativeMode(devicePath string, relative bool) (previousMode string, err error)
	setMode(devicePath string, mode string) error
}

// multiController is the two-backend Controller described by §4.5:
// a generic input-enable toggle (D-Bus) and a tablet-specific setter
// (external tool invocation), attempted in order with "either
// succeeds" semantics.
type multiController struct {
	devicePath  string
	relativeFor bool
	backends    []backend
	saved       savedState
}

// NewController builds a Controller for the device at devicePath.
// relativeMode controls whether Disable additionally switches the
// device into relative mode (meaningful only for Wacom-class devices,
// per §4.5's "switch the tablet to relative mode").
func NewController(devicePath string, relativeMode bool) Controller {
	return &multiController{
		devicePath:  devicePath,
		relativeFor: relativeMode,
		backends:    []backend{&dbusBackend{}, &toolBackend{}},
	}
}

func (m *multiController) Disable() error {
	var lastErr error
	disabled := false
	for _, b := range m.backends {
		if err := b.setEnabled(m.devicePath, false); err != nil {
			logger.Debugf("devicectl: %s setEnabled failed for %s: %v", b.name(), m.devicePath, err)
			lastErr = err
			continue
		}
		disabled = true
		m.saved.wasEnabled = true
		break
	}

	if m.relativeFor {
		for _, b := range m.backends {
			prev, err := b.setRelativeMode(m.devicePath, true)
			if err != nil {
				logger.Debugf("devicectl: %s setRelativeMode failed for %s: %v", b.name(), m.devicePath, err)
				lastErr = err
				continue
			}
			m.saved.originalMode = prev
			break
		}
	}

	m.saved.captured = true
	if !disabled {
		return lastErr
	}
	return nil
}

func (m *multiController) Restore() error {
	if !m.saved.captured {
		return nil
	}
	m.saved.captured = false

	var lastErr error
	if m.relativeFor && m.saved.originalMode != "" {
		restored := false
		for _, b := range m.backends {
			if err := b.setMode(m.devicePath, m.saved.originalMode); err != nil {
				logger.Debugf("devicectl: %s restore mode failed for %s: %v", b.name(), m.devicePath, err)
				lastErr = err
				continue
			}
			restored = true
			break
		}
		if !restored {
			logger.Noticef("devicectl: could not restore mode for %s", m.devicePath)
		}
	}

	if m.saved.wasEnabled {
		restored := false
		for _, b := range m.backends {
			if err := b.setEnabled(m.devicePath, true); err != nil {
				logger.Debugf("devicectl: %s restore enable failed for %s: %v", b.name(), m.devicePath, err)
				lastErr = err
				continue
			}
			restored = true
			break
		}
		if !restored {
			logger.Noticef("devicectl: could not re-enable %s", m.devicePath)
		}
	}

	return lastErr
}

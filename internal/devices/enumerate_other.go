// -*- Mode: Go; indent-tabs-mode: t -*-

//go:build !linux

package devices

import "fmt"

// Enumerate is unsupported outside Linux: the evdev character-device
// layer this package talks to (§1, "OS input layer... out of scope,
// interface only") simply doesn't exist elsewhere. Builds on other
// platforms link, but Enumerate always returns an error there.
func Enumerate(glob string, vendorDB *VendorDB) ([]Descriptor, error) {
	return nil, fmt.Errorf("devices: host device enumeration is only supported on linux")
}

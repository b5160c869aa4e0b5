// -*- Mode: Go; indent-tabs-mode: t -*-

package devicectl

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// toolBackend is the tablet-specific setter of §4.5, shelling out to
// an external per-tablet configuration tool (xsetwacom on X11
// desktops), mirroring original_source/device_detector.py's
// subprocess invocation of the same tool.
type toolBackend struct {
	// execName is overridable in tests.
	execName string
}

func (b *toolBackend) bin() string {
	if b.execName != "" {
		return b.execName
	}
	return "xsetwacom"
}

func (b *toolBackend) name() string { return "tool" }

func (b *toolBackend) run(args ...string) (string, error) {
	cmd := exec.Command(b.bin(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("devicectl: %s %s: %w (%s)", b.bin(), strings.Join(args, " "), err, out.String())
	}
	return out.String(), nil
}

func (b *toolBackend) setEnabled(devicePath string, enabled bool) error {
	val := "0"
	if enabled {
		val = "1"
	}
	_, err := b.run("set", devicePath, "Touch", val)
	return err
}

func (b *toolBackend) setRelativeMode(devicePath string, relative bool) (string, error) {
	out, err := b.run("get", devicePath, "Mode")
	if err != nil {
		return "", err
	}
	previous := strings.TrimSpace(out)

	mode := "Absolute"
	if relative {
		mode = "Relative"
	}
	if _, err := b.run("set", devicePath, "Mode", mode); err != nil {
		return "", err
	}
	return previous, nil
}

func (b *toolBackend) setMode(devicePath string, mode string) error {
	_, err := b.run("set", devicePath, "Mode", mode)
	return err
}

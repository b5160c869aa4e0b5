// -*- Mode: Go; indent-tabs-mode: t -*-

package devicectl

import "testing"

type fakeBackend struct {
	label       string
	failEnable  bool
	failMode    bool
	enabled     map[string]bool
	modes       map[string]string
	enableCalls int
	modeCalls   int
}

func newFakeBackend(label string) *fakeBackend {
	return &fakeBackend{label: label, enabled: map[string]bool{}, modes: map[string]string{}}
}

func (f *fakeBackend) name() string { return f.label }

func (f *fakeBackend) setEnabled(devicePath string, enabled bool) error {
	f.enableCalls++
	if f.failEnable {
		return errFake
	}
	f.enabled[devicePath] = enabled
	return nil
}

func (f *fakeBackend) setRelativeMode(devicePath string, relative bool) (string, error) {
	if f.failMode {
		return "", errFake
	}
	prev := f.modes[devicePath]
	if prev == "" {
		prev = "absolute"
	}
	mode := "absolute"
	if relative {
		mode = "relative"
	}
	f.modes[devicePath] = mode
	return prev, nil
}

func (f *fakeBackend) setMode(devicePath string, mode string) error {
	f.modeCalls++
	if f.failMode {
		return errFake
	}
	f.modes[devicePath] = mode
	return nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errFake = fakeErr("fake backend failure")

func TestDisableRestoreRoundTrip(t *testing.T) {
	primary := newFakeBackend("primary")
	primary.modes["/dev/input/event4"] = "absolute"

	ctl := &multiController{
		devicePath:  "/dev/input/event4",
		relativeFor: true,
		backends:    []backend{primary},
	}

	if err := ctl.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if primary.enabled["/dev/input/event4"] != false {
		t.Fatal("expected device disabled")
	}
	if primary.modes["/dev/input/event4"] != "relative" {
		t.Fatalf("expected relative mode, got %s", primary.modes["/dev/input/event4"])
	}

	if err := ctl.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if primary.enabled["/dev/input/event4"] != true {
		t.Fatal("expected device re-enabled")
	}
	if primary.modes["/dev/input/event4"] != "absolute" {
		t.Fatalf("expected mode restored to absolute, got %s", primary.modes["/dev/input/event4"])
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	primary := newFakeBackend("primary")
	ctl := &multiController{devicePath: "/dev/input/event4", backends: []backend{primary}}

	if err := ctl.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if err := ctl.Restore(); err != nil {
		t.Fatalf("first Restore: %v", err)
	}
	callsAfterFirst := primary.enableCalls

	if err := ctl.Restore(); err != nil {
		t.Fatalf("second Restore: %v", err)
	}
	if primary.enableCalls != callsAfterFirst {
		t.Fatalf("expected no further backend calls on repeat Restore, got %d more", primary.enableCalls-callsAfterFirst)
	}
}

func TestDisableFallsBackToSecondBackend(t *testing.T) {
	failing := newFakeBackend("failing")
	failing.failEnable = true
	working := newFakeBackend("working")

	ctl := &multiController{
		devicePath: "/dev/input/event4",
		backends:   []backend{failing, working},
	}

	if err := ctl.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if working.enabled["/dev/input/event4"] != false {
		t.Fatal("expected the working backend to have disabled the device")
	}
}

func TestDisableFailsWhenAllBackendsFail(t *testing.T) {
	a := newFakeBackend("a")
	a.failEnable = true
	b := newFakeBackend("b")
	b.failEnable = true

	ctl := &multiController{devicePath: "/dev/input/event4", backends: []backend{a, b}}
	if err := ctl.Disable(); err == nil {
		t.Fatal("expected error when every backend fails")
	}
}

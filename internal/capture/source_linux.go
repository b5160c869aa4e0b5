// -*- Mode: Go; indent-tabs-mode: t -*-

//go:build linux

package capture

import (
	"errors"
	"fmt"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"

	"github.com/icarito/transwacom/internal/devices"
)

// ErrStopped is returned by ReadEvent once Close has been called.
var ErrStopped = errors.New("capture: device source stopped")

// evdevSource is the Linux DeviceSource backend, reading raw events
// directly off the evdev character device. A self-pipe is polled
// alongside the device fd so Stop() unblocks a pending read within
// one syscall's latency (§4.3, §5), matching the cancellation
// mechanism original_source/host_input.py gets for free from Python's
// higher-level select loop.
type evdevSource struct {
	descriptor devices.Descriptor
	dev        *evdev.InputDevice

	stopR int
	stopW int
}

// NewLinuxSource opens path as an evdev device and returns a
// DeviceSource over it. desc should describe the same device (as
// produced by devices.Enumerate); its fields are exposed verbatim by
// Descriptor().
func NewLinuxSource(desc devices.Descriptor) (DeviceSource, error) {
	dev, err := evdev.Open(desc.Path)
	if err != nil {
		return nil, fmt.Errorf("capture: cannot open %s: %w", desc.Path, err)
	}

	fds, err := unixPipe()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("capture: cannot create stop pipe: %w", err)
	}

	return &evdevSource{descriptor: desc, dev: dev, stopR: fds[0], stopW: fds[1]}, nil
}

func unixPipe() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return fds, err
	}
	return fds, nil
}

func (s *evdevSource) Descriptor() devices.Descriptor { return s.descriptor }

func (s *evdevSource) ReadEvent() (RawEvent, error) {
	fd := int(s.dev.File.Fd())
	pollFds := []unix.PollFd{
		{Fd: int32(fd), Events: unix.POLLIN},
		{Fd: int32(s.stopR), Events: unix.POLLIN},
	}

	for {
		n, err := unix.Poll(pollFds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return RawEvent{}, fmt.Errorf("capture: poll %s: %w", s.descriptor.Path, err)
		}
		if n == 0 {
			continue
		}
		if pollFds[1].Revents&unix.POLLIN != 0 {
			return RawEvent{}, ErrStopped
		}
		if pollFds[0].Revents&unix.POLLIN != 0 {
			ev, err := s.dev.ReadOne()
			if err != nil {
				return RawEvent{}, fmt.Errorf("capture: read %s: %w", s.descriptor.Path, err)
			}
			return RawEvent{
				EVType:    int(ev.Type),
				EVCode:    int(ev.Code),
				Value:     int(ev.Value),
				Timestamp: float64(ev.Time.Sec) + float64(ev.Time.Usec)/1e6,
			}, nil
		}
	}
}

func (s *evdevSource) Close() error {
	unix.Write(s.stopW, []byte{0})
	unix.Close(s.stopW)
	unix.Close(s.stopR)
	return s.dev.Close()
}

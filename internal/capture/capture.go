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

// Package capture implements the host-side capture pipeline (§4.3):
// reading raw events from one input device in a dedicated execution
// context, translating them to wire InputEvents and batching them per
// the SYN/10ms flush rule, grounded on
// original_source/host_input.py's InputCapture._capture_loop.
package capture

import (
	"time"

	"github.com/icarito/transwacom/internal/devices"
	"github.com/icarito/transwacom/internal/events"
	"github.com/icarito/transwacom/internal/wire"
)

// flushInterval is the maximum time a batch stays open without a
// SYN_* event arriving, per §4.3.
const flushInterval = 10 * time.Millisecond

// RawEvent is one (type, code, value) triple as read from the OS
// input layer, before symbolic translation.
type RawEvent struct {
	EVType    int
	EVCode    int
	Value     int
	Timestamp float64
}

// DeviceSource reads raw events from one physical input device. A
// source is single-owner: only the capture loop that opened it reads
// from or closes it.
//
// The OS input layer itself is out of scope (§1) — DeviceSource is the
// seam real backends plug into; this package owns only the batching
// and translation logic on top of it.
type DeviceSource interface {
	// Descriptor returns the device this source reads from.
	Descriptor() devices.Descriptor
	// ReadEvent blocks until an event is available or the source is
	// stopped, in which case it returns ErrStopped.
	ReadEvent() (RawEvent, error)
	// Close releases the underlying device handle.
	Close() error
}

// Sink receives flushed batches: the device's class and the batch of
// wire events, per §4.3's "flush calls the sink with (device_class,
// batch)".
type Sink func(deviceClass devices.Class, batch []wire.InputEvent)

// Batcher applies §4.3's accumulate/flush rule on top of a stream of
// raw events: flush when a SYN_* event is appended, or when
// flushInterval has elapsed since the batch opened, whichever comes
// first.
type Batcher struct {
	class devices.Class
	sink  Sink

	batch     []wire.InputEvent
	openSince time.Time
	hasOpen   bool
}

// NewBatcher creates a Batcher that reports flushed batches to sink as
// coming from class.
func NewBatcher(class devices.Class, sink Sink) *Batcher {
	return &Batcher{class: class, sink: sink}
}

// Append translates raw and appends it to the current batch, flushing
// per the SYN/10ms rule. now is the caller's current time, passed in
// so tests can drive the 10ms edge deterministically.
func (b *Batcher) Append(raw RawEvent, now time.Time) {
	if !b.hasOpen {
		b.openSince = now
		b.hasOpen = true
	}

	name := events.ToWireCode(raw.EVType, raw.EVCode)
	b.batch = append(b.batch, wire.InputEvent{
		Code:      name,
		Value:     raw.Value,
		Timestamp: raw.Timestamp,
	})

	isSyn := raw.EVType == events.ClassSyn.EVType()
	if isSyn || now.Sub(b.openSince) >= flushInterval {
		b.Flush()
	}
}

// Flush emits the current batch (if non-empty) and resets the batcher.
func (b *Batcher) Flush() {
	if len(b.batch) == 0 {
		b.hasOpen = false
		return
	}
	batch := b.batch
	b.batch = nil
	b.hasOpen = false
	b.sink(b.class, batch)
}

// Pending returns the number of events accumulated since the last flush.
func (b *Batcher) Pending() int {
	return len(b.batch)
}

// FlushIfDue flushes the open batch only if flushInterval has elapsed
// since it opened, per §4.3's "(ii) >= 10ms have elapsed" leg of the
// flush rule. It is a no-op on an empty or freshly-opened batch, so
// callers may poll it far more often than flushInterval itself.
func (b *Batcher) FlushIfDue(now time.Time) {
	if !b.hasOpen {
		return
	}
	if now.Sub(b.openSince) >= flushInterval {
		b.Flush()
	}
}

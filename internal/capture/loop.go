// -*- Mode: Go; indent-tabs-mode: t -*-

package capture

import (
	"time"

	"gopkg.in/tomb.v2"

	"github.com/icarito/transwacom/internal/devicectl"
	"github.com/icarito/transwacom/internal/logger"
)

// pollInterval bounds how long a batch can sit open with events
// pending but no new SYN_* arriving, satisfying §4.3's "(ii) >= 10ms
// have elapsed since the batch opened" leg of the flush rule even when
// the device goes briefly quiet.
const pollInterval = 2 * time.Millisecond

// Loop owns one DeviceSource end to end: reading, batching and
// flushing its events, and running device-control cleanup on stop
// (§4.3, §4.5). It is single-owner on its source; nothing else may
// read from or close src once the loop has started.
type Loop struct {
	t       tomb.Tomb
	src     DeviceSource
	batcher *Batcher
	ctl     devicectl.Controller

	events chan RawEvent
	errs   chan error
}

// NewLoop builds a capture loop over src, flushing batches to sink and
// running ctl's save/restore around the capture, per §4.5. ctl may be
// nil when no device-control cleanup is required.
func NewLoop(src DeviceSource, sink Sink, ctl devicectl.Controller) *Loop {
	return &Loop{
		src:     src,
		batcher: NewBatcher(src.Descriptor().Class, sink),
		ctl:     ctl,
		events:  make(chan RawEvent, 64),
		errs:    make(chan error, 1),
	}
}

// Start launches the capture loop under its own tomb.
func (l *Loop) Start() {
	go l.readPump()
	l.t.Go(l.run)
}

// Stop requests the loop terminate and waits for it to do so. It is
// idempotent and safe to call more than once.
func (l *Loop) Stop() error {
	l.t.Kill(nil)
	return l.t.Wait()
}

// Dying returns a channel closed when the loop starts shutting down,
// for callers that want to react to an unrequested stop (e.g. a device
// unplugged mid-session).
func (l *Loop) Dying() <-chan struct{} {
	return l.t.Dying()
}

// readPump runs ReadEvent in its own goroutine since it blocks on the
// underlying device fd; run() multiplexes its output against the
// flush timer and the tomb's dying signal.
func (l *Loop) readPump() {
	for {
		ev, err := l.src.ReadEvent()
		if err != nil {
			select {
			case l.errs <- err:
			case <-l.t.Dying():
			}
			return
		}
		select {
		case l.events <- ev:
		case <-l.t.Dying():
			return
		}
	}
}

func (l *Loop) run() error {
	if l.ctl != nil {
		if err := l.ctl.Disable(); err != nil {
			logger.Debugf("capture: device-control disable failed for %s: %v", l.src.Descriptor().Path, err)
		}
	}
	defer l.cleanup()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.t.Dying():
			return nil
		case err := <-l.errs:
			return err
		case ev := <-l.events:
			l.batcher.Append(ev, now())
		case <-ticker.C:
			l.batcher.FlushIfDue(now())
		}
	}
}

func (l *Loop) cleanup() {
	l.batcher.Flush()
	if l.ctl != nil {
		if err := l.ctl.Restore(); err != nil {
			logger.Debugf("capture: device-control restore failed for %s: %v", l.src.Descriptor().Path, err)
		}
	}
	if err := l.src.Close(); err != nil {
		logger.Debugf("capture: error closing %s: %v", l.src.Descriptor().Path, err)
	}
}

// now is a var so tests can stub wall-clock time deterministically if
// ever needed; production code always uses time.Now.
var now = time.Now

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

// Package registry implements the connection registry and supervisor
// of §4.8: outbound sessions keyed by unique_id, inbound sessions
// keyed by peer name (multiple sockets per name allowed), a liveness
// monitor over outbound sessions, and the single process-wide
// emergency cleanup hook. Grounded on
// original_source/transnetwork.py's active_connections/
// incoming_sockets bookkeeping and tray_app_unified.py's top-level
// cleanup-on-exit flow.
package registry

import (
	"sync"
	"time"

	"github.com/icarito/transwacom/internal/logger"
	"github.com/icarito/transwacom/internal/session"
)

// LivenessInterval is §4.8's "fixed interval (≈2s)" liveness probe
// cadence.
const LivenessInterval = 2 * time.Second

// LostHandler is invoked once per outbound session the liveness
// monitor finds dead (§4.8: "raises a user-visible 'connection lost'
// notification").
type LostHandler func(uniqueID string)

// Registry is the single mutex-guarded map pair §5 describes: the
// outbound- and inbound-session maps share one mutex because their
// critical sections (insert, remove, snapshot) are small.
type Registry struct {
	mu       sync.Mutex
	outbound map[string]*session.Session
	inbound  map[string][]*session.Session

	onLost LostHandler
	stop   chan struct{}
	done   chan struct{}

	started bool
}

// New builds an empty Registry. onLost may be nil.
func New(onLost LostHandler) *Registry {
	return &Registry{
		outbound: make(map[string]*session.Session),
		inbound:  make(map[string][]*session.Session),
		onLost:   onLost,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// AddOutbound registers an outbound session under uniqueID. Only one
// outbound session may exist per unique_id at a time; a second Add
// replaces and does not close the previous entry — callers are
// expected to have closed it first.
func (r *Registry) AddOutbound(uniqueID string, s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbound[uniqueID] = s
}

// RemoveOutbound unregisters uniqueID, if present.
func (r *Registry) RemoveOutbound(uniqueID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outbound, uniqueID)
}

// AddInbound registers an inbound session under peerName, alongside
// any others already registered for that name (§4.8).
func (r *Registry) AddInbound(peerName string, s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbound[peerName] = append(r.inbound[peerName], s)
}

// RemoveInbound unregisters one inbound session for peerName.
func (r *Registry) RemoveInbound(peerName string, s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := r.inbound[peerName]
	for i, existing := range sessions {
		if existing == s {
			r.inbound[peerName] = append(sessions[:i], sessions[i+1:]...)
			break
		}
	}
	if len(r.inbound[peerName]) == 0 {
		delete(r.inbound, peerName)
	}
}

// SnapshotOutbound returns a copy of the outbound session map for
// display (§5: "snapshot for display" is one of the small critical
// sections the shared mutex protects).
func (r *Registry) SnapshotOutbound() map[string]*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*session.Session, len(r.outbound))
	for k, v := range r.outbound {
		out[k] = v
	}
	return out
}

// SnapshotInbound returns a copy of the inbound session map for
// display.
func (r *Registry) SnapshotInbound() map[string][]*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]*session.Session, len(r.inbound))
	for k, v := range r.inbound {
		cp := make([]*session.Session, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Prober reports whether an outbound session's socket is still alive.
// It is a function type so tests can substitute a fake clock of
// liveness. StartLivenessMonitor uses DefaultProber, which only checks
// the session's state, when given nil (as transwacomd does).
type Prober func(*session.Session) bool

// DefaultProber treats a session as alive as long as it has not yet
// reached StateClosed.
func DefaultProber(s *session.Session) bool {
	return s.State() != session.StateClosed
}

// StartLivenessMonitor runs the §4.8 liveness monitor in the
// background: every LivenessInterval it probes each outbound session
// and, for any found dead, removes it from the registry and invokes
// onLost.
func (r *Registry) StartLivenessMonitor(probe Prober) {
	if probe == nil {
		probe = DefaultProber
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(LivenessInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.sweepDead(probe)
			}
		}
	}()
}

func (r *Registry) sweepDead(probe Prober) {
	for uniqueID, s := range r.SnapshotOutbound() {
		if probe(s) {
			continue
		}
		r.RemoveOutbound(uniqueID)
		logger.Noticef("registry: lost connection %s", uniqueID)
		if r.onLost != nil {
			r.onLost(uniqueID)
		}
	}
}

// StopLivenessMonitor stops the background monitor and waits for it
// to exit. Safe to call even if the monitor was never started.
func (r *Registry) StopLivenessMonitor() {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	select {
	case <-r.stop:
		// already stopped
	default:
		close(r.stop)
	}
	if started {
		<-r.done
	}
}

// DeviceCapture is the minimal surface registry needs of a running
// capture loop to include it in emergency cleanup, without importing
// package capture directly (capture already imports devicectl and
// events; this avoids a dependency cycle risk as the tree grows).
type DeviceCapture interface {
	Stop() error
}

// VirtualDevices is the minimal surface of an injection router needed
// for emergency cleanup.
type VirtualDevices interface {
	Close() error
}

// Advertisement is the minimal surface of a discovery advertiser
// needed for emergency cleanup.
type Advertisement interface {
	Stop() error
}

// Discovery is the minimal surface of a discovery browser needed for
// emergency cleanup.
type Discovery interface {
	Stop() error
}

// Cleanup is the single process-wide emergency cleanup function of
// §4.8: cancel timers, stop captures, destroy virtual devices, close
// session sockets, unpublish mDNS, stop discovery — in that order. It
// is safe to call more than once; each step is independently
// idempotent and a failure in one step does not block the rest.
type Cleanup struct {
	mu       sync.Mutex
	ran      bool
	registry *Registry
	captures []DeviceCapture
	devices  VirtualDevices
	advert   Advertisement
	discover Discovery
}

// NewCleanup wires the emergency cleanup hook to the components a
// running process actually has. Any argument may be nil.
func NewCleanup(registry *Registry, captures []DeviceCapture, devices VirtualDevices, advert Advertisement, discover Discovery) *Cleanup {
	return &Cleanup{registry: registry, captures: captures, devices: devices, advert: advert, discover: discover}
}

// Run executes the cleanup sequence. Safe to call more than once;
// only the first call does anything.
func (c *Cleanup) Run() {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return
	}
	c.ran = true
	c.mu.Unlock()

	if c.registry != nil {
		c.registry.StopLivenessMonitor()
	}

	for _, capt := range c.captures {
		if err := capt.Stop(); err != nil {
			logger.Debugf("cleanup: capture stop failed: %v", err)
		}
	}

	if c.devices != nil {
		if err := c.devices.Close(); err != nil {
			logger.Debugf("cleanup: virtual device teardown failed: %v", err)
		}
	}

	if c.registry != nil {
		for uniqueID, s := range c.registry.SnapshotOutbound() {
			s.Close("shutdown")
			c.registry.RemoveOutbound(uniqueID)
		}
		for name, sessions := range c.registry.SnapshotInbound() {
			for _, s := range sessions {
				s.Close("shutdown")
				c.registry.RemoveInbound(name, s)
			}
		}
	}

	if c.advert != nil {
		if err := c.advert.Stop(); err != nil {
			logger.Debugf("cleanup: mDNS unpublish failed: %v", err)
		}
	}
	if c.discover != nil {
		if err := c.discover.Stop(); err != nil {
			logger.Debugf("cleanup: discovery stop failed: %v", err)
		}
	}
}

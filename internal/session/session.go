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

// Package session implements the per-connection state machine of
// §4.2: outbound (host-initiated) and inbound (consumer-side)
// variants of Connecting/SendHandshake/AwaitingAuth/Streaming/Closing/
// Closed, with idempotent teardown. Grounded on
// original_source/transnetwork.py's create_consumer_server/
// connect_to_consumer.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"gopkg.in/tomb.v2"

	"github.com/icarito/transwacom/internal/logger"
	"github.com/icarito/transwacom/internal/wire"
)

// AuthTimeout is §4.2's "MUST wait up to 60 seconds for auth_response"
// bound, applied by both the initiator waiting for the reply and the
// receiver's own abandoned-AwaitingAuth check.
const AuthTimeout = 60 * time.Second

// sendBucketRate bounds sustained outbound batch throughput; the
// concrete mechanism behind §5's "backpressure" note — once the
// bucket is empty, Send blocks until refilled.
const sendBucketRate = 2 << 20 // bytes/sec
const sendBucketCapacity = 1 << 20

// State is one node of the §4.2 state machine.
type State int

const (
	StateConnecting State = iota
	StateSendHandshake
	StateAwaitingAuth
	StateStreaming
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSendHandshake:
		return "send_handshake"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrRejected is returned (possibly wrapped) by DialOutbound when the
// peer's auth_response declines, is malformed or does not arrive
// within the 60s auth timeout, and by AcceptInbound when authorize
// declines.
var ErrRejected = errors.New("session: peer rejected the session")

// BatchHandler processes a received event batch (§4.4's entry point).
type BatchHandler func(wire.EventBatch)

// Session is one peer connection, either outbound (this process sent
// the handshake) or inbound (this process received one). Its state
// only ever moves forward through the §4.2 diagram.
type Session struct {
	conn net.Conn
	t    tomb.Tomb

	mu    sync.Mutex
	state State

	bucket    *ratelimit.Bucket
	onBatch   BatchHandler
	closeOnce sync.Once
}

func newSession(conn net.Conn, onBatch BatchHandler) *Session {
	return &Session{
		conn:    conn,
		state:   StateConnecting,
		bucket:  ratelimit.NewBucketWithRate(sendBucketRate, sendBucketCapacity),
		onBatch: onBatch,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// DialOutbound performs the host-initiated handshake/auth exchange
// over conn (already "tcp_ok") and, on acceptance, returns a Session
// in StateStreaming whose reads are dispatched to onBatch. Rejection
// or auth timeout closes conn and returns ErrRejected.
func DialOutbound(conn net.Conn, handshake wire.Handshake, onBatch BatchHandler) (*Session, error) {
	s := newSession(conn, onBatch)
	s.setState(StateSendHandshake)

	data, err := wire.Encode(handshake)
	if err != nil {
		s.forceClose()
		return nil, fmt.Errorf("session: cannot encode handshake: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		s.forceClose()
		return nil, fmt.Errorf("session: cannot send handshake: %w", err)
	}

	s.setState(StateAwaitingAuth)
	if err := conn.SetReadDeadline(time.Now().Add(AuthTimeout)); err != nil {
		logger.Debugf("session: cannot set auth read deadline: %v", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		s.forceClose()
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, fmt.Errorf("%w: auth timeout", ErrRejected)
		}
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		logger.Debugf("session: cannot clear read deadline: %v", err)
	}

	msg, err := wire.Decode(trimNewline(line))
	if err != nil {
		s.forceClose()
		return nil, fmt.Errorf("%w: malformed auth_response: %v", ErrRejected, err)
	}
	resp, ok := msg.(wire.AuthResponse)
	if !ok || !resp.Accepted {
		s.forceClose()
		return nil, ErrRejected
	}

	s.setState(StateStreaming)
	s.t.Go(func() error { return s.readLoop(reader) })
	return s, nil
}

// AcceptInbound performs the consumer-side handshake/auth exchange
// over conn: it reads the handshake, invokes authorize to obtain an
// accept/reject decision and the local peer's (name, id), replies
// with an auth_response, and on acceptance returns a Session in
// StateStreaming.
//
// authorize receives the parsed handshake and returns whether to
// accept and the local (consumer_name, consumer_id) to report back
// (§4.7 step 3); it is expected to internally run the authorisation
// workflow in package trust.
func AcceptInbound(conn net.Conn, onBatch BatchHandler, authorize func(wire.Handshake) (accept bool, name, id string)) (*Session, error) {
	s := newSession(conn, onBatch)

	if err := conn.SetReadDeadline(time.Now().Add(AuthTimeout)); err != nil {
		logger.Debugf("session: cannot set handshake read deadline: %v", err)
	}
	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		s.forceClose()
		return nil, fmt.Errorf("session: cannot read handshake: %w", err)
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		logger.Debugf("session: cannot clear read deadline: %v", err)
	}

	msg, err := wire.Decode(trimNewline(line))
	if err != nil {
		s.forceClose()
		return nil, fmt.Errorf("session: malformed handshake: %w", err)
	}
	hs, ok := msg.(wire.Handshake)
	if !ok {
		s.forceClose()
		return nil, errors.New("session: expected handshake as first message")
	}

	accept, name, id := authorize(hs)
	resp := wire.NewAuthResponse(accept, name, id)
	data, err := wire.Encode(resp)
	if err != nil {
		s.forceClose()
		return nil, fmt.Errorf("session: cannot encode auth_response: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		s.forceClose()
		return nil, fmt.Errorf("session: cannot send auth_response: %w", err)
	}

	if !accept {
		s.forceClose()
		return nil, ErrRejected
	}

	s.setState(StateStreaming)
	s.t.Go(func() error { return s.readLoop(reader) })
	return s, nil
}

// readLoop processes event/disconnect messages once in StateStreaming
// (§4.2's inbound streaming read-loop, shared by both session
// directions once authorised).
func (s *Session) readLoop(reader *bufio.Reader) error {
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			s.teardown("eof")
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		msg, err := wire.Decode(trimNewline(line))
		if err != nil {
			logger.Debugf("session: dropping malformed message: %v", err)
			continue
		}

		switch m := msg.(type) {
		case wire.EventBatch:
			s.onBatch(m)
		case wire.Disconnect:
			s.teardown("disconnect_recv")
			return nil
		default:
			logger.Debugf("session: ignoring unexpected message type in streaming state: %T", msg)
		}
	}
}

// SendBatch writes an event batch to the peer, rate-limited per §5's
// backpressure note. It is only valid in StateStreaming.
func (s *Session) SendBatch(batch wire.EventBatch) error {
	data, err := wire.Encode(batch)
	if err != nil {
		return fmt.Errorf("session: cannot encode batch: %w", err)
	}
	w := ratelimit.Writer(s.conn, s.bucket)
	_, err = w.Write(data)
	if err != nil {
		s.teardown("send_error")
	}
	return err
}

// Close implements §4.2's local_stop path: send exactly one
// disconnect message (best-effort), then tear down. Idempotent.
func (s *Session) Close(reason string) error {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	s.mu.Unlock()

	data, err := wire.Encode(wire.NewDisconnect(reason, 0))
	if err == nil {
		if _, werr := s.conn.Write(data); werr != nil {
			logger.Debugf("session: disconnect send failed (ignored): %v", werr)
		}
	}

	return s.finish()
}

// teardown handles every non-local-stop exit path of §4.2
// (send_error, eof, disconnect_recv) identically to Close, minus the
// outbound disconnect send.
func (s *Session) teardown(reason string) {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	s.mu.Unlock()

	logger.Debugf("session: tearing down (%s)", reason)
	if err := s.finish(); err != nil {
		logger.Debugf("session: teardown error: %v", err)
	}
}

// finish closes the socket unconditionally and moves to StateClosed.
// It runs at most once regardless of how many paths call it
// concurrently (§4.2 "Closing is re-entrant").
func (s *Session) finish() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
		s.t.Kill(nil)
	})
	s.setState(StateClosed)
	return err
}

func (s *Session) forceClose() {
	s.setState(StateClosed)
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}

// Wait blocks until the session's read loop has finished.
func (s *Session) Wait() error {
	return s.t.Wait()
}

func trimNewline(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		return line[:n-1]
	}
	return line
}

// -*- Mode: Go; indent-tabs-mode: t -*-

package session_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/icarito/transwacom/internal/session"
	"github.com/icarito/transwacom/internal/wire"
)

func sampleHandshake() wire.Handshake {
	return wire.NewHandshake("alpha", "a1b2c3d4e5f60718", []wire.DeviceInfo{
		{Type: "wacom", Path: "/dev/input/event19", Name: "Wacom Intuos", Capabilities: []string{"pressure", "tilt"}},
	}, "1.0")
}

func TestHandshakeAcceptRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	var received []wire.EventBatch
	serverDone := make(chan *session.Session, 1)
	go func() {
		s, err := session.AcceptInbound(serverConn, func(b wire.EventBatch) {
			received = append(received, b)
		}, func(wire.Handshake) (bool, string, string) {
			return true, "tablet-nook", "consumer-id-1"
		})
		if err != nil {
			t.Errorf("AcceptInbound: %v", err)
		}
		serverDone <- s
	}()

	client, err := session.DialOutbound(clientConn, sampleHandshake(), func(wire.EventBatch) {})
	if err != nil {
		t.Fatalf("DialOutbound: %v", err)
	}
	if client.State() != session.StateStreaming {
		t.Fatalf("expected StateStreaming, got %v", client.State())
	}

	server := <-serverDone
	if server == nil {
		t.Fatal("expected a non-nil inbound session")
	}

	batch := wire.NewEventBatch("wacom", []wire.InputEvent{{Code: "ABS_X", Value: 100}}, 1.0)
	if err := client.SendBatch(batch); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(received) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(received) != 1 || received[0].DeviceType != "wacom" {
		t.Fatalf("expected the batch to be received, got %+v", received)
	}

	client.Close("done")
	server.Close("done")
}

func TestHandshakeRejection(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	go func() {
		session.AcceptInbound(serverConn, func(wire.EventBatch) {}, func(wire.Handshake) (bool, string, string) {
			return false, "", ""
		})
	}()

	_, err := session.DialOutbound(clientConn, sampleHandshake(), func(wire.EventBatch) {})
	if !errors.Is(err, session.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	go func() {
		session.AcceptInbound(serverConn, func(wire.EventBatch) {}, func(wire.Handshake) (bool, string, string) {
			return true, "consumer", "id"
		})
	}()

	client, err := session.DialOutbound(clientConn, sampleHandshake(), func(wire.EventBatch) {})
	if err != nil {
		t.Fatalf("DialOutbound: %v", err)
	}

	if err := client.Close("first"); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := client.Close("second"); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
	if client.State() != session.StateClosed {
		t.Fatalf("expected StateClosed, got %v", client.State())
	}
}

func TestReadLoopDropsMalformedMessages(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	received := make(chan wire.EventBatch, 1)
	go func() {
		session.AcceptInbound(serverConn, func(b wire.EventBatch) {
			received <- b
		}, func(wire.Handshake) (bool, string, string) {
			return true, "consumer", "id"
		})
	}()

	client, err := session.DialOutbound(clientConn, sampleHandshake(), func(wire.EventBatch) {})
	if err != nil {
		t.Fatalf("DialOutbound: %v", err)
	}
	defer client.Close("done")

	// Malformed line followed by a valid batch: the malformed one must
	// be dropped without derailing the stream.
	go func() {
		clientConn.Write([]byte("not json\n"))
		data, _ := wire.Encode(wire.NewEventBatch("wacom", []wire.InputEvent{{Code: "ABS_X", Value: 1}}, 1))
		clientConn.Write(data)
	}()

	select {
	case b := <-received:
		if b.DeviceType != "wacom" {
			t.Fatalf("unexpected batch: %+v", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the valid batch to still arrive")
	}
}

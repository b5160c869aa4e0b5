// -*- Mode: Go; indent-tabs-mode: t -*-

package registry_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/icarito/transwacom/internal/registry"
	"github.com/icarito/transwacom/internal/session"
	"github.com/icarito/transwacom/internal/wire"
)

func newTestSession(t *testing.T) (*session.Session, *session.Session) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	serverDone := make(chan *session.Session, 1)
	go func() {
		s, _ := session.AcceptInbound(serverConn, func(wire.EventBatch) {}, func(wire.Handshake) (bool, string, string) {
			return true, "consumer", "id"
		})
		serverDone <- s
	}()
	hs := wire.NewHandshake("alpha", "id1", []wire.DeviceInfo{{Type: "wacom", Path: "/dev/x", Name: "x", Capabilities: []string{"pressure"}}}, "1.0")
	client, err := session.DialOutbound(clientConn, hs, func(wire.EventBatch) {})
	if err != nil {
		t.Fatalf("DialOutbound: %v", err)
	}
	server := <-serverDone
	return client, server
}

func TestAddAndSnapshotOutbound(t *testing.T) {
	client, server := newTestSession(t)
	defer client.Close("done")
	defer server.Close("done")

	r := registry.New(nil)
	r.AddOutbound("peer-1", client)

	snap := r.SnapshotOutbound()
	if _, ok := snap["peer-1"]; !ok {
		t.Fatal("expected peer-1 in snapshot")
	}

	r.RemoveOutbound("peer-1")
	if _, ok := r.SnapshotOutbound()["peer-1"]; ok {
		t.Fatal("expected peer-1 removed")
	}
}

func TestInboundAllowsMultipleSocketsPerName(t *testing.T) {
	c1, s1 := newTestSession(t)
	c2, s2 := newTestSession(t)
	defer c1.Close("done")
	defer c2.Close("done")
	defer s1.Close("done")
	defer s2.Close("done")

	r := registry.New(nil)
	r.AddInbound("studio-tablet", s1)
	r.AddInbound("studio-tablet", s2)

	snap := r.SnapshotInbound()
	if len(snap["studio-tablet"]) != 2 {
		t.Fatalf("expected 2 sessions for studio-tablet, got %d", len(snap["studio-tablet"]))
	}

	r.RemoveInbound("studio-tablet", s1)
	if len(r.SnapshotInbound()["studio-tablet"]) != 1 {
		t.Fatalf("expected 1 session left after removal")
	}
}

func TestLivenessMonitorReportsDeadSessions(t *testing.T) {
	client, server := newTestSession(t)
	defer server.Close("done")

	client.Close("simulated loss")

	found := make(chan string, 1)
	r := registry.New(func(id string) { found <- id })
	r.AddOutbound("peer-1", client)
	r.StartLivenessMonitor(nil)
	defer r.StopLivenessMonitor()

	select {
	case id := <-found:
		if id != "peer-1" {
			t.Fatalf("expected peer-1, got %s", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected liveness monitor to detect the dead session")
	}

	if _, ok := r.SnapshotOutbound()["peer-1"]; ok {
		t.Fatal("expected dead session removed from registry")
	}
}

func TestCleanupRunsOnce(t *testing.T) {
	client, server := newTestSession(t)
	r := registry.New(nil)
	r.AddOutbound("peer-1", client)
	r.AddInbound("consumer", server)

	stopCalls := 0
	captureStop := fakeCapture{stopFn: func() error { stopCalls++; return nil }}

	c := registry.NewCleanup(r, []registry.DeviceCapture{captureStop}, nil, nil, nil)
	c.Run()
	c.Run()

	if stopCalls != 1 {
		t.Fatalf("expected capture Stop called exactly once, got %d", stopCalls)
	}
	if client.State() != session.StateClosed {
		t.Fatalf("expected outbound session closed, got %v", client.State())
	}
}

type fakeCapture struct {
	stopFn func() error
}

func (f fakeCapture) Stop() error { return f.stopFn() }

func TestSupervisorCancelsOnFirstFailure(t *testing.T) {
	sup := registry.NewSupervisor()
	failErr := errors.New("boom")

	sup.Add("failing", func(ctx context.Context) error {
		return failErr
	})
	sup.Add("long-running", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := sup.Run(context.Background())
	if err == nil {
		t.Fatal("expected Run to return the first component's error")
	}
	if !errors.Is(err, failErr) {
		t.Fatalf("expected wrapped failErr, got %v", err)
	}
}

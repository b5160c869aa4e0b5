// -*- Mode: Go; indent-tabs-mode: t -*-

package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/brutella/dnssd"
)

func fakeBrowseEntrySelf(name string, port int) dnssd.BrowseEntry {
	return dnssd.BrowseEntry{
		Name: name + "." + ServiceType + ".local.",
		Port: port,
		Text: map[string]string{"version": "1.0"},
	}
}

func TestOnAddFiltersSelfRecord(t *testing.T) {
	b := NewBrowser("my-laptop", 3333, 10*time.Millisecond)
	b.updates = make(chan peerEvent, 4)

	b.onAdd(fakeBrowseEntrySelf("my-laptop", 3333))
	select {
	case <-b.updates:
		t.Fatal("expected self record to be filtered out")
	default:
	}
}

func TestSweepLoopEvictsStaleEntries(t *testing.T) {
	b := NewBrowser("me", 1, 10*time.Millisecond)
	go b.sweepLoop()
	defer b.t.Kill(nil)

	stalePeer := DiscoveredPeer{UniqueID: "peer-1", LastSeen: time.Now().Add(-1 * time.Hour)}
	b.updates <- peerEvent{kind: peerAdded, peer: stalePeer}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(b.Snapshot()) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected stale peer to be evicted")
}

func TestSweepLoopRetainsFreshEntries(t *testing.T) {
	b := NewBrowser("me", 1, 50*time.Millisecond)
	go b.sweepLoop()
	defer b.t.Kill(nil)

	fresh := DiscoveredPeer{UniqueID: "peer-1", LastSeen: time.Now()}
	b.updates <- peerEvent{kind: peerAdded, peer: fresh}

	time.Sleep(75 * time.Millisecond)
	if len(b.Snapshot()) != 1 {
		t.Fatalf("expected the fresh peer to survive one sweep, got %d entries", len(b.Snapshot()))
	}
}

func TestSweepLoopAppliesRemoval(t *testing.T) {
	b := NewBrowser("me", 1, 50*time.Millisecond)
	go b.sweepLoop()
	defer b.t.Kill(nil)

	b.updates <- peerEvent{kind: peerAdded, peer: DiscoveredPeer{UniqueID: "peer-1", LastSeen: time.Now()}}
	time.Sleep(10 * time.Millisecond)
	b.updates <- peerEvent{kind: peerRemoved, peer: DiscoveredPeer{UniqueID: "peer-1"}}
	time.Sleep(10 * time.Millisecond)

	if len(b.Snapshot()) != 0 {
		t.Fatalf("expected removal to take effect, got %d entries", len(b.Snapshot()))
	}
}

func TestOnAddBuildsAddressPortUniqueID(t *testing.T) {
	b := NewBrowser("me", 1, 10*time.Millisecond)
	b.updates = make(chan peerEvent, 4)

	b.onAdd(dnssd.BrowseEntry{
		Name: "studio-pc." + ServiceType + ".local.",
		Port: 3333,
		IPs:  []net.IP{net.ParseIP("192.168.1.5")},
		Text: map[string]string{"version": "1.0"},
	})

	select {
	case ev := <-b.updates:
		if ev.peer.UniqueID != "192.168.1.5:3333" {
			t.Fatalf("expected unique_id \"192.168.1.5:3333\", got %q", ev.peer.UniqueID)
		}
	default:
		t.Fatal("expected an add event")
	}
}

func TestParseCapabilities(t *testing.T) {
	got := parseCapabilities("pressure,tilt,eraser")
	want := []string{"pressure", "tilt", "eraser"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestParseCapabilitiesEmpty(t *testing.T) {
	if got := parseCapabilities(""); got != nil {
		t.Fatalf("expected nil for empty csv, got %v", got)
	}
}

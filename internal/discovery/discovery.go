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

// Package discovery implements mDNS advertise/browse (§4.6): each peer
// publishes a `_input-consumer._tcp.local.` record carrying its mdns
// name, port and capability metadata, and maintains a DiscoveredPeer
// table of what it has browsed, evicting stale entries. Grounded on
// original_source/discovery.py's zeroconf-based ServiceAdvertiser and
// PeerBrowser.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brutella/dnssd"
	"gopkg.in/retry.v1"
	"gopkg.in/tomb.v2"

	"github.com/icarito/transwacom/internal/logger"
)

// ServiceType is the mDNS service type every transwacom peer
// advertises and browses for (§4.6).
const ServiceType = "_input-consumer._tcp"

// DefaultRefreshInterval is the default staleness-sweep cadence; §4.6
// evicts entries older than 2.5x this value.
const DefaultRefreshInterval = 5 * time.Second

const staleFactor = 2.5

// PeerInfo is what a peer advertises about itself (§4.6): its mdns
// name, TCP port and the TXT properties {version, name,
// capabilities=csv}.
type PeerInfo struct {
	Name         string
	Port         int
	Version      string
	Capabilities []string
}

// DiscoveredPeer is one browsed peer, keyed by UniqueID (§4.6).
type DiscoveredPeer struct {
	UniqueID     string
	Name         string
	Host         string
	Port         int
	Version      string
	Capabilities []string
	LastSeen     time.Time
}

func (p PeerInfo) txt() map[string]string {
	return map[string]string{
		"version":      p.Version,
		"name":         p.Name,
		"capabilities": strings.Join(p.Capabilities, ","),
	}
}

func parseCapabilities(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

// Advertiser publishes one peer's PeerInfo over mDNS for the lifetime
// of a share, bound to the first non-loopback IPv4 address (§4.6).
type Advertiser struct {
	responder dnssd.Responder
	handle    dnssd.ServiceHandle
	t         tomb.Tomb
}

// Advertise starts publishing info on port, selecting a bind address
// via SelectAddress. Call Stop to withdraw the record.
func Advertise(ctx context.Context, info PeerInfo) (*Advertiser, error) {
	addr, err := SelectAddress()
	if err != nil {
		logger.Noticef("discovery: no non-loopback address found, advertising on loopback only")
	}

	cfg := dnssd.Config{
		Name:   info.Name,
		Type:   ServiceType,
		Domain: "local",
		Port:   info.Port,
		Text:   info.txt(),
	}
	if addr != "" {
		cfg.IPs = []string{addr}
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: cannot build service record: %w", err)
	}

	resp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: cannot create responder: %w", err)
	}
	handle, err := resp.Add(svc)
	if err != nil {
		return nil, fmt.Errorf("discovery: cannot add service: %w", err)
	}

	a := &Advertiser{responder: resp, handle: handle}
	a.t.Go(func() error {
		return resp.Respond(ctx)
	})
	return a, nil
}

// Stop withdraws the advertised record and waits for the responder to
// finish.
func (a *Advertiser) Stop() error {
	a.responder.Remove(a.handle)
	a.t.Kill(nil)
	return a.t.Wait()
}

// Browser maintains the DiscoveredPeer table for one browsing session
// (§4.6), filtering out the local peer's own record and evicting
// entries that have gone stale.
type Browser struct {
	selfName string
	selfPort int

	refreshInterval time.Duration

	t       tomb.Tomb
	updates chan peerEvent

	mu    sync.RWMutex
	table map[string]DiscoveredPeer
}

type peerEventKind int

const (
	peerAdded peerEventKind = iota
	peerRemoved
)

type peerEvent struct {
	kind peerEventKind
	peer DiscoveredPeer
}

// NewBrowser builds a Browser that filters out records matching
// (selfName, selfPort) — the discovering peer's own advertisement
// (§4.6) — and sweeps for staleness every refreshInterval (or
// DefaultRefreshInterval if zero).
func NewBrowser(selfName string, selfPort int, refreshInterval time.Duration) *Browser {
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	return &Browser{
		selfName:        selfName,
		selfPort:        selfPort,
		refreshInterval: refreshInterval,
		updates:         make(chan peerEvent, 16),
		table:           make(map[string]DiscoveredPeer),
	}
}

// Start begins browsing in the background. Snapshot returns the
// current peer table at any point after Start.
func (b *Browser) Start(ctx context.Context) {
	b.t.Go(func() error { return b.browseWithRestart(ctx) })
	b.t.Go(func() error { return b.sweepLoop() })
}

// Stop terminates browsing and waits for completion.
func (b *Browser) Stop() error {
	b.t.Kill(nil)
	return b.t.Wait()
}

// Snapshot returns a copy of the current DiscoveredPeer table.
func (b *Browser) Snapshot() map[string]DiscoveredPeer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]DiscoveredPeer, len(b.table))
	for k, v := range b.table {
		out[k] = v
	}
	return out
}

// browseWithRestart runs the dnssd lookup, restarting it with backoff
// if it exits early (e.g. a transient network interface change). Per
// §7, this backoff governs mDNS browsing only — a dropped session is
// never retried.
func (b *Browser) browseWithRestart(ctx context.Context) error {
	strategy := retry.LimitTime(0, retry.Exponential{
		Initial: 500 * time.Millisecond,
		Factor:  2,
		MaxDelay: 30 * time.Second,
	})

	for a := retry.StartWithCancel(strategy, nil, b.t.Dying()); a.Next(b.t.Dying()); {
		select {
		case <-b.t.Dying():
			return nil
		default:
		}

		err := dnssd.LookupType(ctx, ServiceType+".local.", b.onAdd, b.onRemove)
		if err == nil || b.t.Alive() == false {
			return err
		}
		logger.Debugf("discovery: browse session ended (%v), restarting", err)
	}
	return nil
}

// uniqueID builds the §3 data-model key for a browse entry:
// "address:port", the same key registry.AddOutbound expects. It falls
// back to the raw service name on the rare entry with no resolved
// address yet, rather than dropping it.
func uniqueID(e dnssd.BrowseEntry) string {
	if len(e.IPs) == 0 {
		return e.Name
	}
	return e.IPs[0].String() + ":" + strconv.Itoa(e.Port)
}

func (b *Browser) onAdd(e dnssd.BrowseEntry) {
	name := strings.TrimSuffix(e.Name, "."+ServiceType+".local.")
	if name == b.selfName && e.Port == b.selfPort {
		return
	}

	host := ""
	if len(e.IPs) > 0 {
		host = e.IPs[0].String()
	}

	peer := DiscoveredPeer{
		UniqueID:     uniqueID(e),
		Name:         name,
		Host:         host,
		Port:         e.Port,
		Version:      e.Text["version"],
		Capabilities: parseCapabilities(e.Text["capabilities"]),
		LastSeen:     time.Now(),
	}
	select {
	case b.updates <- peerEvent{kind: peerAdded, peer: peer}:
	case <-b.t.Dying():
	}
}

func (b *Browser) onRemove(e dnssd.BrowseEntry) {
	select {
	case b.updates <- peerEvent{kind: peerRemoved, peer: DiscoveredPeer{UniqueID: uniqueID(e)}}:
	case <-b.t.Dying():
	}
}

// sweepLoop owns the peer table: it is the only goroutine that
// mutates it, applying add/remove events from onAdd/onRemove and
// evicting entries older than 2.5x the refresh interval (§4.6).
func (b *Browser) sweepLoop() error {
	ticker := time.NewTicker(b.refreshInterval)
	defer ticker.Stop()

	staleAfter := time.Duration(float64(b.refreshInterval) * staleFactor)

	for {
		select {
		case <-b.t.Dying():
			return nil
		case ev := <-b.updates:
			b.mu.Lock()
			switch ev.kind {
			case peerAdded:
				b.table[ev.peer.UniqueID] = ev.peer
			case peerRemoved:
				delete(b.table, ev.peer.UniqueID)
			}
			b.mu.Unlock()
		case <-ticker.C:
			now := time.Now()
			b.mu.Lock()
			for id, p := range b.table {
				if now.Sub(p.LastSeen) > staleAfter {
					delete(b.table, id)
				}
			}
			b.mu.Unlock()
		}
	}
}

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

// Command transwacomd is the transwacom daemon: it advertises and/or
// discovers input-sharing peers, captures local devices for a host
// share, and injects received events on the consumer side (§6).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/coreos/go-systemd/daemon"

	"github.com/icarito/transwacom/internal/capture"
	"github.com/icarito/transwacom/internal/cliui"
	"github.com/icarito/transwacom/internal/config"
	"github.com/icarito/transwacom/internal/controlapi"
	"github.com/icarito/transwacom/internal/devicectl"
	"github.com/icarito/transwacom/internal/devices"
	"github.com/icarito/transwacom/internal/discovery"
	"github.com/icarito/transwacom/internal/identity"
	"github.com/icarito/transwacom/internal/inject"
	"github.com/icarito/transwacom/internal/logger"
	"github.com/icarito/transwacom/internal/registry"
	"github.com/icarito/transwacom/internal/session"
	"github.com/icarito/transwacom/internal/trust"
	"github.com/icarito/transwacom/internal/wire"
)

// discoverWindow is the §6 "--discover: Browse for 10s then present
// menu" duration.
const discoverWindow = 10 * time.Second

// controlAPIAddr is the loopback-only bind address for the UI
// collaborator's polling surface (§1, B).
const controlAPIAddr = "127.0.0.1:7733"

type options struct {
	Host           bool   `long:"host" description:"Record host as the startup mode; the daemon still serves inbound shares"`
	Consumer       bool   `long:"consumer" description:"Record consumer as the startup mode; --connect is still honoured"`
	Unified        bool   `long:"unified" description:"Both roles (default)"`
	Discover       bool   `long:"discover" description:"Browse for 10s then present a menu"`
	Connect        string `long:"connect" value-name:"ADDR[:PORT]" description:"Direct outbound session"`
	Device         string `long:"device" value-name:"PATH" description:"Pin a specific local device"`
	ListDevices    bool   `long:"list-devices" description:"Print detected devices and exit"`
	Port           int    `long:"port" description:"Override listen port"`
	NoRelativeMode bool   `long:"no-relative-mode" description:"Do not switch the tablet to relative mode"`
	NoDisableLocal bool   `long:"no-disable-local" description:"Do not disable local event delivery"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}

	logger.SimpleSetup()

	configDir, err := config.DefaultDir()
	if err != nil {
		logger.Noticef("transwacomd: %v", err)
		return 1
	}

	id, err := identity.Load(configDir)
	if err != nil {
		logger.Noticef("transwacomd: %v", err)
		return 1
	}

	mgr, err := config.Load(configDir, id.MachineName)
	if err != nil {
		logger.Noticef("transwacomd: %v", err)
		return 1
	}
	applyFlagOverrides(mgr, opts)

	vendorDB, err := devices.LoadVendorDB(vendorDBPath(configDir))
	if err != nil {
		logger.Noticef("transwacomd: %v", err)
		return 1
	}

	switch {
	case opts.ListDevices:
		return runListDevices(vendorDB)
	case opts.Discover:
		return runDiscover(id, mgr.Config())
	default:
		return runDaemon(opts, id, mgr, vendorDB)
	}
}

func vendorDBPath(configDir string) string {
	return configDir + "/vendors.ini"
}

func applyFlagOverrides(mgr *config.Manager, opts options) {
	mgr.Update(func(cfg *config.Configuration) {
		if opts.Port != 0 {
			cfg.Consumer.Network.Port = opts.Port
		}
		if opts.NoRelativeMode {
			cfg.Host.RelativeMode = false
		}
		if opts.NoDisableLocal {
			cfg.Host.DisableLocal = false
		}
		switch {
		case opts.Host:
			cfg.General.StartupMode = config.StartupHost
		case opts.Consumer:
			cfg.General.StartupMode = config.StartupConsumer
		case opts.Unified:
			cfg.General.StartupMode = config.StartupUnified
		}
	})
}

func runListDevices(vendorDB *devices.VendorDB) int {
	found, err := devices.Enumerate("", vendorDB)
	if err != nil {
		logger.Noticef("transwacomd: %v", err)
		return 1
	}
	fmt.Print(cliui.RenderDeviceList(found))
	return 0
}

func runDiscover(id identity.MachineIdentity, cfg config.Configuration) int {
	browser := discovery.NewBrowser(id.MachineName, cfg.Consumer.Network.Port, discovery.DefaultRefreshInterval)
	ctx, cancel := context.WithTimeout(context.Background(), discoverWindow)
	defer cancel()

	browser.Start(ctx)
	<-ctx.Done()
	browser.Stop()

	peers := browser.Snapshot()
	list := make([]discovery.DiscoveredPeer, 0, len(peers))
	for _, p := range peers {
		list = append(list, p)
	}
	fmt.Print(cliui.RenderDiscoveredPeers(list))
	return 0
}

// outboundShare is a host-initiated share in progress: the session
// carrying it plus the capture loops feeding it, so both can be torn
// down together whether from the registry's liveness monitor (§4.8)
// or from process shutdown.
type outboundShare struct {
	session *session.Session
	loops   []*capture.Loop
}

func (sh *outboundShare) stop(reason string) {
	for _, l := range sh.loops {
		l.Stop()
	}
	sh.session.Close(reason)
}

// dialOutboundShare implements the host role of a direct outbound
// share to --connect ADDR[:PORT], bypassing discovery: dial the
// consumer, then capture and stream local devices. The returned
// uniqueID is the "address:port" key the caller registers the share
// under (§3's DiscoveredPeer/Session data model).
func dialOutboundShare(opts options, id identity.MachineIdentity, mgr *config.Manager, vendorDB *devices.VendorDB) (string, *outboundShare, error) {
	addr := opts.Connect
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, mgr.Config().Consumer.Network.Port)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("cannot connect to %s: %w", addr, err)
	}

	found, err := devices.Enumerate(opts.Device, vendorDB)
	if err != nil {
		conn.Close()
		return "", nil, err
	}
	if len(found) == 0 {
		conn.Close()
		return "", nil, fmt.Errorf("no matching local devices to share")
	}

	wireDevices := make([]wire.DeviceInfo, 0, len(found))
	for _, d := range found {
		wireDevices = append(wireDevices, d.ToWire())
	}
	handshake := wire.NewHandshake(id.MachineName, id.MachineID, wireDevices, "1.0")

	s, err := session.DialOutbound(conn, handshake, func(batch wire.EventBatch) {
		logger.Debugf("transwacomd: unexpected inbound batch on a host session, ignoring")
	})
	if err != nil {
		return "", nil, fmt.Errorf("session rejected: %w", err)
	}

	cfg := mgr.Config()
	loops, err := startCaptures(found, s, cfg.Host.RelativeMode, cfg.Host.DisableLocal)
	if err != nil {
		s.Close("capture setup failed")
		return "", nil, err
	}

	return addr, &outboundShare{session: s, loops: loops}, nil
}

// startCaptures opens one capture.Loop per descriptor in found,
// batching its events into wire.EventBatch messages sent over s.
// disableLocal gates whether a devicectl.Controller is attached at all
// (§4.5: "Do not disable local input" opts out of device control
// entirely, not just the disable step).
func startCaptures(found []devices.Descriptor, s *session.Session, relativeMode, disableLocal bool) ([]*capture.Loop, error) {
	loops := make([]*capture.Loop, 0, len(found))
	for _, desc := range found {
		src, err := capture.NewLinuxSource(desc)
		if err != nil {
			for _, l := range loops {
				l.Stop()
			}
			return nil, fmt.Errorf("opening %s: %w", desc.Path, err)
		}

		var ctl devicectl.Controller
		if disableLocal {
			ctl = devicectl.NewController(desc.Path, relativeMode)
		}

		sink := func(class devices.Class, events []wire.InputEvent) {
			batch := wire.EventBatch{
				Type:       wire.TypeEvent,
				DeviceType: string(class),
				Events:     events,
			}
			if err := s.SendBatch(batch); err != nil {
				logger.Debugf("transwacomd: send batch: %v", err)
			}
		}

		loop := capture.NewLoop(src, sink, ctl)
		loop.Start()
		loops = append(loops, loop)
	}
	return loops, nil
}

// runDaemon runs the long-lived process: an inbound listener, an mDNS
// advertisement, the loopback control API and, when --connect is
// given, an outbound host share — all sharing one Registry so §1's
// "every peer is symmetrical" contract and §4.8's liveness monitor
// apply uniformly, regardless of role flags. It does not browse for
// peers, so the control API's peer list is always empty.
func runDaemon(opts options, id identity.MachineIdentity, mgr *config.Manager, vendorDB *devices.VendorDB) int {
	cfg := mgr.Config()
	port := cfg.Consumer.Network.Port

	var sharesMu sync.Mutex
	shares := make(map[string]*outboundShare)

	reg := registry.New(func(peerID string) {
		logger.Noticef("transwacomd: connection lost: %s", peerID)
		sharesMu.Lock()
		sh, ok := shares[peerID]
		delete(shares, peerID)
		sharesMu.Unlock()
		if ok {
			sh.stop("peer connection lost")
		}
	})
	reg.StartLivenessMonitor(nil)

	broker := controlapi.NewPromptBroker()
	api := controlapi.NewServer(controlapi.Config{
		Addr:    controlAPIAddr,
		Prompts: broker,
		Peers:   func() map[string]discovery.DiscoveredPeer { return nil },
		Sessions: func() []controlapi.SessionStatus {
			return sessionStatuses(reg)
		},
	})

	backend := inject.LoggingBackend{}
	router := inject.NewRouter(backend)

	sup := registry.NewSupervisor()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Noticef("transwacomd: cannot listen on port %d: %v", port, err)
		return 1
	}

	sup.Add("listener", func(ctx context.Context) error {
		return serveInbound(ctx, ln, mgr, router, reg, broker, id.MachineID)
	})

	peerInfo := discovery.PeerInfo{
		Name:    id.MachineName,
		Port:    port,
		Version: "1.0",
	}
	sup.Add("discovery", func(ctx context.Context) error {
		adv, err := discovery.Advertise(ctx, peerInfo)
		if err != nil {
			return err
		}
		<-ctx.Done()
		return adv.Stop()
	})

	sup.Add("controlapi", func(ctx context.Context) error {
		if err := api.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		return api.Stop(context.Background())
	})

	var captures []registry.DeviceCapture
	if opts.Connect != "" {
		uniqueID, sh, err := dialOutboundShare(opts, id, mgr, vendorDB)
		if err != nil {
			logger.Noticef("transwacomd: %v", err)
			ln.Close()
			return 1
		}
		reg.AddOutbound(uniqueID, sh.session)
		sharesMu.Lock()
		shares[uniqueID] = sh
		sharesMu.Unlock()
		for _, l := range sh.loops {
			captures = append(captures, l)
		}
	}

	cleanup := registry.NewCleanup(reg, captures, router, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go waitForSignalThen(cancel, cleanup)

	notifyReady()
	err = sup.Run(ctx)
	cleanup.Run()
	if err != nil && ctx.Err() == nil {
		logger.Noticef("transwacomd: %v", err)
		return 1
	}
	return 0
}

func serveInbound(ctx context.Context, ln net.Listener, mgr *config.Manager, router *inject.Router, reg *registry.Registry, prompter trust.Prompter, consumerID string) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go handleInbound(ctx, conn, mgr, router, reg, prompter, consumerID)
	}
}

func handleInbound(ctx context.Context, conn net.Conn, mgr *config.Manager, router *inject.Router, reg *registry.Registry, prompter trust.Prompter, consumerID string) {
	var peerName string
	s, err := session.AcceptInbound(conn, func(batch wire.EventBatch) {
		if err := router.HandleBatch(batch); err != nil {
			logger.Noticef("transwacomd: %v", err)
		}
	}, func(hs wire.Handshake) (bool, string, string) {
		peerName = hs.HostName
		reqDevices := make([]devices.Descriptor, 0, len(hs.Devices))
		for _, d := range hs.Devices {
			reqDevices = append(reqDevices, devices.FromWire(d))
		}
		accept, err := trust.Resolve(ctx, mgr, prompter, trust.Request{
			PeerName: hs.HostName,
			PeerID:   hs.HostID,
			Devices:  reqDevices,
		})
		if err != nil {
			logger.Debugf("transwacomd: trust resolution error: %v", err)
		}
		return accept, mgr.Config().Consumer.Network.MDNSName, consumerID
	})
	if err != nil {
		logger.Debugf("transwacomd: inbound session rejected: %v", err)
		return
	}

	reg.AddInbound(peerName, s)
	s.Wait()
	reg.RemoveInbound(peerName, s)
}

func sessionStatuses(reg *registry.Registry) []controlapi.SessionStatus {
	var out []controlapi.SessionStatus
	for id, s := range reg.SnapshotOutbound() {
		out = append(out, controlapi.SessionStatus{PeerName: id, Direction: "outbound", State: s.State().String()})
	}
	for name, sessions := range reg.SnapshotInbound() {
		for _, s := range sessions {
			out = append(out, controlapi.SessionStatus{PeerName: name, Direction: "inbound", State: s.State().String()})
		}
	}
	return out
}

func waitForSignalThen(cancel context.CancelFunc, cleanup *registry.Cleanup) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	cancel()
	cleanup.Run()
}

func notifyReady() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debugf("transwacomd: systemd readiness notification failed: %v", err)
	}
}

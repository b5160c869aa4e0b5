// -*- Mode: Go; indent-tabs-mode: t -*-

//go:build linux

package discovery

import (
	"errors"
	"net"

	"github.com/vishvananda/netlink"
)

// SelectAddress returns the first non-loopback IPv4 address bound to
// any up interface, per §4.6's binding rule. If none exists, it
// returns an error and callers fall back to loopback-only advertising.
func SelectAddress() (string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return "", err
	}
	for _, link := range links {
		attrs := link.Attrs()
		if attrs.Flags&net.FlagLoopback != 0 {
			continue
		}
		if attrs.OperState != netlink.OperUp {
			continue
		}
		addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if a.IP.IsLoopback() || a.IP.To4() == nil {
				continue
			}
			return a.IP.String(), nil
		}
	}
	return "", errors.New("discovery: no non-loopback IPv4 address found")
}

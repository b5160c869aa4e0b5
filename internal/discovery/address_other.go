// -*- Mode: Go; indent-tabs-mode: t -*-

//go:build !linux

package discovery

import (
	"errors"
	"net"
)

// SelectAddress falls back to net.InterfaceAddrs outside Linux, where
// netlink isn't available; same first-non-loopback-IPv4 rule (§4.6).
func SelectAddress() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", errors.New("discovery: no non-loopback IPv4 address found")
}

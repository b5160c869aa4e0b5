// -*- Mode: Go; indent-tabs-mode: t -*-

package cliui

import (
	"strconv"
	"strings"

	"github.com/icarito/transwacom/internal/devices"
	"github.com/icarito/transwacom/internal/discovery"
)

// RenderDiscoveredPeers formats the --discover menu (§6): a numbered
// list of peers found during the browse window, suitable for a
// "choose a peer" prompt.
func RenderDiscoveredPeers(peers []discovery.DiscoveredPeer) string {
	rows := make([][]string, 0, len(peers))
	for i, p := range peers {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			p.Name,
			p.Host + ":" + strconv.Itoa(p.Port),
			strings.Join(p.Capabilities, ","),
		})
	}
	t := Table{
		Headers: []string{"#", "Name", "Address", "Capabilities"},
		Rows:    rows,
	}
	return t.Render()
}

// RenderDeviceList formats the --list-devices table (§6).
func RenderDeviceList(descs []devices.Descriptor) string {
	rows := make([][]string, 0, len(descs))
	for _, d := range descs {
		rows = append(rows, []string{
			string(d.Class),
			d.Path,
			d.Name,
			strings.Join(d.Capabilities, ","),
		})
	}
	t := Table{
		Headers: []string{"Class", "Path", "Name", "Capabilities"},
		Rows:    rows,
	}
	return t.Render()
}

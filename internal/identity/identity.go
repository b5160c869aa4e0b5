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

// Package identity derives the stable per-installation MachineIdentity
// (§3) transwacom advertises to peers and checks trust against.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// MachineIdentity is the stable fingerprint/hostname pair of this
// installation. It is derived once at startup and never mutated.
type MachineIdentity struct {
	MachineID   string
	MachineName string
}

const seedFileName = ".machine-seed"

// Load resolves this machine's identity: hostname plus a 16-hex-char
// fingerprint. The fingerprint is derived from the hostname and a
// machine-scoped persistent seed — the hardware address of the first
// non-loopback network interface when one exists (mirroring
// original_source/config_manager.py's use of uuid.getnode()), or
// otherwise a random seed generated once and persisted under
// configDir, so the identity survives process restarts.
func Load(configDir string) (MachineIdentity, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return MachineIdentity{}, fmt.Errorf("identity: cannot resolve hostname: %w", err)
	}

	seed, err := persistentSeed(configDir)
	if err != nil {
		return MachineIdentity{}, err
	}

	return MachineIdentity{
		MachineID:   Fingerprint(hostname, seed),
		MachineName: hostname,
	}, nil
}

// Fingerprint derives a stable 16-hex-char identifier from a hostname
// and a persistent seed, mirroring original_source/config_manager.py's
// _get_machine_fingerprint (hostname + MAC, sha256, truncated) with
// blake2b in place of sha256 (see DESIGN.md).
func Fingerprint(hostname, seed string) string {
	sum := blake2b.Sum256([]byte(hostname + ":" + seed))
	return hex.EncodeToString(sum[:])[:16]
}

func persistentSeed(configDir string) (string, error) {
	if mac := firstInterfaceMAC(); mac != "" {
		return mac, nil
	}
	return loadOrCreateSeedFile(configDir)
}

func firstInterfaceMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return ""
}

func loadOrCreateSeedFile(configDir string) (string, error) {
	path := filepath.Join(configDir, seedFileName)
	if data, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(data)), nil
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identity: cannot generate fallback seed: %w", err)
	}
	seed := hex.EncodeToString(buf)

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("identity: cannot create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(seed+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("identity: cannot persist fallback seed: %w", err)
	}
	return seed, nil
}

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

// Package config persists the typed Configuration of §3 as YAML under
// the user's config directory, mirroring
// original_source/config_manager.py's ConfigManager: defaults, a
// deep merge over a partial file, and synchronous writes.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/icarito/transwacom/internal/logger"
)

// StartupMode selects which roles a unified process assumes at launch.
type StartupMode string

const (
	StartupHost     StartupMode = "host"
	StartupConsumer StartupMode = "consumer"
	StartupUnified  StartupMode = "unified"
	StartupNone     StartupMode = "none"
)

// TrustedConsumerEntry is a trusted-consumers registry row (host's
// viewpoint, §3 TrustedPeer).
type TrustedConsumerEntry struct {
	ConsumerID           string   `yaml:"consumer_id"`
	AutoAccept           bool     `yaml:"auto_accept"`
	AllowedDeviceClasses []string `yaml:"allowed_device_classes,omitempty"`
}

// TrustedHostEntry is a trusted-hosts registry row (consumer's
// viewpoint, §3 TrustedPeer).
type TrustedHostEntry struct {
	HostID     string `yaml:"host_id"`
	AutoAccept bool   `yaml:"auto_accept"`
}

// NetworkConfig is consumer.network.*.
type NetworkConfig struct {
	Port     int    `yaml:"port"`
	MDNSName string `yaml:"mdns_name"`
}

// DevicesConfig is consumer.devices.*.
type DevicesConfig struct {
	WacomEnabled    bool `yaml:"wacom_enabled"`
	JoystickEnabled bool `yaml:"joystick_enabled"`
}

// ConsumerConfig is the consumer.* subtree.
type ConsumerConfig struct {
	Network           NetworkConfig               `yaml:"network"`
	Devices           DevicesConfig               `yaml:"devices"`
	AutoAcceptTrusted bool                        `yaml:"auto_accept_trusted"`
	TrustedHosts      map[string]TrustedHostEntry `yaml:"trusted_hosts"`
}

// HostConfig is the host.* subtree.
type HostConfig struct {
	RelativeMode     bool                            `yaml:"relative_mode"`
	DisableLocal     bool                            `yaml:"disable_local"`
	TrustedConsumers map[string]TrustedConsumerEntry `yaml:"trusted_consumers"`
}

// GeneralConfig is the general.* subtree.
type GeneralConfig struct {
	LogLevel    string      `yaml:"log_level"`
	StartupMode StartupMode `yaml:"startup_mode"`
}

// Configuration is the full persisted settings document (§3).
type Configuration struct {
	Host     HostConfig     `yaml:"host"`
	Consumer ConsumerConfig `yaml:"consumer"`
	General  GeneralConfig  `yaml:"general"`
}

// Defaults returns the built-in configuration defaults.
func Defaults(hostname string) Configuration {
	return Configuration{
		Host: HostConfig{
			RelativeMode:     true,
			DisableLocal:     true,
			TrustedConsumers: map[string]TrustedConsumerEntry{},
		},
		Consumer: ConsumerConfig{
			Network: NetworkConfig{
				Port:     3333,
				MDNSName: hostname,
			},
			Devices: DevicesConfig{
				WacomEnabled:    true,
				JoystickEnabled: true,
			},
			AutoAcceptTrusted: true,
			TrustedHosts:      map[string]TrustedHostEntry{},
		},
		General: GeneralConfig{
			LogLevel:    "INFO",
			StartupMode: StartupUnified,
		},
	}
}

// overlay mirrors Configuration but with pointer booleans, so Load can
// tell "absent from the file" apart from "explicitly false" when
// merging a partial file over the defaults (a plain bool field cannot
// make that distinction after unmarshalling).
type overlay struct {
	Host struct {
		RelativeMode     *bool                           `yaml:"relative_mode"`
		DisableLocal     *bool                            `yaml:"disable_local"`
		TrustedConsumers map[string]TrustedConsumerEntry `yaml:"trusted_consumers"`
	} `yaml:"host"`
	Consumer struct {
		Network struct {
			Port     int    `yaml:"port"`
			MDNSName string `yaml:"mdns_name"`
		} `yaml:"network"`
		Devices struct {
			WacomEnabled    *bool `yaml:"wacom_enabled"`
			JoystickEnabled *bool `yaml:"joystick_enabled"`
		} `yaml:"devices"`
		AutoAcceptTrusted *bool                       `yaml:"auto_accept_trusted"`
		TrustedHosts      map[string]TrustedHostEntry `yaml:"trusted_hosts"`
	} `yaml:"consumer"`
	General struct {
		LogLevel    string      `yaml:"log_level"`
		StartupMode StartupMode `yaml:"startup_mode"`
	} `yaml:"general"`
}

func mergeOverlay(base Configuration, o overlay) Configuration {
	out := base

	if o.Host.RelativeMode != nil {
		out.Host.RelativeMode = *o.Host.RelativeMode
	}
	if o.Host.DisableLocal != nil {
		out.Host.DisableLocal = *o.Host.DisableLocal
	}
	if o.Host.TrustedConsumers != nil {
		out.Host.TrustedConsumers = o.Host.TrustedConsumers
	}

	if o.Consumer.Network.Port != 0 {
		out.Consumer.Network.Port = o.Consumer.Network.Port
	}
	if o.Consumer.Network.MDNSName != "" {
		out.Consumer.Network.MDNSName = o.Consumer.Network.MDNSName
	}
	if o.Consumer.Devices.WacomEnabled != nil {
		out.Consumer.Devices.WacomEnabled = *o.Consumer.Devices.WacomEnabled
	}
	if o.Consumer.Devices.JoystickEnabled != nil {
		out.Consumer.Devices.JoystickEnabled = *o.Consumer.Devices.JoystickEnabled
	}
	if o.Consumer.AutoAcceptTrusted != nil {
		out.Consumer.AutoAcceptTrusted = *o.Consumer.AutoAcceptTrusted
	}
	if o.Consumer.TrustedHosts != nil {
		out.Consumer.TrustedHosts = o.Consumer.TrustedHosts
	}

	if o.General.LogLevel != "" {
		out.General.LogLevel = o.General.LogLevel
	}
	if o.General.StartupMode != "" {
		out.General.StartupMode = o.General.StartupMode
	}
	return out
}

// Manager owns a Configuration and persists it to disk.
type Manager struct {
	dir  string
	file string
	cfg  Configuration
}

// DefaultDir resolves $XDG_CONFIG_HOME/transwacom, falling back to
// ~/.config/transwacom, matching
// original_source/config_manager.py's _get_default_config_dir.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "transwacom"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "transwacom"), nil
}

// Load reads transwacom.yaml from dir, merging it over the defaults.
// A missing file is not an error: Load returns the defaults untouched.
func Load(dir, hostname string) (*Manager, error) {
	m := &Manager{
		dir:  dir,
		file: filepath.Join(dir, "transwacom.yaml"),
		cfg:  Defaults(hostname),
	}

	data, err := os.ReadFile(m.file)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("config: cannot read %s: %w", m.file, err)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		logger.Noticef("config: ignoring malformed %s: %v", m.file, err)
		return m, nil
	}
	m.cfg = mergeOverlay(m.cfg, o)
	return m, nil
}

// Config returns the in-memory configuration.
func (m *Manager) Config() Configuration {
	return m.cfg
}

// Save writes the current configuration to disk synchronously via a
// temp-file-then-rename, so the trust registries (a view over this
// same file, §5) observe a consistent write even if interrupted.
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return fmt.Errorf("config: cannot create %s: %w", m.dir, err)
	}
	data, err := yaml.Marshal(m.cfg)
	if err != nil {
		return fmt.Errorf("config: cannot marshal configuration: %w", err)
	}
	tmp := m.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("config: cannot write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, m.file); err != nil {
		return fmt.Errorf("config: cannot install %s: %w", m.file, err)
	}
	return nil
}

// Update applies fn to the in-memory configuration and persists the
// result.
func (m *Manager) Update(fn func(*Configuration)) error {
	fn(&m.cfg)
	return m.Save()
}

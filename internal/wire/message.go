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

// Package wire implements the line-delimited JSON session protocol of
// §4.1: the message taxonomy and the framer that turns a byte stream
// into discrete messages (and back), mirroring
// original_source/transnetwork.py's NetworkProtocol.
package wire

// Type is the closed set of message type discriminators (§4.1).
type Type string

const (
	TypeHandshake    Type = "handshake"
	TypeAuthResponse Type = "auth_response"
	TypeEvent        Type = "event"
	TypeDisconnect   Type = "disconnect"
)

// DeviceInfo is the wire form of a DeviceDescriptor carried in a
// handshake (§3, §6).
type DeviceInfo struct {
	Type         string   `json:"type"`
	Path         string   `json:"path"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	VendorID     string   `json:"vendor_id,omitempty"`
	ProductID    string   `json:"product_id,omitempty"`
}

// InputEvent is the wire form of a single input event (§3).
type InputEvent struct {
	Code      string  `json:"code"`
	Value     int     `json:"value"`
	Timestamp float64 `json:"timestamp"`
}

// Handshake is host → consumer (§4.1).
type Handshake struct {
	Type     Type         `json:"type"`
	HostName string       `json:"host_name"`
	HostID   string       `json:"host_id"`
	Devices  []DeviceInfo `json:"devices"`
	Version  string       `json:"version"`
}

// AuthResponse is consumer → host (§4.1).
type AuthResponse struct {
	Type         Type   `json:"type"`
	Accepted     bool   `json:"accepted"`
	ConsumerName string `json:"consumer_name"`
	ConsumerID   string `json:"consumer_id"`
}

// EventBatch is host → consumer (§4.1); wire name kept singular
// "event" per the taxonomy table even though it carries a batch.
type EventBatch struct {
	Type       Type         `json:"type"`
	DeviceType string       `json:"device_type"`
	Events     []InputEvent `json:"events"`
	Timestamp  float64      `json:"timestamp"`
}

// Disconnect is either direction (§4.1).
type Disconnect struct {
	Type      Type    `json:"type"`
	Reason    string  `json:"reason"`
	Timestamp float64 `json:"timestamp"`
}

// NewHandshake builds a handshake message.
func NewHandshake(hostName, hostID string, devices []DeviceInfo, version string) Handshake {
	return Handshake{Type: TypeHandshake, HostName: hostName, HostID: hostID, Devices: devices, Version: version}
}

// NewAuthResponse builds an auth_response message.
func NewAuthResponse(accepted bool, consumerName, consumerID string) AuthResponse {
	return AuthResponse{Type: TypeAuthResponse, Accepted: accepted, ConsumerName: consumerName, ConsumerID: consumerID}
}

// NewEventBatch builds an event message.
func NewEventBatch(deviceType string, events []InputEvent, timestamp float64) EventBatch {
	return EventBatch{Type: TypeEvent, DeviceType: deviceType, Events: events, Timestamp: timestamp}
}

// NewDisconnect builds a disconnect message.
func NewDisconnect(reason string, timestamp float64) Disconnect {
	return Disconnect{Type: TypeDisconnect, Reason: reason, Timestamp: timestamp}
}

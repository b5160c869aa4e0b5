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

// Package trust implements the authorisation workflow of §4.7: trust
// is keyed by (name, peer_id); a known, auto-accepted peer is let in
// silently, everyone else is prompted through the UI collaborator with
// a 30s timeout that defaults to rejection. Grounded on
// original_source/trust_manager.py's TrustManager.
package trust

import (
	"context"
	"errors"
	"time"

	"github.com/icarito/transwacom/internal/config"
	"github.com/icarito/transwacom/internal/devices"
	"github.com/icarito/transwacom/internal/logger"
)

// PromptTimeout is the §4.7 "30s timeout with no answer" bound on an
// interactive authorisation prompt.
const PromptTimeout = 30 * time.Second

// Decision is a user's answer to an authorisation prompt (§4.7).
type Decision int

const (
	// DecisionReject rejects the incoming peer for this session.
	DecisionReject Decision = iota
	// DecisionAcceptOnce accepts for this session only.
	DecisionAcceptOnce
	// DecisionAcceptAndTrust accepts and additionally registers the
	// peer with auto_accept=true.
	DecisionAcceptAndTrust
)

// Request describes what the UI collaborator should show the user
// when prompting for authorisation (§4.7: "host name and requested
// device list").
type Request struct {
	PeerName string
	PeerID   string
	Devices  []devices.Descriptor
}

// Prompter is the out-of-scope UI collaborator's seam (§1): it must
// return within PromptTimeout or the caller treats it as a timeout
// (i.e. DecisionReject).
type Prompter interface {
	Prompt(ctx context.Context, req Request) (Decision, error)
}

// ErrPromptTimedOut is returned by WithTimeout when the prompter does
// not answer within PromptTimeout.
var ErrPromptTimedOut = errors.New("trust: authorisation prompt timed out")

// WithTimeout wraps a Prompter call with §4.7's 30s bound, converting
// both an explicit context deadline and the prompter simply taking too
// long into DecisionReject.
func WithTimeout(ctx context.Context, p Prompter, req Request) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, PromptTimeout)
	defer cancel()

	type result struct {
		d   Decision
		err error
	}
	done := make(chan result, 1)
	go func() {
		d, err := p.Prompt(ctx, req)
		done <- result{d, err}
	}()

	select {
	case r := <-done:
		return r.d, r.err
	case <-ctx.Done():
		return DecisionReject, ErrPromptTimedOut
	}
}

// EvaluateKnownHost implements §4.7 step 1: a silent accept when
// hostName is registered, its stored peer ID matches hostID, and
// auto_accept is set.
func EvaluateKnownHost(cfg config.Configuration, hostName, hostID string) bool {
	entry, ok := cfg.Consumer.TrustedHosts[hostName]
	if !ok {
		return false
	}
	return entry.AutoAccept && entry.HostID == hostID
}

// RecordTrustedHost implements the "Accept & trust" outcome of §4.7,
// appending hostName/hostID to the trusted-hosts registry with
// auto_accept=true and persisting it. Trust is keyed by (name,
// peer_id): calling this for a name already present overwrites its
// entry, invalidating whatever peer ID it previously trusted.
func RecordTrustedHost(mgr *config.Manager, hostName, hostID string) error {
	return mgr.Update(func(cfg *config.Configuration) {
		if cfg.Consumer.TrustedHosts == nil {
			cfg.Consumer.TrustedHosts = map[string]config.TrustedHostEntry{}
		}
		cfg.Consumer.TrustedHosts[hostName] = config.TrustedHostEntry{
			HostID:     hostID,
			AutoAccept: true,
		}
	})
}

// RevokeTrustedHost removes hostName from the trusted-hosts registry
// (§4.7 "revocation is by registry removal").
func RevokeTrustedHost(mgr *config.Manager, hostName string) error {
	return mgr.Update(func(cfg *config.Configuration) {
		delete(cfg.Consumer.TrustedHosts, hostName)
	})
}

// EvaluateKnownConsumer is EvaluateKnownHost's mirror for the host
// role, used when a unified-mode process evaluates an incoming
// consumer against its trusted-consumers registry.
func EvaluateKnownConsumer(cfg config.Configuration, consumerName, consumerID string) bool {
	entry, ok := cfg.Host.TrustedConsumers[consumerName]
	if !ok {
		return false
	}
	return entry.AutoAccept && entry.ConsumerID == consumerID
}

// RecordTrustedConsumer is RecordTrustedHost's mirror for the host
// role.
func RecordTrustedConsumer(mgr *config.Manager, consumerName, consumerID string) error {
	return mgr.Update(func(cfg *config.Configuration) {
		if cfg.Host.TrustedConsumers == nil {
			cfg.Host.TrustedConsumers = map[string]config.TrustedConsumerEntry{}
		}
		cfg.Host.TrustedConsumers[consumerName] = config.TrustedConsumerEntry{
			ConsumerID: consumerID,
			AutoAccept: true,
		}
	})
}

// RevokeTrustedConsumer removes consumerName from the trusted-
// consumers registry.
func RevokeTrustedConsumer(mgr *config.Manager, consumerName string) error {
	return mgr.Update(func(cfg *config.Configuration) {
		delete(cfg.Host.TrustedConsumers, consumerName)
	})
}

// Resolve runs the full §4.7 workflow for an incoming host handshake:
// a silent accept for a known, auto-accepted host, otherwise a
// timeout-bounded prompt. On DecisionAcceptAndTrust it persists the
// new trust entry before returning.
func Resolve(ctx context.Context, mgr *config.Manager, prompter Prompter, req Request) (accept bool, err error) {
	if EvaluateKnownHost(mgr.Config(), req.PeerName, req.PeerID) {
		logger.Debugf("trust: %s (%s) auto-accepted", req.PeerName, req.PeerID)
		return true, nil
	}

	decision, err := WithTimeout(ctx, prompter, req)
	if err != nil && !errors.Is(err, ErrPromptTimedOut) {
		return false, err
	}

	switch decision {
	case DecisionAcceptOnce:
		return true, nil
	case DecisionAcceptAndTrust:
		if err := RecordTrustedHost(mgr, req.PeerName, req.PeerID); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// -*- Mode: Go; indent-tabs-mode: t -*-

package controlapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/icarito/transwacom/internal/devices"
	"github.com/icarito/transwacom/internal/trust"
)

// PendingPrompt is the JSON shape of a pending authorisation prompt
// as surfaced to the UI collaborator over GET /prompts.
type PendingPrompt struct {
	ID       string   `json:"id"`
	PeerName string   `json:"peer_name"`
	PeerID   string   `json:"peer_id"`
	Devices  []string `json:"devices"`
}

// PromptBroker implements trust.Prompter by publishing each prompt
// over the control API and blocking until the UI collaborator posts
// a decision (or the caller's context expires first, per §4.7's 30s
// timeout — enforced by trust.WithTimeout, not by this type).
type PromptBroker struct {
	mu      sync.Mutex
	pending map[string]pendingEntry
}

type pendingEntry struct {
	prompt   PendingPrompt
	decision chan trust.Decision
}

// NewPromptBroker builds an empty PromptBroker.
func NewPromptBroker() *PromptBroker {
	return &PromptBroker{pending: make(map[string]pendingEntry)}
}

// Prompt implements trust.Prompter.
func (b *PromptBroker) Prompt(ctx context.Context, req trust.Request) (trust.Decision, error) {
	id, err := randomID()
	if err != nil {
		return trust.DecisionReject, err
	}

	entry := pendingEntry{
		prompt:   PendingPrompt{ID: id, PeerName: req.PeerName, PeerID: req.PeerID, Devices: deviceNames(req.Devices)},
		decision: make(chan trust.Decision, 1),
	}

	b.mu.Lock()
	b.pending[id] = entry
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	select {
	case d := <-entry.decision:
		return d, nil
	case <-ctx.Done():
		return trust.DecisionReject, ctx.Err()
	}
}

// Pending returns every prompt currently awaiting a decision.
func (b *PromptBroker) Pending() []PendingPrompt {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PendingPrompt, 0, len(b.pending))
	for _, e := range b.pending {
		out = append(out, e.prompt)
	}
	return out
}

// Decide resolves the pending prompt id with the named decision
// ("accept_once", "accept_trust" or "reject").
func (b *PromptBroker) Decide(id, decision string) error {
	var d trust.Decision
	switch decision {
	case "accept_once":
		d = trust.DecisionAcceptOnce
	case "accept_trust":
		d = trust.DecisionAcceptAndTrust
	case "reject":
		d = trust.DecisionReject
	default:
		return fmt.Errorf("controlapi: unknown decision %q", decision)
	}

	b.mu.Lock()
	entry, ok := b.pending[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("controlapi: no pending prompt %q", id)
	}

	entry.decision <- d
	return nil
}

func deviceNames(ds []devices.Descriptor) []string {
	names := make([]string, 0, len(ds))
	for _, d := range ds {
		names = append(names, d.Name)
	}
	return names
}

func randomID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

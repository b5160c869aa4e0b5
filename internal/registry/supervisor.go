// -*- Mode: Go; indent-tabs-mode: t -*-

package registry

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Component is one concurrently started subsystem (the inbound
// listener, discovery, the control API, ...): it runs until ctx is
// cancelled or it fails on its own.
type Component func(ctx context.Context) error

// Supervisor starts a fixed set of components together and cancels
// the rest the moment any one of them fails, per SPEC_FULL's
// unified-mode startup note: the listener, discovery and control API
// are started concurrently and the first failure tears down the rest.
type Supervisor struct {
	components map[string]Component
}

// NewSupervisor builds an empty Supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{components: make(map[string]Component)}
}

// Add registers a named component. Names are used only for error
// context.
func (s *Supervisor) Add(name string, c Component) {
	s.components[name] = c
}

// Run starts every registered component and blocks until all have
// returned, either because ctx was cancelled by the caller or because
// one of them failed (which cancels the derived context the others
// run under). It returns the first non-nil error a component returned,
// wrapped with the component's name; that error may wrap a context
// error when a component returns ctx.Err() after cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, c := range s.components {
		name, c := name, c
		g.Go(func() error {
			if err := c(gctx); err != nil {
				return &componentError{name: name, err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

type componentError struct {
	name string
	err  error
}

func (e *componentError) Error() string {
	return e.name + ": " + e.err.Error()
}

func (e *componentError) Unwrap() error {
	return e.err
}

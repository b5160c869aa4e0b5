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

// Package controlapi implements the loopback-only HTTP control surface
// the out-of-scope tray/UI collaborator (§1) polls: discovered peers,
// session status, and pending authorisation prompts it can answer.
// Grounded on canonical-snapd's daemon package's use of gorilla/mux for
// its REST API.
package controlapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/icarito/transwacom/internal/discovery"
	"github.com/icarito/transwacom/internal/logger"
)

// PeerSnapshotter returns the discovered-peer table for GET /peers.
type PeerSnapshotter func() map[string]discovery.DiscoveredPeer

// SessionSnapshotter returns a display-friendly session status list
// for GET /sessions.
type SessionSnapshotter func() []SessionStatus

// SessionStatus is one row of the GET /sessions response.
type SessionStatus struct {
	PeerName string `json:"peer_name"`
	Direction string `json:"direction"`
	State    string `json:"state"`
}

// Server is the HTTP control API. It listens on Config.Addr, which
// transwacomd sets to a 127.0.0.1 address because the UI collaborator
// runs on the same machine; Server itself does not restrict the
// address it is given.
type Server struct {
	httpServer *http.Server
	prompts    *PromptBroker
}

// Config wires Server to the rest of the running process.
type Config struct {
	Addr     string // e.g. "127.0.0.1:7733"
	Peers    PeerSnapshotter
	Sessions SessionSnapshotter
	Prompts  *PromptBroker
	// RateLimit bounds polling requests per second from the UI
	// collaborator; Burst allows short bursts above that rate.
	RateLimit rate.Limit
	Burst     int
}

// NewServer builds a Server from cfg; it does not start listening
// until Start is called.
func NewServer(cfg Config) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	r := mux.NewRouter()
	s := &Server{prompts: cfg.Prompts}

	limiter := rate.NewLimiter(cfg.RateLimit, cfg.Burst)
	r.Use(rateLimitMiddleware(limiter))

	r.HandleFunc("/api/v1/peers", handlePeers(cfg.Peers)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/sessions", handleSessions(cfg.Sessions)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/prompts", handleListPrompts(cfg.Prompts)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/prompts/{id}", handleDecidePrompt(cfg.Prompts)).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background. It returns once the
// listener is bound; serve errors after that point are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Noticef("controlapi: server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugf("controlapi: response encode failed: %v", err)
	}
}

func handlePeers(snapshot PeerSnapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var peers map[string]discovery.DiscoveredPeer
		if snapshot != nil {
			peers = snapshot()
		}
		writeJSON(w, http.StatusOK, peers)
	}
}

func handleSessions(snapshot SessionSnapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sessions []SessionStatus
		if snapshot != nil {
			sessions = snapshot()
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func handleListPrompts(broker *PromptBroker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if broker == nil {
			writeJSON(w, http.StatusOK, []PendingPrompt{})
			return
		}
		writeJSON(w, http.StatusOK, broker.Pending())
	}
}

type decisionBody struct {
	Decision string `json:"decision"`
}

func handleDecidePrompt(broker *PromptBroker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if broker == nil {
			http.Error(w, "no prompt broker configured", http.StatusServiceUnavailable)
			return
		}
		id := mux.Vars(r)["id"]

		var body decisionBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		if err := broker.Decide(id, body.Decision); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

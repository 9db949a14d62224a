// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vechain/ballot/api/restutil"
	"github.com/vechain/ballot/session"
)

type Status struct {
	Healthy             bool       `json:"healthy"`
	CandidatesFetchedAt *time.Time `json:"candidatesFetchedAt"`
	WalletConnected     bool       `json:"walletConnected"`
}

// Health reports whether the candidate list is being kept fresh.
type Health struct {
	mgr    *session.Manager
	maxAge time.Duration
}

// New creates a health checker. The service is healthy once candidates were
// fetched, and no longer than maxAge ago when maxAge is set.
func New(mgr *session.Manager, maxAge time.Duration) *Health {
	return &Health{mgr: mgr, maxAge: maxAge}
}

func (h *Health) Status() *Status {
	snap := h.mgr.Snapshot()

	healthy := snap.FetchedAt != nil
	if healthy && h.maxAge > 0 {
		healthy = time.Since(*snap.FetchedAt) <= h.maxAge
	}
	return &Status{
		Healthy:             healthy,
		CandidatesFetchedAt: snap.FetchedAt,
		WalletConnected:     snap.Session.ConnectedAddress != nil,
	}
}

func (h *Health) handleGetHealth(w http.ResponseWriter, _ *http.Request) error {
	status := h.Status()
	if !status.Healthy {
		w.Header().Set("Content-Type", restutil.JSONContentType)
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	return restutil.WriteJSON(w, status)
}

func (h *Health) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("health_get").
		HandlerFunc(restutil.WrapHandlerFunc(h.handleGetHealth))
}

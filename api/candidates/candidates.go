// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package candidates

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/ballot/api/restutil"
	"github.com/vechain/ballot/ballot"
	"github.com/vechain/ballot/chainclient"
	"github.com/vechain/ballot/session"
)

type Candidates struct {
	mgr *session.Manager
}

func New(mgr *session.Manager) *Candidates {
	return &Candidates{mgr}
}

// JSONCandidates is the cached candidate list.
type JSONCandidates struct {
	Candidates []ballot.Candidate `json:"candidates"`
	FetchedAt  *time.Time         `json:"fetchedAt"`
}

// JSONVoteResult is returned once a vote is confirmed.
type JSONVoteResult struct {
	CandidateID uint64             `json:"candidateId"`
	Session     session.Session    `json:"session"`
	Candidates  []ballot.Candidate `json:"candidates"`
}

func (c *Candidates) list() *JSONCandidates {
	snap := c.mgr.Snapshot()
	return &JSONCandidates{
		Candidates: snap.Candidates,
		FetchedAt:  snap.FetchedAt,
	}
}

func (c *Candidates) handleGetCandidates(w http.ResponseWriter, _ *http.Request) error {
	return restutil.WriteJSON(w, c.list())
}

func (c *Candidates) handleRefresh(w http.ResponseWriter, req *http.Request) error {
	if err := c.mgr.FetchCandidates(req.Context()); err != nil {
		if errors.Is(err, session.ErrNoProvider) {
			return restutil.HTTPError(err, http.StatusServiceUnavailable)
		}
		return restutil.HTTPError(errors.WithMessage(err, "refresh"), http.StatusBadGateway)
	}
	return restutil.WriteJSON(w, c.list())
}

func (c *Candidates) handleVote(w http.ResponseWriter, req *http.Request) error {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "id"))
	}
	if id == 0 {
		return restutil.BadRequest(errors.New("id: candidate ids start at 1"))
	}

	// the transaction is out once signed, so a dropped client must not
	// abandon the confirmation wait
	ctx := context.WithoutCancel(req.Context())
	if err := c.mgr.Vote(ctx, id); err != nil {
		switch {
		case errors.Is(err, session.ErrNotConnected):
			return restutil.Forbidden(err)
		case errors.Is(err, session.ErrVoteInFlight):
			return restutil.Conflict(err)
		case errors.Is(err, chainclient.ErrConfirmTimeout):
			return restutil.HTTPError(err, http.StatusGatewayTimeout)
		}
		return restutil.HTTPError(errors.WithMessage(err, "vote"), http.StatusUnprocessableEntity)
	}

	snap := c.mgr.Snapshot()
	return restutil.WriteJSON(w, &JSONVoteResult{
		CandidateID: id,
		Session:     snap.Session,
		Candidates:  snap.Candidates,
	})
}

func (c *Candidates) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("candidates_get").
		HandlerFunc(restutil.WrapHandlerFunc(c.handleGetCandidates))
	sub.Path("/refresh").
		Methods(http.MethodPost).
		Name("candidates_refresh").
		HandlerFunc(restutil.WrapHandlerFunc(c.handleRefresh))
	sub.Path("/{id}/vote").
		Methods(http.MethodPost).
		Name("candidates_vote").
		HandlerFunc(restutil.WrapHandlerFunc(c.handleVote))
}

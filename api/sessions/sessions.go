// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sessions

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/ballot/api/restutil"
	"github.com/vechain/ballot/session"
)

type Sessions struct {
	mgr *session.Manager
}

func New(mgr *session.Manager) *Sessions {
	return &Sessions{mgr}
}

// JSONSession is the session view returned by the API.
type JSONSession struct {
	Contract common.Address   `json:"contract"`
	Session  session.Session  `json:"session"`
	Notices  []session.Notice `json:"notices"`
}

func (s *Sessions) view() *JSONSession {
	notices := s.mgr.Notices()
	if notices == nil {
		notices = []session.Notice{}
	}
	return &JSONSession{
		Contract: s.mgr.Contract(),
		Session:  s.mgr.Session(),
		Notices:  notices,
	}
}

func (s *Sessions) handleGetSession(w http.ResponseWriter, _ *http.Request) error {
	return restutil.WriteJSON(w, s.view())
}

func (s *Sessions) handleConnect(w http.ResponseWriter, req *http.Request) error {
	if err := s.mgr.Connect(req.Context()); err != nil {
		if errors.Is(err, session.ErrNoProvider) {
			return restutil.HTTPError(err, http.StatusServiceUnavailable)
		}
		return restutil.Forbidden(err)
	}
	return restutil.WriteJSON(w, s.view())
}

func (s *Sessions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("session_get").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleGetSession))
	sub.Path("/connect").
		Methods(http.MethodPost).
		Name("session_connect").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleConnect))
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sessions_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ballot/api/sessions"
	"github.com/vechain/ballot/ballot"
	"github.com/vechain/ballot/chainclient"
	"github.com/vechain/ballot/session"
	"github.com/vechain/ballot/test/testsession"
	"github.com/vechain/ballot/test/votechain"
)

func newServer(t *testing.T, mgr *session.Manager) *httptest.Server {
	router := mux.NewRouter()
	sessions.New(mgr).Mount(router, "/session")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string) ([]byte, int) {
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func TestGetSession(t *testing.T) {
	env := testsession.New(t, nil, 1, "Alice")
	ts := newServer(t, env.Manager)

	body, code := do(t, http.MethodGet, ts.URL+"/session")
	require.Equal(t, http.StatusOK, code)

	var view sessions.JSONSession
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, votechain.ContractAddress, view.Contract)
	assert.Nil(t, view.Session.ConnectedAddress)
	assert.Equal(t, session.VoteStatusUnknown, view.Session.VoteStatus)
	assert.Empty(t, view.Notices)
}

func TestConnect(t *testing.T) {
	env := testsession.New(t, nil, 2, "Alice")
	env.Chain.MarkVoted(env.Accounts[0])
	ts := newServer(t, env.Manager)

	body, code := do(t, http.MethodPost, ts.URL+"/session/connect")
	require.Equal(t, http.StatusOK, code, string(body))

	var view sessions.JSONSession
	require.NoError(t, json.Unmarshal(body, &view))
	require.NotNil(t, view.Session.ConnectedAddress)
	assert.Equal(t, env.Accounts[0], *view.Session.ConnectedAddress)
	assert.True(t, view.Session.HasVoted)
	assert.Equal(t, session.VoteStatusVoted, view.Session.VoteStatus)

	_, code = do(t, http.MethodGet, ts.URL+"/session/connect")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestConnectWithoutWallet(t *testing.T) {
	chain := votechain.New("Alice")
	contract, err := ballot.New(votechain.ContractAddress, chain)
	require.NoError(t, err)
	mgr := session.New(nil, contract, chainclient.NewConfirmer(chain, time.Second), session.Options{})
	t.Cleanup(mgr.Close)
	ts := newServer(t, mgr)

	body, code := do(t, http.MethodPost, ts.URL+"/session/connect")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(body), "wallet not installed")

	body, code = do(t, http.MethodGet, ts.URL+"/session")
	require.Equal(t, http.StatusOK, code)
	var view sessions.JSONSession
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "wallet not installed", view.Session.LastError)
	require.Len(t, view.Notices, 1)
	assert.Equal(t, session.NoticeEnvironment, view.Notices[0].Kind)
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package testsession wires a session manager to an in-memory chain and a
// key based wallet for tests.
package testsession

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ballot/ballot"
	"github.com/vechain/ballot/chainclient"
	"github.com/vechain/ballot/session"
	"github.com/vechain/ballot/test/votechain"
	"github.com/vechain/ballot/wallet"
)

// Env is a session manager backed by a simulated chain.
type Env struct {
	Chain    *votechain.Chain
	Contract *ballot.Contract
	Provider *wallet.KeyProvider
	Accounts []common.Address
	Manager  *session.Manager
}

// New creates an environment with the given number of wallet accounts and
// candidates. Everything is closed when the test ends.
func New(t testing.TB, approver wallet.Approver, accounts int, candidates ...string) *Env {
	chain := votechain.New(candidates...)
	contract, err := ballot.New(votechain.ContractAddress, chain)
	require.NoError(t, err)

	keys := make([]*ecdsa.PrivateKey, accounts)
	addrs := make([]common.Address, accounts)
	for i := range keys {
		keys[i], err = crypto.GenerateKey()
		require.NoError(t, err)
		addrs[i] = crypto.PubkeyToAddress(keys[i].PublicKey)
	}
	if approver == nil {
		approver = wallet.AutoApprover{}
	}
	provider := wallet.NewKeyProvider(chain, approver, keys...)
	confirmer := chainclient.NewConfirmer(chain, time.Minute).WithPollPeriod(5 * time.Millisecond)

	mgr := session.New(provider, contract, confirmer, session.Options{})
	t.Cleanup(mgr.Close)
	t.Cleanup(provider.Close)

	return &Env{
		Chain:    chain,
		Contract: contract,
		Provider: provider,
		Accounts: addrs,
		Manager:  mgr,
	}
}

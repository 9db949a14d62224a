// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"github.com/vechain/ballot/chainclient"
)

// KeyProvider is a wallet backed by raw private keys held in memory.
type KeyProvider struct {
	backend  chainclient.Backend
	approver Approver

	mu      sync.Mutex
	keys    map[common.Address]*ecdsa.PrivateKey
	order   []common.Address
	primary common.Address

	feed  event.Feed
	scope event.SubscriptionScope
}

// NewKeyProvider creates a provider holding keys. The first key is the
// primary account.
func NewKeyProvider(backend chainclient.Backend, approver Approver, keys ...*ecdsa.PrivateKey) *KeyProvider {
	p := &KeyProvider{
		backend:  backend,
		approver: approver,
		keys:     make(map[common.Address]*ecdsa.PrivateKey, len(keys)),
	}
	for _, key := range keys {
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if _, ok := p.keys[addr]; ok {
			continue
		}
		p.keys[addr] = key
		p.order = append(p.order, addr)
	}
	if len(p.order) > 0 {
		p.primary = p.order[0]
	}
	return p
}

// Accounts returns the held accounts, primary first, without asking for
// approval.
func (p *KeyProvider) Accounts() []common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return withPrimary(p.order, p.primary)
}

func (p *KeyProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	accounts := p.Accounts()
	if len(accounts) == 0 {
		countRequest("accounts", ErrNoAccounts)
		return nil, ErrNoAccounts
	}
	if err := p.approver.ApproveAccounts(ctx, accounts); err != nil {
		countRequest("accounts", err)
		return nil, err
	}
	countRequest("accounts", nil)
	return accounts, nil
}

func (p *KeyProvider) Signer(_ context.Context, addr common.Address) (Signer, error) {
	p.mu.Lock()
	key, ok := p.keys[addr]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex())
	}
	return &txSigner{
		from:     addr,
		backend:  p.backend,
		approver: p.approver,
		sign: func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
			return types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
		},
	}, nil
}

func (p *KeyProvider) SubscribeAccounts(ch chan<- []common.Address) event.Subscription {
	return p.scope.Track(p.feed.Subscribe(ch))
}

// Select makes addr the primary account and notifies subscribers.
func (p *KeyProvider) Select(addr common.Address) error {
	p.mu.Lock()
	if _, ok := p.keys[addr]; !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex())
	}
	changed := p.primary != addr
	p.primary = addr
	accounts := withPrimary(p.order, p.primary)
	p.mu.Unlock()

	if changed {
		logger.Debug("primary account changed", "account", addr)
		p.feed.Send(accounts)
	}
	return nil
}

// Close unsubscribes every account subscriber.
func (p *KeyProvider) Close() {
	p.scope.Close()
}

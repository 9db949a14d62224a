// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/vechain/ballot/chainclient"
)

// PassphraseFunc supplies the passphrase unlocking addr.
type PassphraseFunc func(addr common.Address) (string, error)

// KeystoreProvider is a wallet backed by an encrypted key directory.
// Accounts added to or removed from the directory are reported to account
// subscribers. Locked accounts are unlocked on first use.
type KeystoreProvider struct {
	ks         *keystore.KeyStore
	backend    chainclient.Backend
	approver   Approver
	passphrase PassphraseFunc

	mu      sync.Mutex
	primary common.Address

	feed  event.Feed
	scope event.SubscriptionScope

	events chan accounts.WalletEvent
	sub    event.Subscription
	done   chan struct{}
}

// NewKeystoreProvider creates a provider on top of ks. The provider watches
// ks until Close is called.
func NewKeystoreProvider(ks *keystore.KeyStore, backend chainclient.Backend, approver Approver, passphrase PassphraseFunc) *KeystoreProvider {
	p := &KeystoreProvider{
		ks:         ks,
		backend:    backend,
		approver:   approver,
		passphrase: passphrase,
		events:     make(chan accounts.WalletEvent, 16),
		done:       make(chan struct{}),
	}
	p.sub = ks.Subscribe(p.events)
	go p.loop()
	return p
}

func (p *KeystoreProvider) loop() {
	defer close(p.done)
	for {
		select {
		case ev := <-p.events:
			if ev.Kind == accounts.WalletOpened {
				continue
			}
			accs := p.Accounts()
			logger.Debug("keystore changed", "url", ev.Wallet.URL(), "accounts", len(accs))
			p.feed.Send(accs)
		case <-p.sub.Err():
			return
		}
	}
}

// Accounts returns the keystore accounts, primary first, without asking
// for approval.
func (p *KeystoreProvider) Accounts() []common.Address {
	list := p.ks.Accounts()
	addrs := make([]common.Address, 0, len(list))
	for _, acc := range list {
		addrs = append(addrs, acc.Address)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return withPrimary(addrs, p.primary)
}

func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	addrs := p.Accounts()
	if len(addrs) == 0 {
		countRequest("accounts", ErrNoAccounts)
		return nil, ErrNoAccounts
	}
	if err := p.approver.ApproveAccounts(ctx, addrs); err != nil {
		countRequest("accounts", err)
		return nil, err
	}
	countRequest("accounts", nil)
	return addrs, nil
}

func (p *KeystoreProvider) Signer(_ context.Context, addr common.Address) (Signer, error) {
	acc, err := p.ks.Find(accounts.Account{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex())
	}
	return &txSigner{
		from:     addr,
		backend:  p.backend,
		approver: p.approver,
		sign: func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
			signed, err := p.ks.SignTx(acc, tx, chainID)
			if !errors.Is(err, keystore.ErrLocked) {
				return signed, err
			}
			if err := p.unlock(acc); err != nil {
				return nil, err
			}
			return p.ks.SignTx(acc, tx, chainID)
		},
	}, nil
}

func (p *KeystoreProvider) unlock(acc accounts.Account) error {
	if p.passphrase == nil {
		return keystore.ErrLocked
	}
	pass, err := p.passphrase(acc.Address)
	if err != nil {
		return fmt.Errorf("failed to read passphrase: %w", err)
	}
	if err := p.ks.Unlock(acc, pass); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", acc.Address.Hex(), err)
	}
	logger.Info("account unlocked", "account", acc.Address)
	return nil
}

func (p *KeystoreProvider) SubscribeAccounts(ch chan<- []common.Address) event.Subscription {
	return p.scope.Track(p.feed.Subscribe(ch))
}

// Select makes addr the primary account and notifies subscribers.
func (p *KeystoreProvider) Select(addr common.Address) error {
	if !p.ks.HasAddress(addr) {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex())
	}
	p.mu.Lock()
	changed := p.primary != addr
	p.primary = addr
	p.mu.Unlock()

	if changed {
		logger.Debug("primary account changed", "account", addr)
		p.feed.Send(p.Accounts())
	}
	return nil
}

// Close stops watching the keystore and unsubscribes every account
// subscriber.
func (p *KeystoreProvider) Close() {
	p.sub.Unsubscribe()
	<-p.done
	p.scope.Close()
}

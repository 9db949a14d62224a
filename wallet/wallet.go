// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package wallet provides account access and transaction signing for the
// session manager. A Provider grants accounts, hands out Signers and reports
// account changes. User consent is delegated to an Approver.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/vechain/ballot/chainclient"
	"github.com/vechain/ballot/log"
	"github.com/vechain/ballot/metrics"
)

var (
	logger = log.WithContext("pkg", "wallet")

	metricRequests = metrics.LazyLoadCounterVec("wallet_request_count", []string{"method", "result"})
)

var (
	// ErrUserRejected is returned when the user declines a request.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrNoAccounts is returned when the wallet holds no account.
	ErrNoAccounts = errors.New("no accounts available")
	// ErrUnknownAccount is returned for an address the wallet does not hold.
	ErrUnknownAccount = errors.New("unknown account")
)

// Provider is the capability set of an injected wallet.
type Provider interface {
	// RequestAccounts asks the user to share accounts. The first one is the
	// primary account.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Signer returns a signer acting for addr.
	Signer(ctx context.Context, addr common.Address) (Signer, error)
	// SubscribeAccounts delivers the new account list, primary first, every
	// time it changes. An empty list means no account is available.
	SubscribeAccounts(ch chan<- []common.Address) event.Subscription
}

// Signer signs and broadcasts transactions for a single account.
type Signer interface {
	Address() common.Address
	// SendTransaction builds a transaction calling to with data, asks for
	// approval, signs and broadcasts it. Nonce, gas and fees are filled
	// from the chain. A call that would revert fails before approval.
	SendTransaction(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error)
}

type signFunc func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)

type txSigner struct {
	from     common.Address
	backend  chainclient.Backend
	approver Approver
	sign     signFunc
}

func (s *txSigner) Address() common.Address {
	return s.from
}

func (s *txSigner) SendTransaction(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	tx, chainID, err := chainclient.PrepareTx(ctx, s.backend, s.from, to, data)
	if err != nil {
		countRequest("send", err)
		return nil, err
	}
	if err := s.approver.ApproveTransaction(ctx, s.from, tx); err != nil {
		countRequest("send", err)
		return nil, err
	}
	signed, err := s.sign(tx, chainID)
	if err != nil {
		countRequest("send", err)
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		countRequest("send", err)
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	countRequest("send", nil)
	logger.Info("transaction sent", "tx", signed.Hash(), "from", s.from, "to", to, "nonce", signed.Nonce())
	return signed, nil
}

func countRequest(method string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrUserRejected):
		result = "rejected"
	default:
		result = "error"
	}
	metricRequests().AddWithLabel(1, map[string]string{"method": method, "result": result})
}

// withPrimary returns accounts reordered so that primary comes first. When
// primary is not among them the order is kept.
func withPrimary(accounts []common.Address, primary common.Address) []common.Address {
	out := make([]common.Address, 0, len(accounts))
	found := false
	for _, a := range accounts {
		if a == primary {
			found = true
			continue
		}
		out = append(out, a)
	}
	if !found {
		return append(out[:0], accounts...)
	}
	return append([]common.Address{primary}, out...)
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chainclient talks to an EVM JSON-RPC node: it prepares transactions,
// waits for their confirmation and decodes revert reasons.
package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vechain/ballot/log"
)

var logger = log.WithContext("pkg", "chainclient")

// Backend is the subset of the JSON-RPC API used by this module.
// *ethclient.Client implements it.
type Backend interface {
	ReceiptReader

	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ReceiptReader fetches transaction receipts.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Dial connects to a JSON-RPC endpoint (http, ws or ipc).
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return client, nil
}

// RevertError carries the reason a contract execution reverted.
type RevertError struct {
	Reason string
	cause  error
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.cause
}

const revertPrefix = "execution reverted: "

// RevertReason extracts a human readable revert reason from err. It looks at
// the JSON-RPC error data first and falls back to the error message.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var re *RevertError
	if errors.As(err, &re) && re.Reason != "" {
		return re.Reason, true
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if data, ok := de.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(data); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil && reason != "" {
					return reason, true
				}
			}
		}
	}

	msg := err.Error()
	if i := strings.Index(msg, revertPrefix); i >= 0 {
		if reason := strings.TrimSpace(msg[i+len(revertPrefix):]); reason != "" {
			return reason, true
		}
	}
	return "", false
}

// PrepareTx builds an unsigned transaction from one account to a contract.
// Dynamic fee transactions are used when the head block carries a base fee.
// Gas is estimated, so a call that would revert fails here with a
// RevertError instead of being broadcast.
func PrepareTx(ctx context.Context, b Backend, from, to common.Address, data []byte) (*types.Transaction, *big.Int, error) {
	chainID, err := b.ChainID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	nonce, err := b.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	head, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get head block: %w", err)
	}

	msg := ethereum.CallMsg{From: from, To: &to, Data: data}

	var (
		tipCap, feeCap, gasPrice *big.Int
	)
	if head.BaseFee != nil {
		if tipCap, err = b.SuggestGasTipCap(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to suggest tip cap: %w", err)
		}
		feeCap = new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		msg.GasTipCap, msg.GasFeeCap = tipCap, feeCap
	} else {
		if gasPrice, err = b.SuggestGasPrice(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		msg.GasPrice = gasPrice
	}

	gas, err := b.EstimateGas(ctx, msg)
	if err != nil {
		if reason, ok := RevertReason(err); ok {
			return nil, nil, &RevertError{Reason: reason, cause: err}
		}
		return nil, nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Data:      data,
		})
	} else {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Data:     data,
		})
	}
	logger.Debug("prepared transaction", "from", from, "to", to, "nonce", nonce, "gas", gas)
	return tx, chainID, nil
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chainclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vechain/ballot/metrics"
)

var (
	// ErrConfirmTimeout is returned when a transaction is not mined within
	// the configured confirmation timeout.
	ErrConfirmTimeout = errors.New("timed out waiting for confirmation")
	// ErrReverted is returned when a transaction was mined but failed.
	ErrReverted = errors.New("transaction reverted")

	metricConfirmDuration = metrics.LazyLoadHistogram("confirm_duration_ms", metrics.BucketConfirm)
	metricConfirmResult   = metrics.LazyLoadCounterVec("confirm_result_count", []string{"result"})
)

const DefaultPollPeriod = time.Second

// WaitMined polls for the receipt of txHash until it is available or ctx is
// done. Receipt lookups failing with anything other than not-found abort the
// wait.
func WaitMined(ctx context.Context, r ReceiptReader, txHash common.Hash, period time.Duration) (*types.Receipt, error) {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		receipt, err := r.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to get receipt: %w", err)
		}
		logger.Trace("transaction not yet mined", "tx", txHash)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Confirmer waits for one confirmation of a transaction, bounded by a timeout.
type Confirmer struct {
	reader  ReceiptReader
	timeout time.Duration
	period  time.Duration
}

// NewConfirmer creates a confirmer. A zero timeout leaves the wait bounded
// only by the caller's context.
func NewConfirmer(r ReceiptReader, timeout time.Duration) *Confirmer {
	return &Confirmer{
		reader:  r,
		timeout: timeout,
		period:  DefaultPollPeriod,
	}
}

// WithPollPeriod returns a copy polling at the given period.
func (c *Confirmer) WithPollPeriod(period time.Duration) *Confirmer {
	cp := *c
	cp.period = period
	return &cp
}

// Timeout returns the configured confirmation timeout.
func (c *Confirmer) Timeout() time.Duration {
	return c.timeout
}

// Confirm blocks until txHash is mined. It returns ErrConfirmTimeout when the
// timeout elapses first and ErrReverted, with the receipt, when the
// transaction failed on chain.
func (c *Confirmer) Confirm(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	waitCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	receipt, err := WaitMined(waitCtx, c.reader, txHash, c.period)
	metricConfirmDuration().Observe(time.Since(start).Milliseconds())
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		metricConfirmResult().AddWithLabel(1, map[string]string{"result": "timeout"})
		return nil, fmt.Errorf("%w after %v (tx %s)", ErrConfirmTimeout, c.timeout, txHash.Hex())
	default:
		metricConfirmResult().AddWithLabel(1, map[string]string{"result": "error"})
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		metricConfirmResult().AddWithLabel(1, map[string]string{"result": "reverted"})
		return receipt, fmt.Errorf("%w (tx %s)", ErrReverted, txHash.Hex())
	}
	metricConfirmResult().AddWithLabel(1, map[string]string{"result": "success"})
	logger.Debug("transaction confirmed", "tx", txHash, "block", receipt.BlockNumber)
	return receipt, nil
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chainclient_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ballot/ballot"
	"github.com/vechain/ballot/chainclient"
	"github.com/vechain/ballot/test/votechain"
)

func voteData(t *testing.T, id uint64) []byte {
	contract, err := ballot.New(votechain.ContractAddress, votechain.New())
	require.NoError(t, err)
	data, err := contract.VoteData(id)
	require.NoError(t, err)
	return data
}

func signAndSend(t *testing.T, chain *votechain.Chain, id uint64) *types.Transaction {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	tx, chainID, err := chainclient.PrepareTx(context.Background(), chain, from, votechain.ContractAddress, voteData(t, id))
	require.NoError(t, err)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	require.NoError(t, err)
	require.NoError(t, chain.SendTransaction(context.Background(), signed))
	return signed
}

func TestPrepareTx(t *testing.T) {
	chain := votechain.New("Alice", "Bob")
	from := common.HexToAddress("0xabc")

	tx, chainID, err := chainclient.PrepareTx(context.Background(), chain, from, votechain.ContractAddress, voteData(t, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(31337), chainID.Int64())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, votechain.ContractAddress, *tx.To())
	assert.NotZero(t, tx.Gas())
	assert.Equal(t, uint64(0), tx.Nonce())
}

func TestPrepareTxSurfacesRevertReason(t *testing.T) {
	chain := votechain.New("Alice")
	from := common.HexToAddress("0xabc")
	chain.MarkVoted(from)

	_, _, err := chainclient.PrepareTx(context.Background(), chain, from, votechain.ContractAddress, voteData(t, 1))
	require.Error(t, err)

	var re *chainclient.RevertError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, votechain.ReasonAlreadyVoted, re.Reason)
}

func TestRevertReason(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		reason string
		ok     bool
	}{
		{"nil", nil, "", false},
		{"plain", errors.New("connection reset"), "", false},
		{"message", errors.New("execution reverted: Invalid candidate"), "Invalid candidate", true},
		{"wrapped message", fmt.Errorf("estimate: %w", errors.New("execution reverted: nope")), "nope", true},
		{"revert error", &chainclient.RevertError{Reason: "closed"}, "closed", true},
		{"bare revert", errors.New("execution reverted"), "", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			reason, ok := chainclient.RevertReason(tc.err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestConfirm(t *testing.T) {
	chain := votechain.New("Alice", "Bob")
	tx := signAndSend(t, chain, 2)

	receipt, err := chainclient.NewConfirmer(chain, time.Second).
		WithPollPeriod(10*time.Millisecond).
		Confirm(context.Background(), tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, uint64(1), chain.Votes(2))
}

func TestConfirmWaitsForPendingTx(t *testing.T) {
	chain := votechain.New("Alice")
	chain.SetAutoMine(false)
	tx := signAndSend(t, chain, 1)

	go func() {
		time.Sleep(50 * time.Millisecond)
		chain.Mine()
	}()

	receipt, err := chainclient.NewConfirmer(chain, 5*time.Second).
		WithPollPeriod(10*time.Millisecond).
		Confirm(context.Background(), tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.BlockNumber.Uint64())
}

func TestConfirmTimeout(t *testing.T) {
	chain := votechain.New("Alice")
	chain.SetAutoMine(false)
	tx := signAndSend(t, chain, 1)

	confirmer := chainclient.NewConfirmer(chain, 50*time.Millisecond).
		WithPollPeriod(10*time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, confirmer.Timeout())

	_, err := confirmer.Confirm(context.Background(), tx.Hash())
	assert.ErrorIs(t, err, chainclient.ErrConfirmTimeout)
}

func TestConfirmCallerCancel(t *testing.T) {
	chain := votechain.New("Alice")
	chain.SetAutoMine(false)
	tx := signAndSend(t, chain, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chainclient.NewConfirmer(chain, time.Minute).Confirm(ctx, tx.Hash())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, chainclient.ErrConfirmTimeout)
}

func TestConfirmReverted(t *testing.T) {
	chain := votechain.New("Alice")
	chain.SetAutoMine(false)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	tx, chainID, err := chainclient.PrepareTx(context.Background(), chain, from, votechain.ContractAddress, voteData(t, 1))
	require.NoError(t, err)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	require.NoError(t, err)
	require.NoError(t, chain.SendTransaction(context.Background(), signed))

	// another vote from the same account lands first
	chain.MarkVoted(from)
	chain.Mine()

	receipt, err := chainclient.NewConfirmer(chain, time.Second).Confirm(context.Background(), signed.Hash())
	assert.ErrorIs(t, err, chainclient.ErrReverted)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
}

func TestWaitMinedReceiptError(t *testing.T) {
	chain := votechain.New("Alice")
	boom := errors.New("backend down")
	chain.FailReceipts(boom)

	_, err := chainclient.WaitMined(context.Background(), chain, common.Hash{1}, 10*time.Millisecond)
	assert.ErrorIs(t, err, boom)
}

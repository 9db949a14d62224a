// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ballot_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ballot/ballot"
	"github.com/vechain/ballot/test/votechain"
)

func newContract(t *testing.T, names ...string) (*ballot.Contract, *votechain.Chain) {
	chain := votechain.New(names...)
	contract, err := ballot.New(votechain.ContractAddress, chain)
	require.NoError(t, err)
	return contract, chain
}

func TestNewRejectsEmptyAddress(t *testing.T) {
	_, err := ballot.New(common.Address{}, votechain.New())
	assert.Error(t, err)
}

func TestReads(t *testing.T) {
	contract, chain := newContract(t, "Alice", "Bob", "Carol")
	chain.SetVotes(2, 5)
	voter := common.HexToAddress("0x1")
	chain.MarkVoted(voter)
	ctx := context.Background()

	t.Run("CandidatesCount", func(t *testing.T) {
		count, err := contract.CandidatesCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), count)
	})

	t.Run("Candidate", func(t *testing.T) {
		cand, err := contract.Candidate(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, ballot.Candidate{ID: 2, Name: "Bob", VoteCount: 5}, cand)
	})

	t.Run("MissingCandidateIsZero", func(t *testing.T) {
		cand, err := contract.Candidate(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, ballot.Candidate{}, cand)
	})

	t.Run("HasVoted", func(t *testing.T) {
		voted, err := contract.HasVoted(ctx, voter)
		require.NoError(t, err)
		assert.True(t, voted)

		voted, err = contract.HasVoted(ctx, common.HexToAddress("0x2"))
		require.NoError(t, err)
		assert.False(t, voted)
	})
}

func TestReadErrorsPropagate(t *testing.T) {
	contract, chain := newContract(t, "Alice")
	boom := errors.New("connection refused")
	chain.FailCall("candidatesCount", boom)

	_, err := contract.CandidatesCount(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestNoContractAtAddress(t *testing.T) {
	contract, err := ballot.New(common.HexToAddress("0xdead"), votechain.New("Alice"))
	require.NoError(t, err)

	_, err = contract.CandidatesCount(context.Background())
	assert.ErrorIs(t, err, ballot.ErrNoContract)
}

type rawCaller []byte

func (r rawCaller) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return r, nil
}

func TestCountOutOfRange(t *testing.T) {
	parsed, err := ballot.ABI()
	require.NoError(t, err)

	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	out, err := parsed.Methods["candidatesCount"].Outputs.Pack(huge)
	require.NoError(t, err)

	contract, err := ballot.New(votechain.ContractAddress, rawCaller(out))
	require.NoError(t, err)

	_, err = contract.CandidatesCount(context.Background())
	assert.ErrorContains(t, err, "out of range")
}

func TestVoteData(t *testing.T) {
	contract, _ := newContract(t, "Alice")
	parsed, err := ballot.ABI()
	require.NoError(t, err)

	data, err := contract.VoteData(7)
	require.NoError(t, err)

	method, err := parsed.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "vote", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), args[0])
}

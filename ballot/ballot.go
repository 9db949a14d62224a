// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ballot binds the VotingSystem contract: typed read calls and the
// call data of the vote transaction.
package ballot

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vechain/ballot/metrics"
)

//go:embed VotingSystem.abi.json
var rawABI []byte

var (
	parsedABI abi.ABI
	parseOnce sync.Once
	parseErr  error

	metricCallDuration = metrics.LazyLoadHistogramVec("contract_call_ms", []string{"method", "ok"}, metrics.BucketChainCall)
)

// ErrNoContract is returned when the configured address holds no contract,
// which surfaces as an empty eth_call result.
var ErrNoContract = errors.New("no contract code at address")

// ABI returns the parsed contract ABI.
func ABI() (abi.ABI, error) {
	parseOnce.Do(func() {
		parsedABI, parseErr = abi.JSON(bytes.NewReader(rawABI))
	})
	return parsedABI, parseErr
}

// Candidate is one entry of the on-chain candidate table.
type Candidate struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	VoteCount uint64 `json:"voteCount"`
}

// Caller performs read-only contract calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader is the read side of the voting contract.
type Reader interface {
	CandidatesCount(ctx context.Context) (uint64, error)
	Candidate(ctx context.Context, id uint64) (Candidate, error)
	HasVoted(ctx context.Context, voter common.Address) (bool, error)
}

// Binding is the contract surface a voting session needs: the reads plus
// the data of the vote transaction.
type Binding interface {
	Reader
	Address() common.Address
	VoteData(candidateID uint64) ([]byte, error)
}

// Contract is a handle on a deployed VotingSystem.
type Contract struct {
	caller  Caller
	abi     abi.ABI
	address common.Address
}

var _ Binding = (*Contract)(nil)

// New creates a contract handle. Reads go through caller at the latest block.
func New(address common.Address, caller Caller) (*Contract, error) {
	if address == (common.Address{}) {
		return nil, errors.New("empty contract address")
	}
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse voting ABI: %w", err)
	}
	return &Contract{
		caller:  caller,
		abi:     parsed,
		address: address,
	}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// CandidatesCount returns the number of registered candidates.
func (c *Contract) CandidatesCount(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "candidatesCount")
	if err != nil {
		return 0, err
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("candidatesCount: unexpected output %T", out[0])
	}
	return toUint64(count, "candidatesCount")
}

// Candidate returns the candidate record stored under id.
func (c *Contract) Candidate(ctx context.Context, id uint64) (Candidate, error) {
	out, err := c.call(ctx, "candidates", new(big.Int).SetUint64(id))
	if err != nil {
		return Candidate{}, err
	}
	if len(out) != 3 {
		return Candidate{}, fmt.Errorf("candidates(%d): expected 3 outputs, got %d", id, len(out))
	}

	rawID, ok1 := out[0].(*big.Int)
	name, ok2 := out[1].(string)
	rawCount, ok3 := out[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return Candidate{}, fmt.Errorf("candidates(%d): unexpected output types", id)
	}

	cid, err := toUint64(rawID, "id")
	if err != nil {
		return Candidate{}, err
	}
	votes, err := toUint64(rawCount, "voteCount")
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{ID: cid, Name: name, VoteCount: votes}, nil
}

// HasVoted reports the contract's voting flag for voter.
func (c *Contract) HasVoted(ctx context.Context, voter common.Address) (bool, error) {
	out, err := c.call(ctx, "voters", voter)
	if err != nil {
		return false, err
	}
	voted, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("voters: unexpected output %T", out[0])
	}
	return voted, nil
}

// VoteData returns the call data of vote(candidateID).
func (c *Contract) VoteData(candidateID uint64) ([]byte, error) {
	data, err := c.abi.Pack("vote", new(big.Int).SetUint64(candidateID))
	if err != nil {
		return nil, fmt.Errorf("failed to pack vote(%d): %w", candidateID, err)
	}
	return data, nil
}

func (c *Contract) call(ctx context.Context, method string, args ...any) (out []any, err error) {
	start := time.Now()
	defer func() {
		ok := "true"
		if err != nil {
			ok = "false"
		}
		metricCallDuration().ObserveWithLabels(time.Since(start).Milliseconds(), map[string]string{"method": method, "ok": ok})
	}()

	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	to := c.address
	res, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%s: %w", method, ErrNoContract)
	}
	out, err = c.abi.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty output", method)
	}
	return out, nil
}

func toUint64(v *big.Int, field string) (uint64, error) {
	if v == nil {
		return 0, fmt.Errorf("%s: missing value", field)
	}
	u, overflow := uint256.FromBig(v)
	if overflow || !u.IsUint64() {
		return 0, fmt.Errorf("%s out of range: %s", field, v)
	}
	return u.Uint64(), nil
}

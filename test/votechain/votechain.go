// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package votechain is an in-memory chain hosting a single VotingSystem
// contract. It implements chainclient.Backend by decoding call data with the
// contract ABI, so the real binding, signing and confirmation code can be
// exercised without a node.
package votechain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vechain/ballot/ballot"
	"github.com/vechain/ballot/chainclient"
)

// Revert messages used by the simulated contract.
const (
	ReasonAlreadyVoted     = "You have already voted"
	ReasonInvalidCandidate = "Invalid candidate"
)

var (
	// ContractAddress is where the simulated contract lives.
	ContractAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}
	gasPerVote     = uint64(52_000)
)

// revertError mimics the JSON-RPC error returned by geth for reverted calls.
type revertError struct {
	reason string
	data   string
}

func (e *revertError) Error() string          { return "execution reverted: " + e.reason }
func (e *revertError) ErrorCode() int         { return 3 }
func (e *revertError) ErrorData() interface{} { return e.data }

func newRevertError(reason string) error {
	t, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: t}}.Pack(reason)
	data := append(append([]byte{}, revertSelector...), packed...)
	return &revertError{reason: reason, data: hexutil.Encode(data)}
}

// Chain is the simulated chain. It is safe for concurrent use.
type Chain struct {
	mu sync.Mutex

	abi     abi.ABI
	chainID *big.Int
	baseFee *big.Int
	signer  types.Signer

	candidates []ballot.Candidate
	voters     map[common.Address]bool
	nonces     map[common.Address]uint64
	receipts   map[common.Hash]*types.Receipt
	pending    []*types.Transaction
	number     uint64
	autoMine   bool

	callErrs      map[string]error
	candidateErrs map[uint64]error
	sendErr       error
	receiptErr    error
	sent          []*types.Transaction
}

var _ chainclient.Backend = (*Chain)(nil)

// New creates a chain whose contract holds the named candidates with zero
// votes. Transactions are mined as soon as they are sent.
func New(names ...string) *Chain {
	parsed, err := ballot.ABI()
	if err != nil {
		panic(err)
	}
	chainID := big.NewInt(31337)
	c := &Chain{
		abi:           parsed,
		chainID:       chainID,
		baseFee:       big.NewInt(1_000_000_000),
		signer:        types.LatestSignerForChainID(chainID),
		voters:        make(map[common.Address]bool),
		nonces:        make(map[common.Address]uint64),
		receipts:      make(map[common.Hash]*types.Receipt),
		autoMine:      true,
		callErrs:      make(map[string]error),
		candidateErrs: make(map[uint64]error),
	}
	for i, name := range names {
		c.candidates = append(c.candidates, ballot.Candidate{ID: uint64(i + 1), Name: name})
	}
	return c
}

// SetAutoMine toggles immediate mining. With auto mining off, sent
// transactions stay pending until Mine is called.
func (c *Chain) SetAutoMine(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoMine = on
}

// SetVotes overrides the tally of a candidate.
func (c *Chain) SetVotes(id, votes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates[id-1].VoteCount = votes
}

// Votes returns the tally of a candidate.
func (c *Chain) Votes(id uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidates[id-1].VoteCount
}

// MarkVoted sets the voting flag of an address.
func (c *Chain) MarkVoted(addr common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voters[addr] = true
}

// FailCall makes every eth_call of method fail with err. A nil err clears it.
func (c *Chain) FailCall(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.callErrs, method)
		return
	}
	c.callErrs[method] = err
}

// FailCandidate makes candidates(id) fail with err. A nil err clears it.
func (c *Chain) FailCandidate(id uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.candidateErrs, id)
		return
	}
	c.candidateErrs[id] = err
}

// FailSend makes SendTransaction fail with err. A nil err clears it.
func (c *Chain) FailSend(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// FailReceipts makes receipt lookups fail with err. A nil err clears it.
func (c *Chain) FailReceipts(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiptErr = err
}

// Sent returns the transactions accepted so far.
func (c *Chain) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

// Mine includes all pending transactions in a new block.
func (c *Chain) Mine() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mineLocked()
}

func (c *Chain) mineLocked() {
	if len(c.pending) == 0 {
		return
	}
	c.number++
	for i, tx := range c.pending {
		from, _ := types.Sender(c.signer, tx)
		status := types.ReceiptStatusSuccessful
		if err := c.execute(from, tx.Data(), true); err != nil {
			status = types.ReceiptStatusFailed
		}
		c.receipts[tx.Hash()] = &types.Receipt{
			Type:             tx.Type(),
			Status:           status,
			GasUsed:          gasPerVote,
			TxHash:           tx.Hash(),
			BlockNumber:      new(big.Int).SetUint64(c.number),
			TransactionIndex: uint(i),
		}
	}
	c.pending = nil
}

func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

func (c *Chain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &types.Header{
		Number:  new(big.Int).SetUint64(c.number),
		BaseFee: new(big.Int).Set(c.baseFee),
	}, nil
}

func (c *Chain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *Chain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (c *Chain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account], nil
}

func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.To == nil || *msg.To != ContractAddress {
		return nil, nil
	}
	if len(msg.Data) < 4 {
		return nil, errors.New("execution reverted")
	}
	method, err := c.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, errors.New("execution reverted")
	}
	if err := c.callErrs[method.Name]; err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "candidatesCount":
		return method.Outputs.Pack(new(big.Int).SetUint64(uint64(len(c.candidates))))
	case "candidates":
		id := args[0].(*big.Int).Uint64()
		if err := c.candidateErrs[id]; err != nil {
			return nil, err
		}
		var cand ballot.Candidate
		if id >= 1 && id <= uint64(len(c.candidates)) {
			cand = c.candidates[id-1]
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(cand.ID), cand.Name, new(big.Int).SetUint64(cand.VoteCount))
	case "voters":
		return method.Outputs.Pack(c.voters[args[0].(common.Address)])
	case "vote":
		if err := c.execute(msg.From, msg.Data, false); err != nil {
			return nil, err
		}
		return []byte{}, nil
	}
	return nil, fmt.Errorf("unsupported method %s", method.Name)
}

func (c *Chain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if _, err := c.CallContract(ctx, msg, nil); err != nil {
		return 0, err
	}
	return gasPerVote, nil
}

func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendErr != nil {
		return c.sendErr
	}
	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() != c.nonces[from] {
		return fmt.Errorf("nonce too low: address %s, tx: %d state: %d", from.Hex(), tx.Nonce(), c.nonces[from])
	}
	c.nonces[from]++
	c.sent = append(c.sent, tx)
	c.pending = append(c.pending, tx)
	if c.autoMine {
		c.mineLocked()
	}
	return nil
}

func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.receiptErr != nil {
		return nil, c.receiptErr
	}
	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// execute runs vote(id) on behalf of from. State changes only when commit
// is set.
func (c *Chain) execute(from common.Address, data []byte, commit bool) error {
	if len(data) < 4 {
		return newRevertError("")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil || method.Name != "vote" {
		return newRevertError("")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return newRevertError("")
	}
	id := args[0].(*big.Int)

	if c.voters[from] {
		return newRevertError(ReasonAlreadyVoted)
	}
	if id.Sign() <= 0 || id.Cmp(new(big.Int).SetUint64(uint64(len(c.candidates)))) > 0 {
		return newRevertError(ReasonInvalidCandidate)
	}
	if commit {
		c.voters[from] = true
		c.candidates[id.Uint64()-1].VoteCount++
	}
	return nil
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package session keeps the local view of a voting contract consistent with
// the chain while a wallet holder connects, reads candidates and votes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/vechain/ballot/ballot"
	"github.com/vechain/ballot/chainclient"
	"github.com/vechain/ballot/log"
	"github.com/vechain/ballot/metrics"
	"github.com/vechain/ballot/wallet"
)

var logger = log.WithContext("pkg", "session")

var (
	metricFetchDuration = metrics.LazyLoadHistogramVec("candidates_fetch_ms", []string{"ok"}, metrics.BucketChainCall)
	metricVoteResult    = metrics.LazyLoadCounterVec("vote_result_count", []string{"result"})
	metricNotices       = metrics.LazyLoadCounterVec("notice_count", []string{"kind"})
	metricSubmitting    = metrics.LazyLoadGauge("vote_in_flight")
)

var (
	// ErrNoProvider is returned when no wallet is installed.
	ErrNoProvider = errors.New("wallet not installed")
	// ErrNotConnected is returned when voting before connecting a wallet.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrVoteInFlight is returned while a previous vote awaits confirmation.
	ErrVoteInFlight = errors.New("a vote is already being submitted")
)

const (
	DefaultConfirmTimeout = 2 * time.Minute
	defaultNoticeHistory  = 32

	msgNoProvider       = "wallet not installed"
	msgConnectRejected  = "wallet connection rejected"
	msgConnectFirst     = "connect wallet first"
	msgTxRejected       = "transaction rejected"
	msgVoteConfirmedFmt = "vote for candidate #%d confirmed"
)

// Confirmer waits for a transaction to be mined. A reverted transaction is
// reported as an error.
type Confirmer interface {
	Confirm(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Options tunes a Manager.
type Options struct {
	// ConfirmTimeout bounds the wait for a vote confirmation. Zero selects
	// DefaultConfirmTimeout.
	ConfirmTimeout time.Duration
	// NoticeHistory is how many notices Notices returns.
	NoticeHistory int
}

// Manager mediates all reads and writes against the voting contract through
// a user approved wallet. It is safe for concurrent use. No lock is held
// while talking to the wallet or the chain.
type Manager struct {
	provider  wallet.Provider
	contract  ballot.Binding
	confirmer Confirmer
	opts      Options

	mu         sync.Mutex
	session    Session
	candidates []ballot.Candidate
	fetchedAt  time.Time
	notices    []Notice
	authorized bool

	submitting atomic.Bool

	noticeFeed   event.Feed
	snapshotFeed event.Feed
	scope        event.SubscriptionScope
}

// New creates a manager. A nil provider stands for a host without wallet.
func New(provider wallet.Provider, contract ballot.Binding, confirmer Confirmer, opts Options) *Manager {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.NoticeHistory <= 0 {
		opts.NoticeHistory = defaultNoticeHistory
	}
	return &Manager{
		provider:  provider,
		contract:  contract,
		confirmer: confirmer,
		opts:      opts,
		session:   Session{VoteStatus: VoteStatusUnknown},
	}
}

// Contract returns the address of the voting contract.
func (m *Manager) Contract() common.Address {
	return m.contract.Address()
}

// Connect asks the wallet for accounts and binds the session to the first
// one, then reads its vote status. It never retries.
func (m *Manager) Connect(ctx context.Context) error {
	if m.provider == nil {
		m.mu.Lock()
		m.session.LastError = msgNoProvider
		m.mu.Unlock()
		logger.Warn("no wallet provider")
		m.notify(newNotice(NoticeEnvironment, msgNoProvider, ""))
		m.publish()
		return ErrNoProvider
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = wallet.ErrNoAccounts
	}
	if err != nil {
		logger.Warn("wallet connection failed", "err", err)
		m.notify(newNotice(NoticeRejection, msgConnectRejected, err.Error()))
		return fmt.Errorf("connect: %w", err)
	}

	addr := accounts[0]
	m.mu.Lock()
	if cur := m.session.ConnectedAddress; cur == nil || *cur != addr {
		m.session.HasVoted = false
		m.session.VoteStatus = VoteStatusUnknown
	}
	m.session.ConnectedAddress = &addr
	m.session.LastError = ""
	m.authorized = true
	m.mu.Unlock()
	logger.Info("wallet connected", "account", addr)
	m.publish()

	if err := m.CheckHasVoted(ctx, addr); err != nil {
		logger.Debug("vote status unavailable after connect", "account", addr, "err", err)
	}
	return nil
}

// FetchCandidates reads candidates 1..count one by one and replaces the
// cached list only when every read succeeded. Failures are logged and
// returned, the previous list stays in place. Overlapping fetches do not
// coordinate, the last one to finish wins.
func (m *Manager) FetchCandidates(ctx context.Context) error {
	if m.provider == nil {
		logger.Debug("no wallet provider, candidates not fetched")
		return ErrNoProvider
	}

	start := time.Now()
	list, err := m.readCandidates(ctx)
	ok := "true"
	if err != nil {
		ok = "false"
	}
	metricFetchDuration().ObserveWithLabels(time.Since(start).Milliseconds(), map[string]string{"ok": ok})
	if err != nil {
		logger.Warn("failed to fetch candidates", "err", err)
		return err
	}

	m.mu.Lock()
	m.candidates = list
	m.fetchedAt = time.Now()
	m.mu.Unlock()
	logger.Debug("candidates fetched", "count", len(list), "elapsed", time.Since(start))
	m.publish()
	return nil
}

func (m *Manager) readCandidates(ctx context.Context) ([]ballot.Candidate, error) {
	count, err := m.contract.CandidatesCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate count: %w", err)
	}
	list := make([]ballot.Candidate, 0, min(count, 256))
	for id := uint64(1); id <= count; id++ {
		c, err := m.contract.Candidate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read candidate %d of %d: %w", id, count, err)
		}
		list = append(list, c)
	}
	return list, nil
}

// CheckHasVoted reads the voting flag of addr. A failed read leaves
// HasVoted false with an unknown status. The result is dropped when addr
// is no longer the connected account.
func (m *Manager) CheckHasVoted(ctx context.Context, addr common.Address) error {
	voted, err := m.contract.HasVoted(ctx, addr)

	m.mu.Lock()
	if cur := m.session.ConnectedAddress; cur == nil || *cur != addr {
		m.mu.Unlock()
		logger.Debug("discarding vote status of inactive account", "account", addr)
		return err
	}
	switch {
	case err != nil:
		m.session.HasVoted = false
		m.session.VoteStatus = VoteStatusUnknown
	case voted:
		m.session.HasVoted = true
		m.session.VoteStatus = VoteStatusVoted
	default:
		m.session.HasVoted = false
		m.session.VoteStatus = VoteStatusNotVoted
	}
	m.mu.Unlock()
	m.publish()

	if err != nil {
		logger.Warn("failed to read vote status", "account", addr, "err", err)
		return fmt.Errorf("failed to read vote status: %w", err)
	}
	return nil
}

// Vote submits a vote for candidateID from the connected account and waits
// for its confirmation. HasVoted is only set once the transaction is mined
// successfully. A second call while one is in flight returns
// ErrVoteInFlight without touching the wallet.
func (m *Manager) Vote(ctx context.Context, candidateID uint64) error {
	m.mu.Lock()
	var addr common.Address
	connected := m.session.ConnectedAddress != nil
	if connected {
		addr = *m.session.ConnectedAddress
	}
	m.mu.Unlock()

	if !connected || m.provider == nil {
		m.notify(newNotice(NoticePrompt, msgConnectFirst, ""))
		return ErrNotConnected
	}
	if !m.submitting.CompareAndSwap(false, true) {
		return ErrVoteInFlight
	}
	metricSubmitting().Set(1)
	m.setSubmitting(true, nil)
	defer func() {
		m.submitting.Store(false)
		metricSubmitting().Set(0)
		m.setSubmitting(false, nil)
	}()

	logger.Info("submitting vote", "account", addr, "candidate", candidateID)
	receipt, err := m.submitVote(ctx, addr, candidateID)
	if err != nil {
		metricVoteResult().AddWithLabel(1, map[string]string{"result": voteResult(err)})
		logger.Warn("vote failed", "account", addr, "candidate", candidateID, "err", err)
		m.notify(rejectionNotice(err))
		return err
	}
	metricVoteResult().AddWithLabel(1, map[string]string{"result": "confirmed"})
	logger.Info("vote confirmed", "account", addr, "candidate", candidateID, "tx", receipt.TxHash, "block", receipt.BlockNumber)

	m.mu.Lock()
	if cur := m.session.ConnectedAddress; cur != nil && *cur == addr {
		m.session.HasVoted = true
		m.session.VoteStatus = VoteStatusVoted
	}
	m.mu.Unlock()
	m.notify(newNotice(NoticeSuccess, fmt.Sprintf(msgVoteConfirmedFmt, candidateID), ""))

	if err := m.FetchCandidates(ctx); err != nil {
		logger.Debug("tallies not refreshed after vote", "err", err)
	}
	return nil
}

func (m *Manager) submitVote(ctx context.Context, addr common.Address, candidateID uint64) (*types.Receipt, error) {
	signer, err := m.provider.Signer(ctx, addr)
	if err != nil {
		return nil, err
	}
	data, err := m.contract.VoteData(candidateID)
	if err != nil {
		return nil, err
	}
	tx, err := signer.SendTransaction(ctx, m.contract.Address(), data)
	if err != nil {
		return nil, err
	}
	hash := tx.Hash()
	m.setSubmitting(true, &hash)

	confirmCtx, cancel := context.WithTimeout(ctx, m.opts.ConfirmTimeout)
	defer cancel()
	receipt, err := m.confirmer.Confirm(confirmCtx, hash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, chainclient.ErrConfirmTimeout) {
			err = fmt.Errorf("%w after %v (tx %s)", chainclient.ErrConfirmTimeout, m.opts.ConfirmTimeout, hash.Hex())
		}
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w (tx %s)", chainclient.ErrReverted, hash.Hex())
	}
	return receipt, nil
}

func (m *Manager) setSubmitting(on bool, pending *common.Hash) {
	m.mu.Lock()
	m.session.IsSubmitting = on
	m.session.PendingTx = pending
	m.mu.Unlock()
	m.publish()
}

func rejectionNotice(err error) Notice {
	reason := rejectionReason(err)
	msg := msgTxRejected
	if reason != "" {
		msg += ": " + reason
	}
	return newNotice(NoticeRejection, msg, reason)
}

// rejectionReason prefers the contract's revert reason, then the wallet's
// own message. A receipt with failed status carries no reason.
func rejectionReason(err error) string {
	if reason, ok := chainclient.RevertReason(err); ok {
		return reason
	}
	if errors.Is(err, chainclient.ErrReverted) {
		return ""
	}
	if errors.Is(err, wallet.ErrUserRejected) {
		return wallet.ErrUserRejected.Error()
	}
	return err.Error()
}

func voteResult(err error) string {
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		return "rejected"
	case errors.Is(err, chainclient.ErrConfirmTimeout):
		return "timeout"
	case errors.Is(err, chainclient.ErrReverted):
		return "reverted"
	}
	if _, ok := chainclient.RevertReason(err); ok {
		return "reverted"
	}
	return "error"
}

// Reset discards the connected account, its vote status and the cached
// candidates. IsSubmitting keeps tracking a vote still in flight.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) resetLocked() {
	m.session = Session{
		VoteStatus:   VoteStatusUnknown,
		IsSubmitting: m.submitting.Load(),
		PendingTx:    m.session.PendingTx,
	}
	if !m.session.IsSubmitting {
		m.session.PendingTx = nil
	}
	m.candidates = nil
	m.fetchedAt = time.Time{}
}

// OnAccountsChanged invalidates all state and reloads it for the new primary
// account. An empty list leaves the session disconnected.
func (m *Manager) OnAccountsChanged(ctx context.Context, accounts []common.Address) {
	var addr *common.Address
	if len(accounts) > 0 {
		a := accounts[0]
		addr = &a
	}

	m.mu.Lock()
	m.resetLocked()
	m.session.ConnectedAddress = addr
	m.mu.Unlock()
	logger.Info("accounts changed", "account", addr)
	m.publish()

	if err := m.FetchCandidates(ctx); err != nil {
		logger.Debug("candidates not reloaded after account change", "err", err)
	}
	if addr != nil {
		if err := m.CheckHasVoted(ctx, *addr); err != nil {
			logger.Debug("vote status not reloaded after account change", "err", err)
		}
	}
}

// Watch follows the wallet's account changes until ctx is done or the
// subscription fails. Changes are applied only after a successful Connect.
func (m *Manager) Watch(ctx context.Context) error {
	if m.provider == nil {
		return ErrNoProvider
	}
	ch := make(chan []common.Address, 4)
	sub := m.provider.SubscribeAccounts(ch)
	defer sub.Unsubscribe()

	for {
		select {
		case accounts := <-ch:
			m.mu.Lock()
			authorized := m.authorized
			m.mu.Unlock()
			if !authorized {
				logger.Debug("ignoring account change before connect")
				continue
			}
			m.OnAccountsChanged(ctx, accounts)
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// Poll refreshes the candidates and the connected account's vote status
// every interval until ctx is done.
func (m *Manager) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.FetchCandidates(ctx); err != nil {
				continue
			}
			m.mu.Lock()
			addr := m.session.ConnectedAddress
			m.mu.Unlock()
			if addr != nil {
				_ = m.CheckHasVoted(ctx, *addr)
			}
		}
	}
}

// Session returns a copy of the session state.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.copy()
}

// Candidates returns a copy of the cached candidate list.
func (m *Manager) Candidates() []ballot.Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ballot.Candidate(nil), m.candidates...)
}

// Snapshot returns a consistent copy of session and candidates.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		Session:    m.session.copy(),
		Candidates: append([]ballot.Candidate{}, m.candidates...),
	}
	if !m.fetchedAt.IsZero() {
		at := m.fetchedAt
		snap.FetchedAt = &at
	}
	return snap
}

// Notices returns the most recent notices, oldest first.
func (m *Manager) Notices() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notice(nil), m.notices...)
}

// SubscribeNotices delivers every notice to ch. Slow receivers block the
// manager, so ch should be buffered and drained.
func (m *Manager) SubscribeNotices(ch chan<- Notice) event.Subscription {
	return m.scope.Track(m.noticeFeed.Subscribe(ch))
}

// SubscribeSnapshots delivers a snapshot to ch after every state change.
func (m *Manager) SubscribeSnapshots(ch chan<- Snapshot) event.Subscription {
	return m.scope.Track(m.snapshotFeed.Subscribe(ch))
}

// Close ends all subscriptions.
func (m *Manager) Close() {
	m.scope.Close()
}

func (m *Manager) notify(n Notice) {
	m.mu.Lock()
	m.notices = append(m.notices, n)
	if over := len(m.notices) - m.opts.NoticeHistory; over > 0 {
		m.notices = append(m.notices[:0], m.notices[over:]...)
	}
	m.mu.Unlock()

	metricNotices().AddWithLabel(1, map[string]string{"kind": string(n.Kind)})
	m.noticeFeed.Send(n)
}

func (m *Manager) publish() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.snapshotFeed.Send(snap)
}

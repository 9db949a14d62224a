// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pborman/uuid"

	"github.com/vechain/ballot/ballot"
)

// VoteStatus is what is known about the connected account's vote.
type VoteStatus string

const (
	// VoteStatusUnknown means the status was not read yet or the read failed.
	VoteStatusUnknown  VoteStatus = "unknown"
	VoteStatusNotVoted VoteStatus = "not-voted"
	VoteStatusVoted    VoteStatus = "voted"
)

// Session is the wallet side state of a voting session.
type Session struct {
	ConnectedAddress *common.Address `json:"connectedAddress"`
	// HasVoted is false both for accounts that did not vote and when the
	// status could not be read. VoteStatus tells the two apart.
	HasVoted     bool         `json:"hasVoted"`
	VoteStatus   VoteStatus   `json:"voteStatus"`
	IsSubmitting bool         `json:"isSubmitting"`
	PendingTx    *common.Hash `json:"pendingTx,omitempty"`
	LastError    string       `json:"lastError,omitempty"`
}

func (s Session) copy() Session {
	if s.ConnectedAddress != nil {
		addr := *s.ConnectedAddress
		s.ConnectedAddress = &addr
	}
	if s.PendingTx != nil {
		hash := *s.PendingTx
		s.PendingTx = &hash
	}
	return s
}

// Snapshot is a consistent copy of the session and the cached candidates.
type Snapshot struct {
	Session    Session            `json:"session"`
	Candidates []ballot.Candidate `json:"candidates"`
	FetchedAt  *time.Time         `json:"fetchedAt,omitempty"`
}

// NoticeKind classifies user facing notices.
type NoticeKind string

const (
	// NoticeEnvironment reports a missing wallet. It persists in LastError.
	NoticeEnvironment NoticeKind = "environment"
	// NoticeRejection reports a rejected connection or vote.
	NoticeRejection NoticeKind = "rejection"
	// NoticePrompt asks the user to act before retrying.
	NoticePrompt  NoticeKind = "prompt"
	NoticeSuccess NoticeKind = "success"
)

// Notice is a one-shot message for the user.
type Notice struct {
	ID      string     `json:"id"`
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Reason  string     `json:"reason,omitempty"`
	Time    time.Time  `json:"time"`
}

func newNotice(kind NoticeKind, message, reason string) Notice {
	return Notice{
		ID:      uuid.New(),
		Kind:    kind,
		Message: message,
		Reason:  reason,
		Time:    time.Now(),
	}
}

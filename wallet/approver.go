// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/mattn/go-tty"
)

// Approver is the user facing side of a wallet. Its methods are called
// whenever the wallet needs the user's consent.
type Approver interface {
	// ApproveAccounts is called before accounts are shared with the
	// application. It returns ErrUserRejected when the user declines.
	ApproveAccounts(ctx context.Context, accounts []common.Address) error
	// ApproveTransaction is called for every transaction before it is
	// signed. It returns ErrUserRejected when the user declines.
	ApproveTransaction(ctx context.Context, from common.Address, tx *types.Transaction) error
}

// AutoApprover is a non-interactive approver that allows everything.
type AutoApprover struct{}

func (AutoApprover) ApproveAccounts(context.Context, []common.Address) error { return nil }
func (AutoApprover) ApproveTransaction(context.Context, common.Address, *types.Transaction) error {
	return nil
}

// PromptFunc shows prompt to the user and returns the line typed back.
type PromptFunc func(prompt string) (string, error)

// TerminalApprover asks for consent on the controlling terminal.
type TerminalApprover struct {
	prompt PromptFunc
}

// NewTerminalApprover creates an approver reading answers from the tty.
func NewTerminalApprover() *TerminalApprover {
	return &TerminalApprover{prompt: ReadLineFromTTY}
}

// NewPromptApprover creates a terminal style approver on top of prompt.
func NewPromptApprover(prompt PromptFunc) *TerminalApprover {
	return &TerminalApprover{prompt: prompt}
}

func (a *TerminalApprover) ApproveAccounts(ctx context.Context, accounts []common.Address) error {
	var b strings.Builder
	b.WriteString("The application requests access to:\n")
	for _, acc := range accounts {
		fmt.Fprintf(&b, "  %s\n", acc.Hex())
	}
	b.WriteString("Connect? [y/N] ")
	return a.ask(ctx, b.String())
}

func (a *TerminalApprover) ApproveTransaction(ctx context.Context, from common.Address, tx *types.Transaction) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Sign transaction\n  from:    %s\n", from.Hex())
	if tx.To() != nil {
		fmt.Fprintf(&b, "  to:      %s\n", tx.To().Hex())
	}
	fmt.Fprintf(&b, "  nonce:   %d\n  gas:     %d\n  max fee: %s gwei\n", tx.Nonce(), tx.Gas(), gwei(tx.GasFeeCap()))
	fmt.Fprintf(&b, "  data:    %d bytes\n", len(tx.Data()))
	b.WriteString("Approve? [y/N] ")
	return a.ask(ctx, b.String())
}

func (a *TerminalApprover) ask(ctx context.Context, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	answer, err := a.prompt(prompt)
	if err != nil {
		return fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return ErrUserRejected
}

func gwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.GWei))
	return f.Text('f', 2)
}

// ReadLineFromTTY prints prompt on a freshly opened tty and reads a line.
func ReadLineFromTTY(prompt string) (string, error) {
	t, err := tty.Open()
	if err != nil {
		return "", err
	}
	defer t.Close()
	fmt.Fprint(t.Output(), prompt)
	return t.ReadString()
}

// ReadPasswordFromTTY prints prompt on a freshly opened tty and reads a line
// without echo.
func ReadPasswordFromTTY(prompt string) (string, error) {
	t, err := tty.Open()
	if err != nil {
		return "", err
	}
	defer t.Close()
	fmt.Fprint(t.Output(), prompt)
	return t.ReadPasswordNoEcho()
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/ballot/ballot"
	"github.com/vechain/ballot/chainclient"
	"github.com/vechain/ballot/log"
	"github.com/vechain/ballot/session"
	"github.com/vechain/ballot/wallet"
)

var logger = log.WithContext("pkg", "ballot")

func initLogger(ctx *cli.Context) {
	log.Init(os.Stderr, ctx.Int(verbosityFlag.Name), ctx.Bool(jsonLogsFlag.Name))
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

// accountWallet is a wallet provider backed by local keys.
type accountWallet interface {
	wallet.Provider
	Accounts() []common.Address
	Select(addr common.Address) error
	Close()
}

type app struct {
	client     *ethclient.Client
	contract   *ballot.Contract
	wallet     accountWallet
	walletDesc string
	confirmer  *chainclient.Confirmer
	mgr        *session.Manager
}

// newApp dials the chain and binds the contract. Without withWallet the
// session runs on an empty wallet, enough for reads.
func newApp(ctx context.Context, s *settings, withWallet bool) (*app, error) {
	if !common.IsHexAddress(s.Contract) {
		return nil, errors.Errorf("-%s: invalid address %q", contractFlag.Name, s.Contract)
	}
	client, err := chainclient.Dial(ctx, s.RPCURL)
	if err != nil {
		return nil, err
	}
	contract, err := ballot.New(common.HexToAddress(s.Contract), client)
	if err != nil {
		client.Close()
		return nil, err
	}

	a := &app{client: client, contract: contract}
	if withWallet {
		w, desc, err := openWallet(client, s, selectApprover(s))
		if err != nil {
			client.Close()
			return nil, err
		}
		a.wallet, a.walletDesc = w, desc
	} else {
		a.wallet, a.walletDesc = wallet.NewKeyProvider(client, wallet.AutoApprover{}), "none"
	}

	a.confirmer = chainclient.NewConfirmer(client, s.ConfirmTimeout)
	a.mgr = session.New(a.wallet, contract, a.confirmer, session.Options{ConfirmTimeout: s.ConfirmTimeout})
	return a, nil
}

func (a *app) Close() {
	a.mgr.Close()
	a.wallet.Close()
	a.client.Close()
}

func selectApprover(s *settings) wallet.Approver {
	if s.Yes {
		return wallet.AutoApprover{}
	}
	return wallet.NewTerminalApprover()
}

// openWallet loads the wallet from a private key environment variable or a
// keystore directory, in that order. A nil approver approves everything.
func openWallet(backend chainclient.Backend, s *settings, approver wallet.Approver) (accountWallet, string, error) {
	if approver == nil {
		approver = wallet.AutoApprover{}
	}

	var (
		w    accountWallet
		desc string
	)
	switch {
	case s.PrivateKeyEnv != "":
		key, err := loadKeyFromEnv(s.PrivateKeyEnv)
		if err != nil {
			return nil, "", err
		}
		w = wallet.NewKeyProvider(backend, approver, key)
		desc = "key from $" + s.PrivateKeyEnv
	case s.Keystore != "":
		ks := keystore.NewKeyStore(s.Keystore, keystore.StandardScryptN, keystore.StandardScryptP)
		passwordFile := s.PasswordFile
		w = wallet.NewKeystoreProvider(ks, backend, approver, func(addr common.Address) (string, error) {
			return readPassphrase(passwordFile, fmt.Sprintf("Passphrase for %v: ", addr))
		})
		desc = "keystore " + s.Keystore
	default:
		return nil, "", errors.Errorf("no wallet configured, set -%s or -%s", keystoreFlag.Name, privateKeyEnvFlag.Name)
	}

	if s.Account != "" {
		if !common.IsHexAddress(s.Account) {
			w.Close()
			return nil, "", errors.Errorf("-%s: invalid address %q", accountFlag.Name, s.Account)
		}
		if err := w.Select(common.HexToAddress(s.Account)); err != nil {
			w.Close()
			return nil, "", errors.Wrapf(err, "-%s", accountFlag.Name)
		}
	}
	return w, desc, nil
}

func loadKeyFromEnv(name string) (*ecdsa.PrivateKey, error) {
	hex, ok := os.LookupEnv(name)
	if !ok || hex == "" {
		return nil, errors.Errorf("environment variable %v is empty", name)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hex), "0x"))
	if err != nil {
		return nil, errors.Wrapf(err, "-%s", privateKeyEnvFlag.Name)
	}
	return key, nil
}

// readPassphrase reads the first line of path, or prompts on the terminal
// when path is empty.
func readPassphrase(path, prompt string) (string, error) {
	if path == "" {
		return wallet.ReadPasswordFromTTY(prompt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "-%s", passwordFileFlag.Name)
	}
	return strings.TrimRight(strings.SplitN(string(data), "\n", 2)[0], "\r"), nil
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// ballot connects a wallet to an on-chain voting contract. It lists the
// candidates, votes and serves the session to a local user interface.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/ballot/api"
	"github.com/vechain/ballot/metrics"
	"github.com/vechain/ballot/session"
)

var (
	version   string
	gitCommit string
	gitTag    string
	// contractAddress may be set at build time with -ldflags.
	contractAddress string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "Ballot",
		Usage:   "Wallet session for an on-chain voting contract",
		Commands: []cli.Command{
			{
				Name:   "candidates",
				Usage:  "list the candidates and their tallies",
				Flags:  flagSet(connFlags),
				Action: candidatesAction,
			},
			{
				Name:      "status",
				Usage:     "show whether an account has voted",
				ArgsUsage: "[address]",
				Flags:     flagSet(connFlags, walletFlags),
				Action:    statusAction,
			},
			{
				Name:      "vote",
				Usage:     "vote for a candidate and wait for confirmation",
				ArgsUsage: "<candidate-id>",
				Flags:     flagSet(connFlags, walletFlags),
				Action:    voteAction,
			},
			{
				Name:  "accounts",
				Usage: "manage wallet accounts",
				Subcommands: []cli.Command{
					{
						Name:   "list",
						Usage:  "list the wallet accounts",
						Flags:  flagSet(connFlags, walletFlags),
						Action: accountsListAction,
					},
					{
						Name:   "new",
						Usage:  "create an account in the keystore",
						Flags:  []cli.Flag{configFlag, keystoreFlag, passwordFileFlag},
						Action: accountsNewAction,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "serve the session over HTTP and WebSocket",
				Flags:  flagSet(connFlags, walletFlags, serveFlags),
				Action: serveAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func candidatesAction(ctx *cli.Context) error {
	initLogger(ctx)
	s, err := loadSettings(ctx)
	if err != nil {
		return err
	}
	exitSignal := handleExitSignal()

	app, err := newApp(exitSignal, s, false)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.mgr.FetchCandidates(exitSignal); err != nil {
		return err
	}
	printCandidates(app.mgr.Snapshot())
	return nil
}

func statusAction(ctx *cli.Context) error {
	initLogger(ctx)
	s, err := loadSettings(ctx)
	if err != nil {
		return err
	}
	exitSignal := handleExitSignal()

	if arg := ctx.Args().First(); arg != "" {
		if !common.IsHexAddress(arg) {
			return errors.Errorf("invalid address %q", arg)
		}
		app, err := newApp(exitSignal, s, false)
		if err != nil {
			return err
		}
		defer app.Close()
		voted, err := app.contract.HasVoted(exitSignal, common.HexToAddress(arg))
		if err != nil {
			return err
		}
		fmt.Printf("%v voted: %v\n", common.HexToAddress(arg), voted)
		return nil
	}

	app, err := newApp(exitSignal, s, true)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.mgr.Connect(exitSignal); err != nil {
		return err
	}
	sess := app.mgr.Session()
	fmt.Printf("%v voted: %v (%v)\n", *sess.ConnectedAddress, sess.HasVoted, sess.VoteStatus)
	return nil
}

func voteAction(ctx *cli.Context) error {
	initLogger(ctx)
	s, err := loadSettings(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
	if err != nil || id == 0 {
		return errors.Errorf("invalid candidate id %q", ctx.Args().First())
	}
	exitSignal := handleExitSignal()

	app, err := newApp(exitSignal, s, true)
	if err != nil {
		return err
	}
	defer app.Close()

	defer printNotices(app.mgr)()

	if err := app.mgr.Connect(exitSignal); err != nil {
		return err
	}
	if app.mgr.Session().HasVoted {
		return errors.New("this account has already voted")
	}

	stop := showProgress(app.mgr, app.confirmer.Timeout())
	err = app.mgr.Vote(exitSignal, id)
	stop()
	if err != nil {
		return err
	}
	printCandidates(app.mgr.Snapshot())
	return nil
}

// showProgress draws a bar that fills up over the confirmation timeout while
// the vote is pending.
func showProgress(mgr *session.Manager, timeout time.Duration) func() {
	bar := pb.New64(int64(timeout / time.Second)).
		Prefix("waiting for confirmation ").
		SetMaxWidth(90)
	bar.ShowCounters = false

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		started := false
		for {
			select {
			case <-done:
				if started {
					bar.Finish()
				}
				return
			case <-ticker.C:
				if mgr.Session().PendingTx == nil {
					continue
				}
				if !started {
					bar.Start()
					started = true
				}
				bar.Increment()
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// printNotices echoes session notices until the returned func is called.
func printNotices(mgr *session.Manager) func() {
	ch := make(chan session.Notice, 8)
	sub := mgr.SubscribeNotices(ch)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case n := <-ch:
				fmt.Println(n.Message)
			case <-sub.Err():
				for {
					select {
					case n := <-ch:
						fmt.Println(n.Message)
					default:
						return
					}
				}
			}
		}
	}()
	return func() {
		sub.Unsubscribe()
		<-done
	}
}

func accountsListAction(ctx *cli.Context) error {
	initLogger(ctx)
	s, err := loadSettings(ctx)
	if err != nil {
		return err
	}

	// listing needs no chain access
	w, _, err := openWallet(nil, s, nil)
	if err != nil {
		return err
	}
	defer w.Close()

	for i, addr := range w.Accounts() {
		fmt.Printf("#%d %v\n", i, addr)
	}
	return nil
}

func accountsNewAction(ctx *cli.Context) error {
	s, err := loadSettings(ctx)
	if err != nil {
		return err
	}
	if s.Keystore == "" {
		return errors.New("-keystore required")
	}
	passphrase, err := readPassphrase(s.PasswordFile, "New account passphrase: ")
	if err != nil {
		return err
	}
	ks := keystore.NewKeyStore(s.Keystore, keystore.StandardScryptN, keystore.StandardScryptP)
	acc, err := ks.NewAccount(passphrase)
	if err != nil {
		return errors.Wrap(err, "create account")
	}
	fmt.Printf("%v\n%v\n", acc.Address, acc.URL.Path)
	return nil
}

func serveAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)
	s, err := loadSettings(ctx)
	if err != nil {
		return err
	}
	if s.EnableMetrics {
		metrics.InitializePrometheusMetrics()
	}
	exitSignal := handleExitSignal()

	app, err := newApp(exitSignal, s, true)
	if err != nil {
		return err
	}
	defer app.Close()

	handler, closeSubs := api.New(app.mgr, api.Options{
		AllowedOrigins:  s.APICors,
		EnableReqLogger: s.EnableAPILogs,
		SlowRequest:     s.SlowRequest,
		EnableMetrics:   s.EnableMetrics,
		HealthMaxAge:    3 * s.RefreshInterval,
	})
	defer closeSubs()

	apiURL, closeServer, err := api.StartServer(s.APIAddr, handler)
	if err != nil {
		return err
	}
	defer func() { logger.Info("stopping API server..."); closeServer() }()

	if err := app.mgr.FetchCandidates(exitSignal); err != nil {
		logger.Warn("initial candidate fetch failed", "err", err)
	}
	printStartupMessage(app, apiURL)

	g, gctx := errgroup.WithContext(exitSignal)
	g.Go(func() error {
		if err := app.mgr.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "watch wallet")
		}
		return nil
	})
	g.Go(func() error {
		app.mgr.Poll(gctx, s.RefreshInterval)
		return nil
	})
	return g.Wait()
}

func printCandidates(snap session.Snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVOTES")
	for _, c := range snap.Candidates {
		fmt.Fprintf(w, "%d\t%s\t%d\n", c.ID, c.Name, c.VoteCount)
	}
	w.Flush()
	if snap.Session.ConnectedAddress != nil {
		fmt.Printf("\naccount %v voted: %v\n", *snap.Session.ConnectedAddress, snap.Session.HasVoted)
	}
}

func printStartupMessage(app *app, apiURL string) {
	fmt.Printf(`Starting %v
    Contract    [ %v ]
    Wallet      [ %v ]
    API portal  [ %v ]
`,
		fullVersion(),
		app.contract.Address(),
		app.walletDesc,
		apiURL)
}

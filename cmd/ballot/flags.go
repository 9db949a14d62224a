// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/ballot/log"
	"github.com/vechain/ballot/session"
)

var (
	configFlag = cli.StringFlag{
		Name:   "config",
		Usage:  "YAML file with default values for the flags below",
		EnvVar: "BALLOT_CONFIG",
	}
	rpcURLFlag = cli.StringFlag{
		Name:   "rpc-url",
		Value:  "http://localhost:8545",
		Usage:  "JSON-RPC endpoint of the chain (http, ws or ipc)",
		EnvVar: "BALLOT_RPC_URL",
	}
	contractFlag = cli.StringFlag{
		Name:   "contract",
		Usage:  "address of the voting contract",
		EnvVar: "BALLOT_CONTRACT",
	}
	keystoreFlag = cli.StringFlag{
		Name:  "keystore",
		Usage: "keystore directory holding the wallet accounts",
	}
	passwordFileFlag = cli.StringFlag{
		Name:  "password-file",
		Usage: "file with the keystore passphrase, prompted for when absent",
	}
	privateKeyEnvFlag = cli.StringFlag{
		Name:  "private-key-env",
		Usage: "name of an environment variable holding a hex private key",
	}
	accountFlag = cli.StringFlag{
		Name:  "account",
		Usage: "wallet account to use, defaults to the first one",
	}
	confirmTimeoutFlag = cli.DurationFlag{
		Name:  "confirm-timeout",
		Value: session.DefaultConfirmTimeout,
		Usage: "how long to wait for a vote to be mined",
	}
	yesFlag = cli.BoolFlag{
		Name:  "yes",
		Usage: "approve wallet requests without prompting",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: log.LegacyLevelWarn,
		Usage: "log verbosity (0-5)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}

	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8670",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	apiSlowRequestFlag = cli.DurationFlag{
		Name:  "api-slow-request",
		Value: time.Second,
		Usage: "requests slower than this are logged as warnings, 0 disables",
	}
	refreshIntervalFlag = cli.DurationFlag{
		Name:  "refresh-interval",
		Value: 15 * time.Second,
		Usage: "how often candidates and vote status are re-read from the chain",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "serve prometheus metrics at /metrics",
	}
)

var (
	connFlags = []cli.Flag{
		configFlag,
		rpcURLFlag,
		contractFlag,
		verbosityFlag,
		jsonLogsFlag,
	}
	walletFlags = []cli.Flag{
		keystoreFlag,
		passwordFileFlag,
		privateKeyEnvFlag,
		accountFlag,
		confirmTimeoutFlag,
		yesFlag,
	}
	serveFlags = []cli.Flag{
		apiAddrFlag,
		apiCorsFlag,
		enableAPILogsFlag,
		apiSlowRequestFlag,
		refreshIntervalFlag,
		enableMetricsFlag,
	}
)

func flagSet(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

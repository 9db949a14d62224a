// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the command line flags. Keys use the flag names.
type fileConfig struct {
	RPCURL         string        `yaml:"rpc-url"`
	Contract       string        `yaml:"contract"`
	Keystore       string        `yaml:"keystore"`
	PasswordFile   string        `yaml:"password-file"`
	PrivateKeyEnv  string        `yaml:"private-key-env"`
	Account        string        `yaml:"account"`
	ConfirmTimeout time.Duration `yaml:"confirm-timeout"`
	API            struct {
		Addr            string        `yaml:"addr"`
		Cors            string        `yaml:"cors"`
		EnableLogs      bool          `yaml:"enable-logs"`
		SlowRequest     time.Duration `yaml:"slow-request"`
		RefreshInterval time.Duration `yaml:"refresh-interval"`
		EnableMetrics   bool          `yaml:"enable-metrics"`
	} `yaml:"api"`
}

func loadConfig(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "parse config %v", path)
	}
	return &cfg, nil
}

// settings are the effective options of a command. Explicit flags win over
// the config file, which wins over flag defaults.
type settings struct {
	RPCURL         string
	Contract       string
	Keystore       string
	PasswordFile   string
	PrivateKeyEnv  string
	Account        string
	ConfirmTimeout time.Duration
	Yes            bool

	APIAddr         string
	APICors         string
	EnableAPILogs   bool
	SlowRequest     time.Duration
	RefreshInterval time.Duration
	EnableMetrics   bool
}

func loadSettings(ctx *cli.Context) (*settings, error) {
	cfg := &fileConfig{}
	if path := ctx.String(configFlag.Name); path != "" {
		var err error
		if cfg, err = loadConfig(path); err != nil {
			return nil, err
		}
	}

	str := func(f cli.StringFlag, v string) string {
		if v != "" && !ctx.IsSet(f.Name) {
			return v
		}
		return ctx.String(f.Name)
	}
	dur := func(f cli.DurationFlag, v time.Duration) time.Duration {
		if v != 0 && !ctx.IsSet(f.Name) {
			return v
		}
		return ctx.Duration(f.Name)
	}
	boolean := func(f cli.BoolFlag, v bool) bool {
		if !ctx.IsSet(f.Name) {
			return v
		}
		return ctx.Bool(f.Name)
	}

	s := &settings{
		RPCURL:         str(rpcURLFlag, cfg.RPCURL),
		Contract:       str(contractFlag, cfg.Contract),
		Keystore:       str(keystoreFlag, cfg.Keystore),
		PasswordFile:   str(passwordFileFlag, cfg.PasswordFile),
		PrivateKeyEnv:  str(privateKeyEnvFlag, cfg.PrivateKeyEnv),
		Account:        str(accountFlag, cfg.Account),
		ConfirmTimeout: dur(confirmTimeoutFlag, cfg.ConfirmTimeout),
		Yes:            ctx.Bool(yesFlag.Name),

		APIAddr:         str(apiAddrFlag, cfg.API.Addr),
		APICors:         str(apiCorsFlag, cfg.API.Cors),
		EnableAPILogs:   boolean(enableAPILogsFlag, cfg.API.EnableLogs),
		SlowRequest:     dur(apiSlowRequestFlag, cfg.API.SlowRequest),
		RefreshInterval: dur(refreshIntervalFlag, cfg.API.RefreshInterval),
		EnableMetrics:   boolean(enableMetricsFlag, cfg.API.EnableMetrics),
	}
	if s.Contract == "" {
		s.Contract = contractAddress
	}
	return s, nil
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log configures the process wide structured logger. Records are
// routed through the go-ethereum root logger so that messages emitted by the
// ethclient and keystore packages share the same handler and level.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// Legacy verbosity levels accepted by the --verbosity flag.
const (
	LegacyLevelCrit = iota
	LegacyLevelError
	LegacyLevelWarn
	LegacyLevelInfo
	LegacyLevelDebug
	LegacyLevelTrace
)

// Logger writes leveled key/value records.
type Logger interface {
	New(ctx ...any) Logger
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(ctx context.Context, level slog.Level) bool
}

type logger struct {
	ctx []any
}

// WithContext returns a logger carrying the given key/value pairs. The logger
// resolves the root handler on every call, so package level loggers created
// before Init still honour the configured handler.
func WithContext(ctx ...any) Logger {
	return &logger{ctx: ctx}
}

func (l *logger) New(ctx ...any) Logger {
	merged := make([]any, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	return &logger{ctx: append(merged, ctx...)}
}

func (l *logger) with(ctx []any) []any {
	if len(l.ctx) == 0 {
		return ctx
	}
	merged := make([]any, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	return append(merged, ctx...)
}

func (l *logger) Trace(msg string, ctx ...any) { ethlog.Root().Trace(msg, l.with(ctx)...) }
func (l *logger) Debug(msg string, ctx ...any) { ethlog.Root().Debug(msg, l.with(ctx)...) }
func (l *logger) Info(msg string, ctx ...any)  { ethlog.Root().Info(msg, l.with(ctx)...) }
func (l *logger) Warn(msg string, ctx ...any)  { ethlog.Root().Warn(msg, l.with(ctx)...) }
func (l *logger) Error(msg string, ctx ...any) { ethlog.Root().Error(msg, l.with(ctx)...) }

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return ethlog.Root().Enabled(ctx, level)
}

// Init installs the root handler. Terminal output is coloured when w is a
// terminal; jsonLogs switches to one JSON object per record.
func Init(w io.Writer, verbosity int, jsonLogs bool) {
	level := ethlog.FromLegacyLevel(verbosity)

	var handler slog.Handler
	if jsonLogs {
		handler = ethlog.JSONHandlerWithLevel(w, level)
	} else {
		handler = ethlog.NewTerminalHandlerWithLevel(w, level, useColor(w))
	}
	ethlog.SetDefault(ethlog.NewLogger(handler))
}

// Discard silences all output, mostly for tests.
func Discard() {
	ethlog.SetDefault(ethlog.NewLogger(ethlog.DiscardHandler()))
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

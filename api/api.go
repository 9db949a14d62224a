// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api serves the session state over HTTP and WebSocket for a local
// user interface.
package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vechain/ballot/api/candidates"
	"github.com/vechain/ballot/api/health"
	"github.com/vechain/ballot/api/sessions"
	"github.com/vechain/ballot/api/subscriptions"
	"github.com/vechain/ballot/log"
	"github.com/vechain/ballot/metrics"
	"github.com/vechain/ballot/session"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins  string
	EnableReqLogger bool
	SlowRequest     time.Duration
	EnableMetrics   bool
	// HealthMaxAge is how old the candidate list may get before /health
	// reports unhealthy. Zero only requires one successful fetch.
	HealthMaxAge time.Duration
}

// New return api router
func New(mgr *session.Manager, opts Options) (http.HandlerFunc, func()) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	sessions.New(mgr).
		Mount(router, "/session")
	candidates.New(mgr).
		Mount(router, "/candidates")
	health.New(mgr, opts.HealthMaxAge).
		Mount(router, "/health")
	subs := subscriptions.New(mgr, origins)
	subs.Mount(router, "/subscriptions")

	if opts.EnableMetrics {
		router.Path("/metrics").
			Methods(http.MethodGet).
			Name("metrics").
			Handler(metrics.HTTPHandler())
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	if opts.EnableReqLogger {
		handler = RequestLoggerMiddleware(logger, opts.SlowRequest)(handler)
	}

	return handler.ServeHTTP, subs.Close // subscriptions handles hijacked conns, which need to be closed
}

// StartServer serves handler on addr until the returned func is called.
func StartServer(addr string, handler http.Handler) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen API addr [%v]", addr)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var g errgroup.Group
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Warn("API server stopped", "err", err)
			return err
		}
		return nil
	})
	return "http://" + listener.Addr().String(), func() {
		srv.Close()
		g.Wait()
	}, nil
}

// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/vechain/ballot/log"
)

// RequestLoggerMiddleware logs every request with its body. Requests slower
// than slowThreshold are logged at warn level, a zero threshold disables that.
func RequestLoggerMiddleware(logger log.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Read and log the body (note: this can only be done once)
			var bodyBytes []byte
			if r.Body != nil {
				var err error
				bodyBytes, err = io.ReadAll(r.Body)
				if err != nil {
					logger.Warn("unexpected body read error", "err", err)
					return // don't pass bad request to the next handler
				}
				r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}

			start := time.Now()
			next.ServeHTTP(w, r)
			duration := time.Since(start)

			ctx := []any{
				"DurationMs", duration.Milliseconds(),
				"URI", r.URL.String(),
				"Method", r.Method,
				"Body", string(bodyBytes),
			}
			if slowThreshold > 0 && duration > slowThreshold {
				logger.Warn("slow API request", ctx...)
				return
			}
			logger.Info("API request", ctx...)
		})
	}
}

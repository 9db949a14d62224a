// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/ballot/log"
	"github.com/vechain/ballot/metrics"
	"github.com/vechain/ballot/test/testsession"
)

func init() {
	metrics.InitializePrometheusMetrics()
}

func initAPIServer(t *testing.T, opts Options) (*testsession.Env, *httptest.Server) {
	env := testsession.New(t, nil, 1, "Alice", "Bob")
	handler, closeFunc := New(env.Manager, opts)
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		closeFunc()
		ts.Close()
	})
	return env, ts
}

func TestMetricsMiddleware(t *testing.T) {
	_, ts := initAPIServer(t, Options{AllowedOrigins: "*", EnableMetrics: true})

	httpDo(t, http.MethodGet, ts.URL+"/session")
	httpDo(t, http.MethodPost, ts.URL+"/candidates/x/vote")
	httpDo(t, http.MethodPost, ts.URL+"/candidates/0/vote")

	body, code := httpDo(t, http.MethodGet, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	require.NoError(t, err)

	counts := make(map[string]float64)
	for _, m := range families["ballot_api_request_count"].GetMetric() {
		labels := make(map[string]string)
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		counts[labels["name"]+" "+labels["method"]+" "+labels["code"]] = m.GetCounter().GetValue()
	}
	assert.Equal(t, float64(1), counts["session_get GET 200"])
	assert.Equal(t, float64(2), counts["candidates_vote POST 400"])
}

func TestWebsocketMetrics(t *testing.T) {
	_, ts := initAPIServer(t, Options{AllowedOrigins: "*", EnableMetrics: true})

	u := url.URL{Scheme: "ws", Host: strings.TrimPrefix(ts.URL, "http://"), Path: "/subscriptions/session"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	// the first frame proves the handler is running
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	body, _ := httpDo(t, http.MethodGet, ts.URL+"/metrics")
	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	require.NoError(t, err)

	m := families["ballot_api_active_websocket_count"].GetMetric()
	require.Len(t, m, 1)
	assert.GreaterOrEqual(t, m[0].GetGauge().GetValue(), float64(1))
}

func TestMetricsDisabled(t *testing.T) {
	_, ts := initAPIServer(t, Options{AllowedOrigins: "*"})

	_, code := httpDo(t, http.MethodGet, ts.URL+"/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCORS(t *testing.T) {
	_, ts := initAPIServer(t, Options{AllowedOrigins: "http://localhost:3000"})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/session/connect", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "http://localhost:3000", res.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/session", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

type record struct {
	level string
	msg   string
	ctx   []any
}

type recordingLogger struct {
	mu      sync.Mutex
	records []record
}

func (l *recordingLogger) add(level, msg string, ctx []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record{level, msg, ctx})
}

func (l *recordingLogger) New(...any) log.Logger                    { return l }
func (l *recordingLogger) Trace(msg string, ctx ...any)             { l.add("trace", msg, ctx) }
func (l *recordingLogger) Debug(msg string, ctx ...any)             { l.add("debug", msg, ctx) }
func (l *recordingLogger) Info(msg string, ctx ...any)              { l.add("info", msg, ctx) }
func (l *recordingLogger) Warn(msg string, ctx ...any)              { l.add("warn", msg, ctx) }
func (l *recordingLogger) Error(msg string, ctx ...any)             { l.add("error", msg, ctx) }
func (l *recordingLogger) Enabled(context.Context, slog.Level) bool { return true }

func TestRequestLogger(t *testing.T) {
	logger := &recordingLogger{}
	handler := RequestLoggerMiddleware(logger, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "test body", string(body), "body must still be readable")
		w.WriteHeader(http.StatusAccepted)
	}))

	request := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString("test body"))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusAccepted, recorder.Code)
	require.Len(t, logger.records, 1)
	rec := logger.records[0]
	assert.Equal(t, "info", rec.level)
	assert.Equal(t, "API request", rec.msg)
	assert.Contains(t, fmt.Sprint(rec.ctx...), "/test")
	assert.Contains(t, fmt.Sprint(rec.ctx...), "test body")
}

func TestRequestLoggerSlowRequest(t *testing.T) {
	logger := &recordingLogger{}
	handler := RequestLoggerMiddleware(logger, time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))

	require.Len(t, logger.records, 1)
	assert.Equal(t, "warn", logger.records[0].level)
	assert.Equal(t, "slow API request", logger.records[0].msg)
}

func TestStartServer(t *testing.T) {
	env := testsession.New(t, nil, 1, "Alice")
	handler, closeSubs := New(env.Manager, Options{AllowedOrigins: "*"})
	defer closeSubs()

	apiURL, closeFunc, err := StartServer("127.0.0.1:0", handler)
	require.NoError(t, err)
	defer closeFunc()

	body, code := httpDo(t, http.MethodPost, apiURL+"/candidates/refresh")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"name":"Alice"`)

	_, _, err = StartServer("127.0.0.1:-1", handler)
	assert.Error(t, err)
}

func httpDo(t *testing.T, method, url string) ([]byte, int) {
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	return r, res.StatusCode
}

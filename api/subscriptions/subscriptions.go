// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vechain/ballot/api/restutil"
	"github.com/vechain/ballot/log"
	"github.com/vechain/ballot/session"
)

var logger = log.WithContext("pkg", "subscriptions")

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 7) / 10
)

// Message types pushed to subscribers.
const (
	TypeSnapshot = "snapshot"
	TypeNotice   = "notice"
)

// Message is one frame pushed on the session subscription.
type Message struct {
	Type     string            `json:"type"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Notice   *session.Notice   `json:"notice,omitempty"`
}

type Subscriptions struct {
	mgr      *session.Manager
	upgrader *websocket.Upgrader
	done     chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(mgr *session.Manager, allowedOrigins []string) *Subscriptions {
	return &Subscriptions{
		mgr: mgr,
		upgrader: &websocket.Upgrader{
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || strings.EqualFold(allowed, origin) {
						return true
					}
				}
				return false
			},
		},
		done: make(chan struct{}),
	}
}

func (s *Subscriptions) handleSessionSubscription(w http.ResponseWriter, req *http.Request) error {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	// since the conn is hijacked here, no error should be returned in lines below
	if err != nil {
		logger.Debug("upgrade to websocket", "err", err)
		return nil
	}
	defer conn.Close()
	if !s.track() {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		return nil
	}
	defer s.wg.Done()

	if err := s.pipe(conn); err != nil {
		logger.Debug("session subscription closed", "err", err)
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()), time.Now().Add(writeWait))
	}
	return nil
}

func (s *Subscriptions) pipe(conn *websocket.Conn) error {
	snapshots := make(chan session.Snapshot, 16)
	notices := make(chan session.Notice, 16)
	snapSub := s.mgr.SubscribeSnapshots(snapshots)
	defer snapSub.Unsubscribe()
	noticeSub := s.mgr.SubscribeNotices(notices)
	defer noticeSub.Unsubscribe()

	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// the client sends nothing but control frames, read only to detect close
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logger.Trace("websocket read", "err", err)
				return
			}
		}
	}()

	current := s.mgr.Snapshot()
	if err := s.write(conn, &Message{Type: TypeSnapshot, Snapshot: &current}); err != nil {
		return err
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap := <-snapshots:
			if err := s.write(conn, &Message{Type: TypeSnapshot, Snapshot: &snap}); err != nil {
				return err
			}
		case n := <-notices:
			if err := s.write(conn, &Message{Type: TypeNotice, Notice: &n}); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-snapSub.Err():
			return nil
		case <-closed:
			return nil
		case <-s.done:
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
			return nil
		}
	}
}

func (s *Subscriptions) write(conn *websocket.Conn, msg *Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// track registers a new subscription. It fails once Close was called.
func (s *Subscriptions) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// Close ends every open subscription and waits for them to return.
func (s *Subscriptions) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/session").
		Methods(http.MethodGet).
		Name("subscriptions_session").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleSessionSubscription))
}

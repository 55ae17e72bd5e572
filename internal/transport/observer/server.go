// Package observer lets an operator on the local machine watch any session's
// board live. Commands are never accepted here.
package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"territory.ai/internal/observerproto"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/sessions"
)

type Server struct {
	sessions *sessions.Manager
	cat      *catalogs.MapCatalog
	log      *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(m *sessions.Manager, cat *catalogs.MapCatalog, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		sessions: m,
		cat:      cat,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			MapDigest:       s.cat.Digest,
			Nodes:           len(s.cat.Bases),
			Sessions:        []observerproto.SessionInfo{},
		}
		for _, id := range s.sessions.IDs() {
			in, ok := s.sessions.Get(id)
			if !ok {
				continue
			}
			resp.Sessions = append(resp.Sessions, observerproto.SessionInfo{
				SessionID:   id,
				Seq:         in.Seq(),
				Teams:       len(in.ListTeams()),
				LastTouched: in.LastTouched().UTC().Format(time.RFC3339),
			})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		in, ok := s.subscribeTarget(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE for a live session"), time.Now().Add(time.Second))
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		switchTo := make(chan *game.Instance, 1)
		writeErr := make(chan error, 1)
		go func() {
			writeErr <- s.stream(ctx, conn, in, switchTo)
		}()

		// Reader loop: allow switching sessions.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			next, ok := s.subscribeTarget(msg)
			if !ok {
				continue
			}
			select {
			case switchTo <- next:
			default:
				// Drop switches under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// stream writes the watched session's MAP on subscribe and after every change.
func (s *Server) stream(ctx context.Context, conn *websocket.Conn, in *game.Instance, switchTo <-chan *game.Instance) error {
	updates, unsubscribe := in.Subscribe()
	defer func() { unsubscribe() }()

	if err := writeMap(conn, in); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next := <-switchTo:
			unsubscribe()
			in = next
			updates, unsubscribe = in.Subscribe()
			if err := writeMap(conn, in); err != nil {
				return err
			}
		case _, ok := <-updates:
			if !ok {
				// Session was swept; nothing more to show.
				return nil
			}
			if err := writeMap(conn, in); err != nil {
				return err
			}
		}
	}
}

func (s *Server) subscribeTarget(msg []byte) (*game.Instance, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return nil, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return nil, false
	}
	return s.sessions.Get(strings.TrimSpace(sub.SessionID))
}

func writeMap(conn *websocket.Conn, in *game.Instance) error {
	b, err := json.Marshal(in.View().MapMsg())
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

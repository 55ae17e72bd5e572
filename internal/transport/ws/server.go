package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"territory.ai/internal/protocol"
	"territory.ai/internal/sim/game"
)

// Resolver finds (or creates) the caller's instance. It may set cookies on
// rw; they are copied into the upgrade response.
type Resolver func(rw http.ResponseWriter, r *http.Request) (*game.Instance, bool)

type Options struct {
	CommandsPerSec float64
	Burst          int
}

type Server struct {
	resolve Resolver
	opts    Options
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(resolve Resolver, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		resolve: resolve,
		opts:    opts,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		in, ok := s.resolve(rw, r)
		if !ok {
			return
		}
		var hdr http.Header
		if sc := rw.Header().Values("Set-Cookie"); len(sc) > 0 {
			hdr = http.Header{"Set-Cookie": sc}
		}
		conn, err := s.upgrader.Upgrade(rw, r, hdr)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 8)
		updates, unsubscribe := in.Subscribe()
		defer unsubscribe()

		// Writer goroutine.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					if err := write(conn, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Map pusher: one MAP now, then one per accepted command. Bursts
		// collapse to the latest state.
		go func() {
			if !s.sendMap(ctx, out, in) {
				return
			}
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-updates:
					if !ok {
						cancel()
						return
					}
					if !s.sendMap(ctx, out, in) {
						return
					}
				}
			}
		}()

		var lim *rate.Limiter
		if s.opts.CommandsPerSec > 0 {
			burst := s.opts.Burst
			if burst <= 0 {
				burst = 1
			}
			lim = rate.NewLimiter(rate.Limit(s.opts.CommandsPerSec), burst)
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			ack, ok := s.handle(in, lim, msg)
			if !ok {
				continue
			}
			b, err := json.Marshal(ack)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) sendMap(ctx context.Context, out chan<- []byte, in *game.Instance) bool {
	b, err := json.Marshal(in.View().MapMsg())
	if err != nil {
		s.log.Printf("ws: marshal map: %v", err)
		return false
	}
	select {
	case out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

// handle runs one client message. Messages that are not COMMANDs are ignored.
func (s *Server) handle(in *game.Instance, lim *rate.Limiter, msg []byte) (protocol.AckMsg, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeCommand {
		return protocol.AckMsg{}, false
	}
	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version}

	var cmd protocol.CommandMsg
	if err := json.Unmarshal(msg, &cmd); err != nil {
		var bad *protocol.BadNumberError
		if errors.As(err, &bad) {
			return reject(ack, protocol.ErrValidation, err.Error()), true
		}
		return reject(ack, protocol.ErrProtoBadRequest, err.Error()), true
	}
	ack.AckFor = cmd.ID
	if cmd.ProtocolVersion != protocol.Version {
		return reject(ack, protocol.ErrProtoBadRequest, fmt.Sprintf("bad protocol_version %q", cmd.ProtocolVersion)), true
	}
	if lim != nil && !lim.Allow() {
		return reject(ack, protocol.ErrRateLimit, "too many commands"), true
	}

	var entry game.CommandEntry
	switch cmd.Op {
	case protocol.OpAssignTeam:
		entry = game.CommandEntry{Kind: game.CmdAssignTeam, NodeID: cmd.NodeID, Team: cmd.Team}
	case protocol.OpRegisterTeam:
		if cmd.Group == nil {
			return reject(ack, protocol.ErrBadRequest, "missing group"), true
		}
		g := cmd.Group
		entry = game.CommandEntry{Kind: game.CmdRegisterTeam, NodeID: g.Territory, Team: g.GroupName, Raw: string(g.ActiveTotal), Battle: protocol.Floats(g.BattleValues)}
	case protocol.OpReset:
		entry = game.CommandEntry{Kind: game.CmdReset}
	default:
		return reject(ack, protocol.ErrBadRequest, fmt.Sprintf("unknown op %q", cmd.Op)), true
	}
	seq, err := in.Apply(entry)
	if err != nil {
		return reject(ack, game.ErrorCode(err), err.Error()), true
	}
	ack.Accepted = true
	ack.Version = seq
	return ack, true
}

func reject(ack protocol.AckMsg, code, msg string) protocol.AckMsg {
	ack.Accepted = false
	ack.Code = code
	ack.Message = msg
	return ack
}

func write(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

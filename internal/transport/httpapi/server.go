// Package httpapi serves the browser JSON API. Each browser gets its own
// simulation instance, keyed by the session cookie.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"territory.ai/internal/protocol"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/sessions"
)

const (
	CookieName   = "tsim_session"
	maxBodyBytes = 64 * 1024
)

type Options struct {
	// CommandsPerSec and Burst bound POSTs per client IP; zero disables.
	CommandsPerSec float64
	Burst          int
	SecureCookie   bool
}

type Server struct {
	sessions *sessions.Manager
	log      *log.Logger
	opts     Options

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewServer(m *sessions.Manager, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		sessions: m,
		log:      logger,
		opts:     opts,
		limiters: map[string]*limiterEntry{},
	}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/map", s.handleMap)
	mux.HandleFunc("/api/scores", s.handleScores)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/assign_team", s.handleAssignTeam)
	mux.HandleFunc("/api/adventure_groups", s.handleAdventureGroups)
}

// Session resolves the caller's instance, creating one (and setting the
// cookie) on first access.
func (s *Server) Session(rw http.ResponseWriter, r *http.Request) (*game.Instance, bool) {
	id := ""
	if c, err := r.Cookie(CookieName); err == nil {
		id = strings.TrimSpace(c.Value)
	}
	in, err := s.sessions.Open(id)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionLimit) {
			s.writeError(rw, http.StatusServiceUnavailable, protocol.ErrSessionLimit, "too many active sessions")
			return nil, false
		}
		s.writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return nil, false
	}
	if in.ID() != id {
		http.SetCookie(rw, &http.Cookie{
			Name:     CookieName,
			Value:    in.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   s.opts.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return in, true
}

func (s *Server) handleMap(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	in, ok := s.Session(rw, r)
	if !ok {
		return
	}
	s.writeJSON(rw, http.StatusOK, in.View().MapMsg().Nodes)
}

func (s *Server) handleScores(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	in, ok := s.Session(rw, r)
	if !ok {
		return
	}
	s.writeJSON(rw, http.StatusOK, in.View().Scores)
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	in, ok := s.Session(rw, r)
	if !ok {
		return
	}
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(rw, in.View().StatusTable())
}

func (s *Server) handleReset(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(r) {
		s.writeError(rw, http.StatusTooManyRequests, protocol.ErrRateLimit, "too many requests")
		return
	}
	in, ok := s.Session(rw, r)
	if !ok {
		return
	}
	in.Reset()
	s.writeJSON(rw, http.StatusOK, protocol.MessageResp{Message: "Game reset"})
}

func (s *Server) handleAssignTeam(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.allow(r) {
		s.writeError(rw, http.StatusTooManyRequests, protocol.ErrRateLimit, "too many requests")
		return
	}
	in, ok := s.Session(rw, r)
	if !ok {
		return
	}
	var req protocol.AssignTeamReq
	if err := decodeBody(rw, r, &req); err != nil {
		s.writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	if err := in.AssignTeam(req.NodeID, req.Team); err != nil {
		s.writeGameError(rw, err)
		return
	}
	s.writeJSON(rw, http.StatusOK, protocol.MessageResp{Message: "Team assigned"})
}

func (s *Server) handleAdventureGroups(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		in, ok := s.Session(rw, r)
		if !ok {
			return
		}
		s.writeJSON(rw, http.StatusOK, in.View().AdventureGroups())
	case http.MethodPost:
		if !s.allow(r) {
			s.writeError(rw, http.StatusTooManyRequests, protocol.ErrRateLimit, "too many requests")
			return
		}
		in, ok := s.Session(rw, r)
		if !ok {
			return
		}
		var req protocol.AdventureGroupReq
		if err := decodeBody(rw, r, &req); err != nil {
			code := protocol.ErrBadRequest
			var bad *protocol.BadNumberError
			if errors.As(err, &bad) {
				code = protocol.ErrValidation
			}
			s.writeError(rw, http.StatusBadRequest, code, err.Error())
			return
		}
		if err := in.RegisterOrUpdateTeam(req.GroupName, string(req.ActiveTotal), protocol.Floats(req.BattleValues), req.Territory); err != nil {
			s.writeGameError(rw, err)
			return
		}
		s.writeJSON(rw, http.StatusOK, protocol.MessageResp{Message: "Adventure group saved"})
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// allow applies the per-IP token bucket.
func (s *Server) allow(r *http.Request) bool {
	if s.opts.CommandsPerSec <= 0 {
		return true
	}
	ip := remoteIP(r.RemoteAddr)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.limiters[ip]
	if !ok {
		burst := s.opts.Burst
		if burst <= 0 {
			burst = 1
		}
		e = &limiterEntry{lim: rate.NewLimiter(rate.Limit(s.opts.CommandsPerSec), burst)}
		s.limiters[ip] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// PruneLimiters forgets clients not seen since before cutoff.
func (s *Server) PruneLimiters(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for ip, e := range s.limiters {
		if e.seen.Before(cutoff) {
			delete(s.limiters, ip)
			n++
		}
	}
	return n
}

func decodeBody(rw http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}

func (s *Server) writeGameError(rw http.ResponseWriter, err error) {
	code := game.ErrorCode(err)
	status := http.StatusBadRequest
	if code == protocol.ErrInternal {
		status = http.StatusInternalServerError
	}
	s.writeError(rw, status, code, err.Error())
}

func (s *Server) writeError(rw http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(rw, status, protocol.ErrorResp{Error: msg, Code: code})
}

// writeJSON encodes before writing the header so a value that cannot be
// encoded becomes a 500 instead of an empty 200.
func (s *Server) writeJSON(rw http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("encode response: %v", err)
		b, status = []byte(`{"error":"internal error","code":"`+protocol.ErrInternal+`"}`), http.StatusInternalServerError
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if _, err := rw.Write(append(b, '\n')); err != nil {
		s.log.Printf("write response: %v", err)
	}
}

func remoteIP(remoteAddr string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

package main

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"territory.ai/internal/persistence/indexdb"
	"territory.ai/internal/protocol"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/sessions"
)

// adminAPI serves the local-only operator endpoints.
type adminAPI struct {
	sessions *sessions.Manager
	cat      *catalogs.MapCatalog
	idx      indexdb.Index
	counts   *commandCounter
}

type sessionState struct {
	SessionID   string `json:"session_id"`
	Seq         uint64 `json:"seq"`
	Teams       int    `json:"teams"`
	LastTouched string `json:"last_touched"`
}

type stateResp struct {
	MapDigest string              `json:"map_digest"`
	Sessions  []sessionState      `json:"sessions"`
	Commands  map[string]kindStat `json:"commands"`
	Index     *indexdb.Stats      `json:"index,omitempty"`

	// Set when a single session was requested.
	Map    *protocol.MapMsg `json:"map,omitempty"`
	Status string           `json:"status,omitempty"`
}

func (a *adminAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/state", a.localOnly(a.handleState))
	mux.HandleFunc("/admin/v1/snapshot", a.localOnly(a.handleSnapshot))
	mux.HandleFunc("/admin/v1/reset", a.localOnly(a.handleReset))
}

func (a *adminAPI) localOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (a *adminAPI) handleState(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := stateResp{
		MapDigest: a.cat.Digest,
		Sessions:  []sessionState{},
		Commands:  a.counts.Snapshot(),
	}
	if a.idx != nil {
		st := a.idx.Stats()
		resp.Index = &st
	}
	for _, id := range a.sessions.IDs() {
		in, ok := a.sessions.Get(id)
		if !ok {
			continue
		}
		resp.Sessions = append(resp.Sessions, sessionState{
			SessionID:   id,
			Seq:         in.Seq(),
			Teams:       len(in.ListTeams()),
			LastTouched: in.LastTouched().UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	if id := strings.TrimSpace(r.URL.Query().Get("session")); id != "" {
		in, ok := a.sessions.Get(id)
		if !ok {
			writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
			return
		}
		v := in.View()
		msg := v.MapMsg()
		resp.Map = &msg
		resp.Status = v.StatusTable()
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *adminAPI) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ids := a.targetSessions(r)
	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		path, err := a.sessions.Snapshot(id)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "session": id, "error": err.Error()})
			return
		}
		paths = append(paths, path)
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "paths": paths})
}

func (a *adminAPI) handleReset(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("session"))
	in, ok := a.sessions.Get(id)
	if !ok {
		writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
		return
	}
	in.Reset()
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "session": id, "seq": in.Seq()})
}

// targetSessions is the ?session= id, or every live session when absent.
func (a *adminAPI) targetSessions(r *http.Request) []string {
	if id := strings.TrimSpace(r.URL.Query().Get("session")); id != "" {
		return []string{id}
	}
	return a.sessions.IDs()
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
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

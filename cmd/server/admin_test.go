package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	persistlog "territory.ai/internal/persistence/log"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/sessions"
)

func newTestAdmin(t *testing.T, snapshotDir string) (*adminAPI, *http.ServeMux) {
	t.Helper()
	cat, err := catalogs.LoadMap("../../configs/map.json")
	if err != nil {
		t.Fatalf("load map: %v", err)
	}
	counts := newCommandCounter()
	mgr := sessions.NewManager(sessions.Options{
		Catalog:     cat,
		Game:        game.DefaultConfig(),
		Recorder:    persistlog.Tee{counts},
		SnapshotDir: snapshotDir,
	})
	t.Cleanup(mgr.Close)
	a := &adminAPI{sessions: mgr, cat: cat, counts: counts}
	mux := http.NewServeMux()
	a.register(mux)
	mux.HandleFunc("/metrics", metricsHandler(mgr, counts, nil, nil))
	return a, mux
}

func do(mux *http.ServeMux, method, target, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdmin_StateForSession(t *testing.T) {
	a, mux := newTestAdmin(t, "")
	in, _ := a.sessions.Open("")
	_ = in.AssignTeam("陣地1", "red")
	_ = in.AssignTeam("nope", "red")

	rec := do(mux, http.MethodGet, "/admin/v1/state?session="+in.ID(), "127.0.0.1:4000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp stateResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sessions) != 1 || resp.Sessions[0].Seq != 1 || resp.Map == nil || resp.Map.Nodes["陣地1"].Team != "red" {
		t.Fatalf("unexpected state: %+v", resp)
	}
	if st := resp.Commands[game.CmdAssignTeam]; st.Accepted != 1 || st.Rejected != 1 {
		t.Fatalf("unexpected command counts: %+v", resp.Commands)
	}
	if !strings.Contains(resp.Status, "[チーム別合計得点]") {
		t.Fatalf("missing status table")
	}

	if rec := do(mux, http.MethodGet, "/admin/v1/state?session=missing", "127.0.0.1:4000"); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rec.Code)
	}
}

func TestAdmin_LoopbackOnly(t *testing.T) {
	_, mux := newTestAdmin(t, "")
	for _, path := range []string{"/admin/v1/state", "/admin/v1/snapshot", "/admin/v1/reset"} {
		if rec := do(mux, http.MethodGet, path, "198.51.100.7:4000"); rec.Code != http.StatusForbidden {
			t.Fatalf("%s: status=%d want 403", path, rec.Code)
		}
	}
}

func TestAdmin_SnapshotAndReset(t *testing.T) {
	a, mux := newTestAdmin(t, t.TempDir())
	in, _ := a.sessions.Open("")
	_ = in.AssignTeam("コン1", "red")

	rec := do(mux, http.MethodPost, "/admin/v1/snapshot", "127.0.0.1:4000")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), ".snap.zst") {
		t.Fatalf("snapshot: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(mux, http.MethodPost, "/admin/v1/reset?session="+in.ID(), "127.0.0.1:4000")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(in.ListTeams()) != 0 {
		t.Fatalf("reset did not clear registry")
	}
	if rec := do(mux, http.MethodPost, "/admin/v1/reset?session=missing", "127.0.0.1:4000"); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rec.Code)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	a, mux := newTestAdmin(t, "")
	in, _ := a.sessions.Open("")
	_ = in.AssignTeam("コン1", "red")

	rec := do(mux, http.MethodGet, "/metrics", "127.0.0.1:4000")
	body := rec.Body.String()
	for _, want := range []string{
		"tsim_sessions 1",
		`tsim_commands_total{kind="ASSIGN_TEAM",outcome="accepted"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

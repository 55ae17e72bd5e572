package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"territory.ai/internal/protocol"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/sessions"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *sessions.Manager) {
	t.Helper()
	cat, err := catalogs.LoadMap("../../../configs/map.json")
	if err != nil {
		t.Fatalf("load map: %v", err)
	}
	m := sessions.NewManager(sessions.Options{Catalog: cat, Game: game.DefaultConfig()})
	t.Cleanup(m.Close)

	mux := http.NewServeMux()
	NewServer(m, opts, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, m
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func postJSON(t *testing.T, c *http.Client, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	resp, err := c.Post(url, "application/json", r)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func getJSON(t *testing.T, c *http.Client, url string, v any) *http.Response {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestAssignTeam_UpdatesMapAndScores(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := newClient(t)

	resp, body := postJSON(t, c, srv.URL+"/api/assign_team", protocol.AssignTeamReq{NodeID: "陣地1", Team: "red"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	_, _ = postJSON(t, c, srv.URL+"/api/assign_team", protocol.AssignTeamReq{NodeID: "中心1", Team: "red"})

	var nodes map[string]protocol.NodeView
	getJSON(t, c, srv.URL+"/api/map", &nodes)
	if n := nodes["陣地1"]; n.Team != "red" || n.OwnerTeam != "red" || n.DisplayScore != 100 {
		t.Fatalf("unexpected 陣地1: %+v", n)
	}
	if n := nodes["コン1"]; n.Team != "" || n.DisplayScore != 0 || n.Threat != "" {
		t.Fatalf("unexpected コン1: %+v", n)
	}

	var scores map[string]int
	getJSON(t, c, srv.URL+"/api/scores", &scores)
	if scores["red"] != 100 {
		t.Fatalf("scores=%v", scores)
	}
}

func TestAssignTeam_Errors(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := newClient(t)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown node", `{"node_id":"nope","team":"red"}`, http.StatusBadRequest, protocol.ErrInvalidNode},
		{"empty team", `{"node_id":"陣地1","team":""}`, http.StatusBadRequest, protocol.ErrValidation},
		{"bad json", `{"node_id":`, http.StatusBadRequest, protocol.ErrBadRequest},
		{"empty body", ``, http.StatusBadRequest, protocol.ErrBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := c.Post(srv.URL+"/api/assign_team", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			var e protocol.ErrorResp
			_ = json.NewDecoder(resp.Body).Decode(&e)
			if resp.StatusCode != tc.status || e.Code != tc.code || e.Error == "" {
				t.Fatalf("status=%d code=%q err=%q", resp.StatusCode, e.Code, e.Error)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := newClient(t)
	resp, err := c.Get(srv.URL + "/api/reset")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestAdventureGroups_RegisterAndList(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := newClient(t)

	body := `{"group_name":"blue","active_total":"1,200万","battle_values":[1,"2.5",3],"territory":"陣地2"}`
	resp, err := c.Post(srv.URL+"/api/adventure_groups", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var groups []protocol.AdventureGroup
	getJSON(t, c, srv.URL+"/api/adventure_groups", &groups)
	if len(groups) != 1 {
		t.Fatalf("groups=%+v", groups)
	}
	g := groups[0]
	if g.GroupName != "blue" || g.RawActiveValue != "1,200万" || g.Territory != "陣地2" || len(g.BattleValues) != 3 || g.BattleValues[1] != 2.5 {
		t.Fatalf("unexpected group: %+v", g)
	}
	if g.ActiveTotal != 12_000_000 {
		t.Fatalf("active_total=%v", g.ActiveTotal)
	}

	var nodes map[string]protocol.NodeView
	getJSON(t, c, srv.URL+"/api/map", &nodes)
	if n := nodes["陣地2"]; n.Team != "blue" || n.DisplayActive != "1,200万" {
		t.Fatalf("territory not bound: %+v", n)
	}

	tooMany := `{"group_name":"x","active_total":"1","battle_values":[1,2,3,4,5,6]}`
	resp, err = c.Post(srv.URL+"/api/adventure_groups", "application/json", strings.NewReader(tooMany))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 for six battle values", resp.StatusCode)
	}
}

func TestAdventureGroups_BadBattleValueIsValidation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := newClient(t)

	body := `{"group_name":"blue","active_total":"1","battle_values":["abc"]}`
	resp, err := c.Post(srv.URL+"/api/adventure_groups", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var e protocol.ErrorResp
	_ = json.NewDecoder(resp.Body).Decode(&e)
	if resp.StatusCode != http.StatusBadRequest || e.Code != protocol.ErrValidation {
		t.Fatalf("status=%d code=%q err=%q", resp.StatusCode, e.Code, e.Error)
	}
}

func TestAdventureGroups_OverflowingActivityStaysListable(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := newClient(t)

	resp, out := postJSON(t, c, srv.URL+"/api/adventure_groups", map[string]any{"group_name": "huge", "active_total": "1e305億万"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, out)
	}
	var groups []protocol.AdventureGroup
	if r := getJSON(t, c, srv.URL+"/api/adventure_groups", &groups); r.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", r.StatusCode)
	}
	if len(groups) != 1 || groups[0].ActiveTotal != 0 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestWriteJSON_EncodeFailureIs500(t *testing.T) {
	s := NewServer(nil, Options{}, log.New(io.Discard, "", 0))
	rec := httptest.NewRecorder()
	s.writeJSON(rec, http.StatusOK, map[string]float64{"x": math.Inf(1)})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	var e protocol.ErrorResp
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Code != protocol.ErrInternal {
		t.Fatalf("body=%q err=%v", rec.Body.String(), err)
	}
}

func TestReset_ClearsSession(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := newClient(t)
	_, _ = postJSON(t, c, srv.URL+"/api/assign_team", protocol.AssignTeamReq{NodeID: "コン1", Team: "red"})
	resp, body := postJSON(t, c, srv.URL+"/api/reset", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var scores map[string]int
	getJSON(t, c, srv.URL+"/api/scores", &scores)
	if len(scores) != 0 {
		t.Fatalf("scores after reset: %v", scores)
	}
}

func TestSessions_CookieIsolation(t *testing.T) {
	srv, m := newTestServer(t, Options{})
	alice := newClient(t)
	bob := newClient(t)

	_, _ = postJSON(t, alice, srv.URL+"/api/assign_team", protocol.AssignTeamReq{NodeID: "コン1", Team: "red"})

	var aliceScores, bobScores map[string]int
	getJSON(t, alice, srv.URL+"/api/scores", &aliceScores)
	getJSON(t, bob, srv.URL+"/api/scores", &bobScores)
	if aliceScores["red"] != 10 || len(bobScores) != 0 {
		t.Fatalf("alice=%v bob=%v", aliceScores, bobScores)
	}
	if m.Len() != 2 {
		t.Fatalf("sessions=%d want 2", m.Len())
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{CommandsPerSec: 0.001, Burst: 2})
	c := newClient(t)
	req := protocol.AssignTeamReq{NodeID: "コン1", Team: "red"}
	for i := 0; i < 2; i++ {
		if resp, body := postJSON(t, c, srv.URL+"/api/assign_team", req); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status=%d body=%s", i, resp.StatusCode, body)
		}
	}
	resp, body := postJSON(t, c, srv.URL+"/api/assign_team", req)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var e protocol.ErrorResp
	_ = json.Unmarshal(body, &e)
	if e.Code != protocol.ErrRateLimit {
		t.Fatalf("code=%q", e.Code)
	}
	// Reads are not limited.
	if r := getJSON(t, c, srv.URL+"/api/scores", nil); r.StatusCode != http.StatusOK {
		t.Fatalf("GET limited: %d", r.StatusCode)
	}
}

func TestStatusTable(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	c := newClient(t)
	_, _ = postJSON(t, c, srv.URL+"/api/assign_team", protocol.AssignTeamReq{NodeID: "コン1", Team: "red"})
	resp, err := c.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "[チーム別合計得点]") || !strings.Contains(string(b), "red") {
		t.Fatalf("unexpected status table:\n%s", b)
	}
}

func TestPruneLimiters(t *testing.T) {
	s := NewServer(nil, Options{CommandsPerSec: 1, Burst: 1}, nil)
	r := httptest.NewRequest(http.MethodPost, "/api/reset", nil)
	if !s.allow(r) {
		t.Fatalf("first request should pass")
	}
	if n := s.PruneLimiters(time.Now().Add(time.Minute)); n != 1 {
		t.Fatalf("pruned %d want 1", n)
	}
}

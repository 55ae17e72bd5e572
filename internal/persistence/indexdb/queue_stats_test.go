package indexdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/game"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqCommand, command: game.CommandEntry{Seq: 1}}

	_ = s.RecordCommand(game.CommandEntry{Seq: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropCommandTotal != 1 {
		t.Fatalf("DropCommandTotal=%d want=1", st.DropCommandTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestD1Index_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	var applied []d1Event

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("x-tsim-index-token") != "secret" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}

		var body struct {
			Events []d1Event `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		applied = append(applied, body.Events...)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	idx, err := OpenD1(D1Config{
		Endpoint:      srv.URL,
		Token:         "secret",
		ServerID:      "server_1",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenD1: %v", err)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.RecordCommand(game.CommandEntry{SessionID: "s1", Seq: 1, Kind: game.CmdAssignTeam, NodeID: "陣地1", Team: "red"}); err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(applied) >= 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	got := append([]d1Event(nil), applied...)
	finalReqCount := reqCount
	mu.Unlock()

	if len(got) < 1 {
		t.Fatalf("expected retained batch to be eventually delivered; reqCount=%d", finalReqCount)
	}
	if got[0].Kind != "command" || got[0].ServerID != "server_1" {
		t.Fatalf("unexpected event: %+v", got[0])
	}

	st := idx.Stats()
	if st.FlushFailTotal == 0 {
		t.Fatalf("expected flush failures to be recorded, got 0")
	}
	if st.DropCommandTotal != 0 {
		t.Fatalf("unexpected queue drops: %d", st.DropCommandTotal)
	}
}

func TestOpenD1_RequiresEndpointAndServer(t *testing.T) {
	if _, err := OpenD1(D1Config{ServerID: "x"}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := OpenD1(D1Config{Endpoint: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected error for empty server id")
	}
}

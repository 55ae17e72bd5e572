package log

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"territory.ai/internal/sim/game"
)

func TestCommandLogger_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	l := NewCommandLogger(dir)
	entries := []game.CommandEntry{
		{SessionID: "s1", Seq: 1, Kind: game.CmdAssignTeam, NodeID: "陣地1", Team: "red"},
		{SessionID: "s1", Seq: 1, Kind: game.CmdAssignTeam, NodeID: "nope", Team: "red", Code: "E_INVALID_NODE", Error: "invalid node"},
		{SessionID: "s1", Seq: 2, Kind: game.CmdRegisterTeam, Team: "red", Raw: "1億", Battle: []float64{1, 2}},
	}
	for _, e := range entries {
		if err := l.RecordCommand(e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := CommandFiles(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var got []game.CommandEntry
	if err := ReadCommands(files[0], func(e game.CommandEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[1].Code != "E_INVALID_NODE" || got[2].Raw != "1億" || len(got[2].Battle) != 2 {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "commands")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }
	var closed []string
	w.SetOnClose(func(path string) { closed = append(closed, filepath.Base(path)) })

	_ = w.Write(map[string]int{"a": 1})
	clock = clock.Add(2 * time.Minute)
	_ = w.Write(map[string]int{"a": 2})
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, name := range []string{"commands-2026-03-01-10.jsonl.zst", "commands-2026-03-01-11.jsonl.zst"} {
		matches, _ := filepath.Glob(filepath.Join(dir, name))
		if len(matches) != 1 {
			t.Fatalf("missing %s", name)
		}
	}
	if len(closed) != 2 || closed[0] != "commands-2026-03-01-10.jsonl.zst" || closed[1] != "commands-2026-03-01-11.jsonl.zst" {
		t.Fatalf("onClose saw %v", closed)
	}
}

type failingRecorder struct{ n int }

func (f *failingRecorder) RecordCommand(game.CommandEntry) error {
	f.n++
	return errors.New("boom")
}

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordCommand(game.CommandEntry) error {
	c.n++
	return nil
}

func TestTee_FansOut(t *testing.T) {
	a := &failingRecorder{}
	b := &countingRecorder{}
	tee := Tee{a, nil, b}
	if err := tee.RecordCommand(game.CommandEntry{}); err == nil {
		t.Fatalf("expected first error to surface")
	}
	if a.n != 1 || b.n != 1 {
		t.Fatalf("every recorder should see the entry: a=%d b=%d", a.n, b.n)
	}
}

func TestCommandFiles_MissingDir(t *testing.T) {
	files, err := CommandFiles(filepath.Join(t.TempDir(), "nothing"))
	if err != nil || len(files) != 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}
}

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
)

func newShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	cat, err := catalogs.LoadMap("../../configs/map.json")
	if err != nil {
		t.Fatalf("load map: %v", err)
	}
	var out bytes.Buffer
	return &shell{in: game.New("sim", cat, game.DefaultConfig()), out: &out, snapDir: t.TempDir()}, &out
}

func TestShell_AssignAndStatus(t *testing.T) {
	sh, out := newShell(t)
	sh.run(strings.NewReader("assign 陣地1 red\nassign nope red\nteam red 1億 3,4\nquit\nassign コン1 red\n"))

	got := out.String()
	if !strings.Contains(got, "[チーム別合計得点]") {
		t.Fatalf("status table missing:\n%s", got)
	}
	if !strings.Contains(got, "error [") {
		t.Fatalf("expected an error line for the unknown node:\n%s", got)
	}
	if sh.in.Seq() != 2 {
		t.Fatalf("seq=%d want 2 (quit must stop the shell)", sh.in.Seq())
	}
	teams := sh.in.ListTeams()
	if len(teams) != 1 || teams[0].ActivityTotal != 1e8 || len(teams[0].BattleValues) != 2 {
		t.Fatalf("unexpected registry %+v", teams)
	}
}

func TestShell_SaveAndReset(t *testing.T) {
	sh, out := newShell(t)
	path := filepath.Join(t.TempDir(), "s.snap.zst")
	sh.exec("assign 陣地1 red")
	sh.exec("save " + path)
	sh.exec("reset")
	if !strings.Contains(out.String(), "saved "+path) {
		t.Fatalf("save not reported:\n%s", out.String())
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Nodes["陣地1"].Team != "red" {
		t.Fatalf("snapshot lost the claim")
	}
	if len(sh.in.ListTeams()) != 0 {
		t.Fatalf("reset kept teams")
	}
	if !sh.exec("bogus") || !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("unknown commands should be reported and keep the shell running")
	}
}

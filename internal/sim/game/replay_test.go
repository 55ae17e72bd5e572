package game

import (
	"errors"
	"reflect"
	"testing"
)

func TestReplay_RebuildsState(t *testing.T) {
	rec := &memRecorder{}
	live := newInstance(t)
	live.SetRecorder(rec)

	_ = live.AssignTeam("陣地1", "red")
	_ = live.AssignTeam("nope", "red")
	_ = live.RegisterOrUpdateTeam("blue", "2億", []float64{3, 4}, "陣地2")
	_ = live.AssignTeam("コン1", "blue")
	live.Reset()
	_ = live.AssignTeam("中心1", "green")

	replayed := newInstance(t)
	for _, e := range rec.entries {
		if _, err := replayed.Replay(e); err != nil {
			t.Fatalf("replay %+v: %v", e, err)
		}
	}
	if replayed.Seq() != live.Seq() {
		t.Fatalf("seq=%d want %d", replayed.Seq(), live.Seq())
	}
	if !reflect.DeepEqual(replayed.View().Nodes, live.View().Nodes) {
		t.Fatalf("replayed board differs")
	}
	if !reflect.DeepEqual(replayed.ListTeams(), live.ListTeams()) {
		t.Fatalf("replayed registry differs")
	}
}

func TestReplay_SkipsRejectedAndDetectsGaps(t *testing.T) {
	in := newInstance(t)
	applied, err := in.Replay(CommandEntry{Seq: 0, Kind: CmdAssignTeam, NodeID: "nope", Code: "E_INVALID_NODE"})
	if applied || err != nil {
		t.Fatalf("rejected entry should be skipped: applied=%v err=%v", applied, err)
	}
	if _, err := in.Replay(CommandEntry{Seq: 5, Kind: CmdReset}); err == nil {
		t.Fatalf("expected seq gap error")
	}
	if _, err := in.Replay(CommandEntry{Seq: 1, Kind: CmdImport}); !errors.Is(err, ErrNotReplayable) {
		t.Fatalf("expected ErrNotReplayable, got %v", err)
	}
}

func TestReplay_ContinuesFromSnapshot(t *testing.T) {
	rec := &memRecorder{}
	live := newInstance(t)
	live.SetRecorder(rec)

	_ = live.AssignTeam("陣地1", "red")
	snap := live.ExportSnapshot()
	_ = live.AssignTeam("コン1", "red")
	_ = live.RegisterOrUpdateTeam("blue", "500", nil, "陣地2")

	out := newInstance(t)
	if err := out.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if out.Seq() != snap.Header.Seq {
		t.Fatalf("seq after import=%d want %d", out.Seq(), snap.Header.Seq)
	}
	for _, e := range rec.entries {
		if e.Seq <= out.Seq() {
			continue
		}
		if _, err := out.Replay(e); err != nil {
			t.Fatalf("replay %+v: %v", e, err)
		}
	}
	if !reflect.DeepEqual(out.View().Nodes, live.View().Nodes) {
		t.Fatalf("board differs after snapshot+replay")
	}
	if out.Seq() != live.Seq() {
		t.Fatalf("seq=%d want %d", out.Seq(), live.Seq())
	}
}

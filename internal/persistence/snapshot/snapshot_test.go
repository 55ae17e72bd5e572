package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sample() SnapshotV1 {
	return SnapshotV1{
		Header: Header{Version: CurrentVersion, SessionID: "s1", Seq: 7, MapDigest: "abc"},
		Nodes: map[string]NodeV1{
			"陣地1": {Name: "陣地A", Type: "陣地", X: 1, Y: 2, Score: 50, Links: []string{"コン1"}, AssignedColor: "yellow", Team: "blue", OwnerTeam: "red"},
			"コン1": {Name: "コンビニ1", Type: "コンビニ", Score: 10, Links: []string{"陣地1"}},
		},
		Teams: map[string]TeamV1{
			"red":  {RawActivity: "3億", ActivityTotal: 3e8, BattleValues: []float64{1, 2, 3, 4, 5}, Territory: "陣地1"},
			"blue": {RawActivity: "0", BattleValues: []float64{0, 0, 0, 0, 0}, Territory: "陣地1"},
		},
		TeamOrder: []string{"red", "blue"},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := sample()
	if err := Encode(&buf, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestWriteRead_FileAndHeader(t *testing.T) {
	dir := t.TempDir()
	in := sample()
	p := PathFor(dir, in.Header.Seq)
	if err := WriteSnapshot(p, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
	h, err := ReadHeader(p)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h != in.Header {
		t.Fatalf("header: %+v", h)
	}
	out, err := ReadSnapshot(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("file round trip mismatch")
	}
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	in := sample()
	in.Header.Version = 99
	if err := Encode(&buf, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(&buf); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if Latest(dir) != "" {
		t.Fatalf("empty dir should have no latest")
	}
	for _, seq := range []uint64{3, 12, 9} {
		s := sample()
		s.Header.Seq = seq
		if err := WriteSnapshot(PathFor(dir, seq), s); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "junk.snap.zst"), []byte("x"), 0o644)
	if got, want := Latest(dir), PathFor(dir, 12); got != want {
		t.Fatalf("latest: got %s want %s", got, want)
	}
}

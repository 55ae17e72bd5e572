package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	CurrentVersion = 1
	FileSuffix     = ".snap.zst"
)

type Header struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	MapDigest string `json:"map_digest"`
}

// SnapshotV1 is the persisted state of one simulation instance. It carries
// authored and mutable node attributes plus the team registry, nothing derived.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Nodes     map[string]NodeV1 `json:"nodes"`
	Teams     map[string]TeamV1 `json:"teams"`
	TeamOrder []string          `json:"team_order"`
}

type NodeV1 struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	X             int      `json:"x"`
	Y             int      `json:"y"`
	Score         int      `json:"score"`
	Links         []string `json:"links"`
	AssignedColor string   `json:"assigned_color,omitempty"`
	Team          string   `json:"team,omitempty"`
	OwnerTeam     string   `json:"owner_team,omitempty"`
}

type TeamV1 struct {
	RawActivity   string    `json:"raw_activity"`
	ActivityTotal float64   `json:"activity_total"`
	BattleValues  []float64 `json:"battle_values"`
	Territory     string    `json:"territory"`
}

// Encode writes a JSON header line followed by the gob-encoded snapshot,
// all inside one zstd stream.
func Encode(out io.Writer, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func Decode(in io.Reader) (SnapshotV1, error) {
	var snap SnapshotV1
	dec, err := zstd.NewReader(in)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is for humans and tooling; gob also contains it.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != CurrentVersion {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader returns only the header line, without decoding the body.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return SnapshotV1{}, err
	}
	defer f.Close()
	return Decode(f)
}

// PathFor is <dir>/<seq>.snap.zst.
func PathFor(dir string, seq uint64) string {
	return filepath.Join(dir, strconv.FormatUint(seq, 10)+FileSuffix)
}

// Latest returns the highest-sequence snapshot in dir, or "" if none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestSeq uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, FileSuffix) {
			continue
		}
		seq, err := strconv.ParseUint(strings.TrimSuffix(name, FileSuffix), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || seq > bestSeq {
			bestSeq = seq
			best = filepath.Join(dir, name)
		}
	}
	return best
}

// Package indexdb keeps a queryable secondary index of commands, snapshots
// and score history. The JSONL command log stays the source of truth; index
// writes are queued and dropped when the writer falls behind.
package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/board"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/scoring"
	"territory.ai/internal/sim/tuning"
)

type Index interface {
	game.CommandRecorder
	UpsertCatalog(cat *catalogs.MapCatalog, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() Stats
	Close() error
}

// Stats reports queue depth and per-kind drops.
type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropCommandTotal  uint64 `json:"drop_command_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
	FlushFailTotal    uint64 `json:"flush_fail_total"`
}

type catalogRow struct {
	name   string
	digest string
	data   []byte
}

func catalogRows(cat *catalogs.MapCatalog, tune tuning.Tuning) []catalogRow {
	var rows []catalogRow
	if cat != nil {
		if b, err := json.Marshal(cat); err == nil {
			rows = append(rows, catalogRow{name: "map", digest: cat.Digest, data: b})
		}
	}
	if b, err := json.Marshal(tune); err == nil {
		sum := sha256.Sum256(b)
		rows = append(rows, catalogRow{name: "tuning", digest: hex.EncodeToString(sum[:]), data: b})
	}
	return rows
}

type snapshotRow struct {
	SessionID string
	Seq       uint64
	Path      string
	MapDigest string
	Nodes     int
	Occupied  int
	Teams     int
	Scores    map[string]int
}

// summarize counts the snapshot and recomputes team scores from its nodes.
func summarize(path string, snap snapshot.SnapshotV1) snapshotRow {
	nodes := make([]board.Node, 0, len(snap.Nodes))
	occupied := 0
	for id, n := range snap.Nodes {
		if n.Team != "" {
			occupied++
		}
		nodes = append(nodes, board.Node{
			ID:        id,
			Type:      n.Type,
			Score:     n.Score,
			Team:      n.Team,
			OwnerTeam: n.OwnerTeam,
		})
	}
	return snapshotRow{
		SessionID: snap.Header.SessionID,
		Seq:       snap.Header.Seq,
		Path:      path,
		MapDigest: snap.Header.MapDigest,
		Nodes:     len(snap.Nodes),
		Occupied:  occupied,
		Teams:     len(snap.Teams),
		Scores:    scoring.TeamScores(nodes),
	}
}

package game

import (
	"fmt"
	"time"

	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/board"
	"territory.ai/internal/sim/teams"
)

// ExportSnapshot captures the board and registry. Derived figures are left out.
func (in *Instance) ExportSnapshot() snapshot.SnapshotV1 {
	in.mu.Lock()
	defer in.mu.Unlock()

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.CurrentVersion,
			SessionID: in.id,
			Seq:       in.seq,
			MapDigest: in.cat.Digest,
		},
		Nodes: make(map[string]snapshot.NodeV1, in.board.Len()),
		Teams: make(map[string]snapshot.TeamV1, in.reg.Len()),
	}
	for _, n := range in.board.Nodes() {
		snap.Nodes[n.ID] = snapshot.NodeV1{
			Name:          n.Name,
			Type:          n.Type,
			X:             n.X,
			Y:             n.Y,
			Score:         n.Score,
			Links:         n.Links,
			AssignedColor: n.AssignedColor,
			Team:          n.Team,
			OwnerTeam:     n.OwnerTeam,
		}
	}
	for _, t := range in.reg.List() {
		snap.Teams[t.Name] = snapshot.TeamV1{
			RawActivity:   t.RawActivity,
			ActivityTotal: t.ActivityTotal,
			BattleValues:  t.BattleValues,
			Territory:     t.Territory,
		}
		snap.TeamOrder = append(snap.TeamOrder, t.Name)
	}
	return snap
}

// ImportSnapshot replaces the instance state. The snapshot must come from the
// same authored map; nothing is changed when it is rejected.
func (in *Instance) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.MapDigest != "" && snap.Header.MapDigest != in.cat.Digest {
		return fmt.Errorf("snapshot map digest %s does not match loaded map %s", snap.Header.MapDigest, in.cat.Digest)
	}

	nodes := make([]board.Node, 0, len(snap.Nodes))
	for id, n := range snap.Nodes {
		links := n.Links
		if links == nil {
			links = []string{}
		}
		nodes = append(nodes, board.Node{
			ID:            id,
			Name:          n.Name,
			Type:          n.Type,
			X:             n.X,
			Y:             n.Y,
			Score:         n.Score,
			Links:         links,
			AssignedColor: n.AssignedColor,
			Team:          n.Team,
			OwnerTeam:     n.OwnerTeam,
		})
	}
	b, err := board.FromNodes(nodes)
	if err != nil {
		return fmt.Errorf("snapshot nodes: %w", err)
	}

	if len(snap.TeamOrder) != len(snap.Teams) {
		return fmt.Errorf("snapshot team order lists %d teams, registry has %d", len(snap.TeamOrder), len(snap.Teams))
	}
	reg := teams.NewRegistry()
	for _, name := range snap.TeamOrder {
		t, ok := snap.Teams[name]
		if !ok {
			return fmt.Errorf("snapshot team order names unknown team %q", name)
		}
		if len(t.BattleValues) > in.cfg.BattleSlots {
			return fmt.Errorf("snapshot team %q has %d battle values", name, len(t.BattleValues))
		}
		reg.Put(teams.Team{
			Name:          name,
			RawActivity:   t.RawActivity,
			ActivityTotal: t.ActivityTotal,
			BattleValues:  t.BattleValues,
			Territory:     t.Territory,
		})
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	in.board = b
	in.reg = reg
	// The sequence is taken over as-is so logged commands can be replayed on top.
	in.seq = snap.Header.Seq
	in.touched = time.Now()
	in.recordLocked(CommandEntry{Seq: in.seq, Kind: CmdImport})
	in.notifyLocked()
	return nil
}

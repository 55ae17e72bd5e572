package game

import (
	"territory.ai/internal/protocol"
	"territory.ai/internal/sim/board"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/scoring"
	"territory.ai/internal/sim/teams"
	"territory.ai/internal/sim/threat"
)

// EnrichedNode is a node plus the figures players see on it.
type EnrichedNode struct {
	board.Node

	// DisplayScore is the occupying team's total, not the node's own score.
	DisplayScore int
	// DisplayActivity is the occupying team's raw activity; territories only.
	DisplayActivity string
	Threat          threat.Level
	TeamColor       string
}

// View is one consistent read of an instance.
type View struct {
	SessionID string
	Seq       uint64
	Nodes     []EnrichedNode
	Scores    map[string]int
	Threat    map[string]threat.Level
	Teams     []teams.Team
	Colors    map[string]string
}

// View computes scores, threat levels and per-node display fields from a
// single state.
func (in *Instance) View() View {
	in.mu.Lock()
	defer in.mu.Unlock()

	nodes := in.board.Nodes()
	list := in.reg.List()
	scores := scoring.TeamScores(nodes)
	levels := threat.Levels(list, in.cfg.Bands)
	colors := teamColors(nodes, list)

	v := View{
		SessionID: in.id,
		Seq:       in.seq,
		Nodes:     make([]EnrichedNode, 0, len(nodes)),
		Scores:    scores,
		Threat:    levels,
		Teams:     list,
		Colors:    colors,
	}
	byName := make(map[string]teams.Team, len(list))
	for _, t := range list {
		byName[t.Name] = t
	}
	for _, n := range nodes {
		en := EnrichedNode{Node: n}
		if n.Team != "" {
			en.DisplayScore = scores[n.Team]
			en.Threat = levels[n.Team]
			en.TeamColor = colors[n.Team]
		}
		if n.IsTerritory() {
			if t, ok := byName[n.Team]; ok && n.Team != "" {
				en.DisplayActivity = t.RawActivity
			}
		}
		v.Nodes = append(v.Nodes, en)
	}
	return v
}

// teamColors gives each team a palette colour. A team that founded a
// coloured territory wears that territory's colour; everyone else takes the
// next palette slot in registry order.
func teamColors(nodes []board.Node, list []teams.Team) map[string]string {
	out := map[string]string{}
	for _, n := range nodes {
		if n.IsTerritory() && n.OwnerTeam != "" && n.AssignedColor != "" {
			if _, ok := out[n.OwnerTeam]; !ok {
				out[n.OwnerTeam] = n.AssignedColor
			}
		}
	}
	palette := catalogs.TerritoryColors
	for i, t := range list {
		if _, ok := out[t.Name]; !ok {
			out[t.Name] = palette[i%len(palette)]
		}
	}
	return out
}

// MapMsg renders the view as the MAP wire message.
func (v View) MapMsg() protocol.MapMsg {
	msg := protocol.MapMsg{
		Type:            protocol.TypeMap,
		ProtocolVersion: protocol.Version,
		SessionID:       v.SessionID,
		Version:         v.Seq,
		Nodes:           make(map[string]protocol.NodeView, len(v.Nodes)),
		Scores:          v.Scores,
		Threat:          make(map[string]string, len(v.Threat)),
	}
	for name, l := range v.Threat {
		msg.Threat[name] = string(l)
	}
	for _, n := range v.Nodes {
		links := n.Links
		if links == nil {
			links = []string{}
		}
		msg.Nodes[n.ID] = protocol.NodeView{
			ID:            n.ID,
			Name:          n.Name,
			Type:          n.Type,
			X:             n.X,
			Y:             n.Y,
			Score:         n.Score,
			Links:         links,
			AssignedColor: n.AssignedColor,
			Team:          n.Team,
			OwnerTeam:     n.OwnerTeam,
			TeamColor:     n.TeamColor,
			DisplayScore:  n.DisplayScore,
			DisplayActive: n.DisplayActivity,
			Threat:        string(n.Threat),
			ThreatLabel:   n.Threat.Label(),
		}
	}
	return msg
}

// AdventureGroups renders the registry listing.
func (v View) AdventureGroups() []protocol.AdventureGroup {
	out := make([]protocol.AdventureGroup, 0, len(v.Teams))
	for _, t := range v.Teams {
		bv := t.BattleValues
		if bv == nil {
			bv = []float64{}
		}
		out = append(out, protocol.AdventureGroup{
			GroupName:      t.Name,
			RawActiveValue: t.RawActivity,
			ActiveTotal:    t.ActivityTotal,
			BattleValues:   bv,
			Territory:      t.Territory,
			Color:          v.Colors[t.Name],
		})
	}
	return out
}

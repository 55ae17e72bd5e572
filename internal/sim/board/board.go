// Package board holds the working copy of the node graph for one simulation
// instance: who occupies each node and who founded each territory.
package board

import (
	"fmt"
	"sort"

	"territory.ai/internal/sim/catalogs"
)

type Kind int

const (
	KindPoint Kind = iota
	KindTerritory
)

func (k Kind) String() string {
	if k == KindTerritory {
		return "territory"
	}
	return "point"
}

// Node is one board position. Team and OwnerTeam are empty when unset.
type Node struct {
	ID            string
	Name          string
	Type          string
	X, Y          int
	Score         int
	Links         []string
	AssignedColor string

	Team      string
	OwnerTeam string // first claimant; territories only, set once
}

func (n *Node) Kind() Kind {
	if n.Type == catalogs.TypeTerritory {
		return KindTerritory
	}
	return KindPoint
}

func (n *Node) IsTerritory() bool { return n.Kind() == KindTerritory }

// SelfHeld reports whether a territory is currently held by its founder.
func (n *Node) SelfHeld() bool {
	return n.IsTerritory() && n.Team != "" && n.Team == n.OwnerTeam
}

func (n Node) clone() *Node {
	n.Links = append([]string(nil), n.Links...)
	return &n
}

// Board is not safe for concurrent use; the owning instance serialises access.
type Board struct {
	nodes map[string]*Node
	order []string
}

// FromCatalog builds a fresh working copy of the authored map.
func FromCatalog(c *catalogs.MapCatalog) *Board {
	b := &Board{nodes: make(map[string]*Node, len(c.Bases))}
	for _, id := range c.Order {
		d, _ := c.Node(id)
		b.nodes[id] = &Node{
			ID:            id,
			Name:          d.Name,
			Type:          d.Type,
			X:             d.X,
			Y:             d.Y,
			Score:         d.Score,
			Links:         d.Links,
			AssignedColor: d.AssignedColor,
		}
		b.order = append(b.order, id)
	}
	return b
}

// FromNodes rebuilds a board from previously exported nodes.
func FromNodes(nodes []Node) (*Board, error) {
	b := &Board{nodes: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if _, dup := b.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node %s", n.ID)
		}
		if n.OwnerTeam != "" && n.Type != catalogs.TypeTerritory {
			return nil, fmt.Errorf("node %s: owner_team on non-territory", n.ID)
		}
		b.nodes[n.ID] = n.clone()
		b.order = append(b.order, n.ID)
	}
	sort.Strings(b.order)
	return b, nil
}

func (b *Board) Len() int { return len(b.order) }

// Get returns the live node; callers inside the owning instance may mutate it
// only through Occupy.
func (b *Board) Get(id string) (*Node, bool) {
	n, ok := b.nodes[id]
	return n, ok
}

// Occupy puts team on the node. An unoccupied territory records the team as
// its founder; an existing founder is never replaced.
func (b *Board) Occupy(id, team string) error {
	n, ok := b.nodes[id]
	if !ok {
		return fmt.Errorf("unknown node %s", id)
	}
	if n.IsTerritory() && n.Team == "" && n.OwnerTeam == "" {
		n.OwnerTeam = team
	}
	n.Team = team
	return nil
}

// Nodes returns copies of all nodes in id order.
func (b *Board) Nodes() []Node {
	out := make([]Node, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.nodes[id].clone())
	}
	return out
}

// Each visits live nodes in id order without copying.
func (b *Board) Each(fn func(n *Node)) {
	for _, id := range b.order {
		fn(b.nodes[id])
	}
}

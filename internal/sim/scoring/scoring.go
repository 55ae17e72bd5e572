package scoring

import "territory.ai/internal/sim/board"

// TeamScores totals node scores per occupying team. A territory held by its
// own founder earns nothing, but the founder still gets an entry.
func TeamScores(nodes []board.Node) map[string]int {
	scores := map[string]int{}
	for i := range nodes {
		n := &nodes[i]
		if n.Team == "" {
			continue
		}
		pts := n.Score
		if n.SelfHeld() {
			pts = 0
		}
		scores[n.Team] += pts
	}
	return scores
}

func Total(scores map[string]int) int {
	t := 0
	for _, v := range scores {
		t += v
	}
	return t
}

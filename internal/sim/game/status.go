package game

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// StatusTable renders the occupation table: one row per node, then team
// totals, then the registry with threat labels.
func (v View) StatusTable() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-10s %-10s %-5s\n", "拠点名", "チーム", "得点")
	sb.WriteString(strings.Repeat("=", 30))
	sb.WriteByte('\n')
	for _, n := range v.Nodes {
		team := n.Team
		if team == "" {
			team = "-"
		}
		fmt.Fprintf(&sb, "%-10s %-10s %-5d\n", n.Name, team, n.Score)
	}

	sb.WriteString("\n[チーム別合計得点]\n")
	names := make([]string, 0, len(v.Scores))
	for name := range v.Scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if v.Scores[names[i]] != v.Scores[names[j]] {
			return v.Scores[names[i]] > v.Scores[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(&sb, "%-10s: %d 点\n", name, v.Scores[name])
	}

	if len(v.Teams) > 0 {
		sb.WriteString("\n[冒険団]\n")
		for _, t := range v.Teams {
			label := v.Threat[t.Name].Label()
			if label == "" {
				label = "-"
			}
			fmt.Fprintf(&sb, "%-10s 活力 %-16s 戦力 %-10s 脅威 %s\n",
				t.Name, humanize.Commaf(t.ActivityTotal), humanize.Commaf(t.BattleSum()), label)
		}
	}
	return sb.String()
}

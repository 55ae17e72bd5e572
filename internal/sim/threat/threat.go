// Package threat ranks teams into high/medium/low threat bands by battle
// strength per unit of activity.
package threat

import (
	"sort"

	"territory.ai/internal/sim/teams"
)

type Level string

const (
	High   Level = "high"
	Medium Level = "medium"
	Low    Level = "low"
)

// Label is the on-board display text.
func (l Level) Label() string {
	switch l {
	case High:
		return "高"
	case Medium:
		return "中"
	case Low:
		return "低"
	}
	return ""
}

// Bands sizes the ranking. Teams is both the minimum registry size and the
// number of labelled teams; ranks past High+Medium are Low.
type Bands struct {
	Teams  int
	High   int
	Medium int
}

func DefaultBands() Bands { return Bands{Teams: 8, High: 2, Medium: 4} }

// Levels labels the top Bands.Teams teams by ratio. With fewer registered
// teams it returns an empty map. Equal ratios keep registry order.
func Levels(list []teams.Team, b Bands) map[string]Level {
	out := map[string]Level{}
	if b.Teams <= 0 || len(list) < b.Teams {
		return out
	}
	type ranked struct {
		name  string
		ratio float64
	}
	rs := make([]ranked, 0, len(list))
	for _, t := range list {
		rs = append(rs, ranked{name: t.Name, ratio: t.Ratio()})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].ratio > rs[j].ratio })

	for i, r := range rs[:b.Teams] {
		switch {
		case i < b.High:
			out[r.name] = High
		case i < b.High+b.Medium:
			out[r.name] = Medium
		default:
			out[r.name] = Low
		}
	}
	return out
}

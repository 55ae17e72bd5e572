package scoring

import (
	"math/rand"
	"testing"

	"territory.ai/internal/sim/board"
	"territory.ai/internal/sim/catalogs"
)

func TestTeamScores_Rules(t *testing.T) {
	nodes := []board.Node{
		{ID: "t1", Type: catalogs.TypeTerritory, Score: 50, Team: "red", OwnerTeam: "red"},
		{ID: "t2", Type: catalogs.TypeTerritory, Score: 50, Team: "red", OwnerTeam: "blue"},
		{ID: "c1", Type: catalogs.TypeConvenience, Score: 10, Team: "red"},
		{ID: "c2", Type: catalogs.TypeConvenience, Score: 10, Team: "blue"},
		{ID: "h1", Type: catalogs.TypeHall, Score: 30},
	}
	got := TeamScores(nodes)
	if len(got) != 2 || got["red"] != 60 || got["blue"] != 10 {
		t.Fatalf("scores: %v", got)
	}
}

func TestTeamScores_FounderOnlyStillListed(t *testing.T) {
	got := TeamScores([]board.Node{
		{ID: "t1", Type: catalogs.TypeTerritory, Score: 50, Team: "red", OwnerTeam: "red"},
	})
	v, ok := got["red"]
	if !ok || v != 0 {
		t.Fatalf("expected red=0 entry, got %v", got)
	}
	if len(TeamScores(nil)) != 0 {
		t.Fatalf("empty board should have no scores")
	}
}

func TestTeamScores_SumMatchesEligibleNodes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"", "a", "b", "c"}
	types := []string{catalogs.TypeTerritory, catalogs.TypeConvenience, catalogs.TypeHall}
	for round := 0; round < 200; round++ {
		nodes := make([]board.Node, 20)
		want := 0
		for i := range nodes {
			n := board.Node{
				ID:    string(rune('A' + i)),
				Type:  types[rng.Intn(len(types))],
				Score: rng.Intn(100),
				Team:  names[rng.Intn(len(names))],
			}
			if n.Type == catalogs.TypeTerritory {
				n.OwnerTeam = names[rng.Intn(len(names))]
			}
			nodes[i] = n
			if n.Team != "" && !(n.Type == catalogs.TypeTerritory && n.Team == n.OwnerTeam) {
				want += n.Score
			}
		}
		if got := Total(TeamScores(nodes)); got != want {
			t.Fatalf("round %d: total %d want %d", round, got, want)
		}
	}
}

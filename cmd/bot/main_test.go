package main

import (
	"math/rand"
	"testing"

	"territory.ai/internal/protocol"
)

func TestPickTarget_PrefersFrontier(t *testing.T) {
	m := &protocol.MapMsg{Nodes: map[string]protocol.NodeView{
		"a": {ID: "a", Team: "red", Links: []string{"b"}},
		"b": {ID: "b", Links: []string{"a", "c"}},
		"c": {ID: "c", Links: []string{"b"}},
	}}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		if got := pickTarget(r, m, "red"); got != "b" {
			t.Fatalf("pick=%q want b", got)
		}
	}
	if got := pickTarget(r, m, "blue"); got == "" {
		t.Fatalf("team with no nodes should pick any node")
	}
	full := &protocol.MapMsg{Nodes: map[string]protocol.NodeView{"a": {ID: "a", Team: "red"}}}
	if got := pickTarget(r, full, "red"); got != "" {
		t.Fatalf("nothing left to claim, got %q", got)
	}
}

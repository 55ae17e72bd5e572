package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"territory.ai/internal/protocol"
)

// bot plays one team: every tick it claims a random node adjacent to
// something it already holds, or a random node if it holds nothing yet.
func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		team  = flag.String("team", "bot", "team name to play")
		every = flag.Duration("every", 2*time.Second, "time between claims")
		seed  = flag.Int64("seed", 0, "rng seed (default: time based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(*seed))

	maps := make(chan protocol.MapMsg, 1)
	go func() {
		defer close(maps)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeMap:
				var m protocol.MapMsg
				if err := json.Unmarshal(msg, &m); err != nil {
					continue
				}
				select {
				case <-maps:
				default:
				}
				maps <- m
			case protocol.TypeAck:
				var ack protocol.AckMsg
				if err := json.Unmarshal(msg, &ack); err != nil {
					continue
				}
				if !ack.Accepted {
					logger.Printf("ACK %s rejected code=%s msg=%s", ack.AckFor, ack.Code, ack.Message)
				}
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	tick := time.NewTicker(*every)
	defer tick.Stop()

	var latest *protocol.MapMsg
	var n int
	for {
		select {
		case <-stop:
			return
		case m, ok := <-maps:
			if !ok {
				logger.Printf("connection closed")
				return
			}
			if latest == nil {
				logger.Printf("MAP session=%s nodes=%d", m.SessionID, len(m.Nodes))
			}
			latest = &m
		case <-tick.C:
			if latest == nil {
				continue
			}
			target := pickTarget(r, latest, *team)
			if target == "" {
				continue
			}
			n++
			cmd := protocol.CommandMsg{
				Type:            protocol.TypeCommand,
				ProtocolVersion: protocol.Version,
				ID:              fmt.Sprintf("C_claim_%d", n),
				Op:              protocol.OpAssignTeam,
				NodeID:          target,
				Team:            *team,
			}
			if err := conn.WriteJSON(cmd); err != nil {
				logger.Printf("send COMMAND: %v", err)
				return
			}
			logger.Printf("claim %s score=%d", target, latest.Scores[*team])
		}
	}
}

func pickTarget(r *rand.Rand, m *protocol.MapMsg, team string) string {
	ids := make([]string, 0, len(m.Nodes))
	for id := range m.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var frontier []string
	seen := map[string]bool{}
	for _, id := range ids {
		if m.Nodes[id].Team != team {
			continue
		}
		for _, l := range m.Nodes[id].Links {
			if n, ok := m.Nodes[l]; ok && n.Team != team && !seen[l] {
				seen[l] = true
				frontier = append(frontier, l)
			}
		}
	}
	if len(frontier) == 0 {
		for _, id := range ids {
			if m.Nodes[id].Team != team {
				frontier = append(frontier, id)
			}
		}
	}
	if len(frontier) == 0 {
		return ""
	}
	sort.Strings(frontier)
	return frontier[r.Intn(len(frontier))]
}

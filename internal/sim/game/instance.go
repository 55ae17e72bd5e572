// Package game owns one simulation instance: the working board, the team
// registry and the commands that mutate them. Both the HTTP server and the
// terminal simulator drive the game through this package only.
package game

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"territory.ai/internal/sim/board"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/teams"
	"territory.ai/internal/sim/threat"
	"territory.ai/internal/sim/valueparse"
)

type Config struct {
	Bands       threat.Bands
	BattleSlots int
}

func DefaultConfig() Config {
	return Config{Bands: threat.DefaultBands(), BattleSlots: teams.BattleSlots}
}

// Command kinds recorded in the command log.
const (
	CmdAssignTeam   = "ASSIGN_TEAM"
	CmdRegisterTeam = "REGISTER_TEAM"
	CmdReset        = "RESET"
	CmdImport       = "IMPORT"
)

// CommandEntry is one accepted or rejected command.
type CommandEntry struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	At        time.Time `json:"at"`
	Kind      string    `json:"kind"`
	NodeID    string    `json:"node_id,omitempty"`
	Team      string    `json:"team,omitempty"`
	Raw       string    `json:"raw,omitempty"`
	Battle    []float64 `json:"battle,omitempty"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type CommandRecorder interface {
	RecordCommand(entry CommandEntry) error
}

// Instance is safe for concurrent use. Every command and every View runs
// under one lock, so a View never mixes two states.
type Instance struct {
	id  string
	cat *catalogs.MapCatalog
	cfg Config

	mu      sync.Mutex
	board   *board.Board
	reg     *teams.Registry
	seq     uint64
	touched time.Time

	recorder CommandRecorder
	subs     map[int]chan uint64
	nextSub  int
}

func New(id string, cat *catalogs.MapCatalog, cfg Config) *Instance {
	if cfg.Bands.Teams <= 0 {
		cfg.Bands = threat.DefaultBands()
	}
	if cfg.BattleSlots <= 0 {
		cfg.BattleSlots = teams.BattleSlots
	}
	return &Instance{
		id:      id,
		cat:     cat,
		cfg:     cfg,
		board:   board.FromCatalog(cat),
		reg:     teams.NewRegistry(),
		touched: time.Now(),
		subs:    map[int]chan uint64{},
	}
}

func (in *Instance) ID() string                    { return in.id }
func (in *Instance) Catalog() *catalogs.MapCatalog { return in.cat }

func (in *Instance) SetRecorder(r CommandRecorder) {
	in.mu.Lock()
	in.recorder = r
	in.mu.Unlock()
}

// Seq is the sequence number of the last accepted command.
func (in *Instance) Seq() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.seq
}

func (in *Instance) LastTouched() time.Time {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.touched
}

// Subscribe returns a channel that receives the new sequence number after each
// accepted command. Slow readers only ever see the latest value.
func (in *Instance) Subscribe() (<-chan uint64, func()) {
	in.mu.Lock()
	defer in.mu.Unlock()
	ch := make(chan uint64, 1)
	id := in.nextSub
	in.nextSub++
	in.subs[id] = ch
	return ch, func() {
		in.mu.Lock()
		defer in.mu.Unlock()
		if c, ok := in.subs[id]; ok {
			delete(in.subs, id)
			close(c)
		}
	}
}

// AssignTeam puts team on a node, creating the team on first reference.
func (in *Instance) AssignTeam(nodeID, team string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.assignTeamLocked(nodeID, team)
}

func (in *Instance) assignTeamLocked(nodeID, team string) error {
	team = strings.TrimSpace(team)
	entry := CommandEntry{Kind: CmdAssignTeam, NodeID: nodeID, Team: team}
	if _, ok := in.board.Get(nodeID); !ok || nodeID == "" {
		return in.rejectLocked(entry, fmt.Errorf("%w: %q", ErrInvalidNode, nodeID))
	}
	if team == "" {
		return in.rejectLocked(entry, fmt.Errorf("%w: team name is required", ErrValidation))
	}

	if err := in.board.Occupy(nodeID, team); err != nil {
		return in.rejectLocked(entry, fmt.Errorf("%w: %v", ErrInvalidNode, err))
	}
	in.reg.Ensure(team, nodeID)
	in.acceptLocked(entry)
	return nil
}

// RegisterOrUpdateTeam replaces a team's figures. When territoryID names a
// territory, the team also takes it (founding it if it was empty).
func (in *Instance) RegisterOrUpdateTeam(name, rawActivity string, battleValues []float64, territoryID string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.registerTeamLocked(name, rawActivity, battleValues, territoryID)
}

func (in *Instance) registerTeamLocked(name, rawActivity string, battleValues []float64, territoryID string) error {
	name = strings.TrimSpace(name)
	territoryID = strings.TrimSpace(territoryID)
	entry := CommandEntry{Kind: CmdRegisterTeam, NodeID: territoryID, Team: name, Raw: rawActivity, Battle: battleValues}
	if name == "" {
		return in.rejectLocked(entry, fmt.Errorf("%w: team name is required", ErrValidation))
	}
	if len(battleValues) > in.cfg.BattleSlots {
		return in.rejectLocked(entry, fmt.Errorf("%w: at most %d battle values, got %d", ErrValidation, in.cfg.BattleSlots, len(battleValues)))
	}
	for i, v := range battleValues {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return in.rejectLocked(entry, fmt.Errorf("%w: battle value %d is not finite", ErrValidation, i))
		}
	}

	in.reg.Put(teams.Team{
		Name:          name,
		RawActivity:   rawActivity,
		ActivityTotal: valueparse.Parse(rawActivity),
		BattleValues:  battleValues,
		Territory:     territoryID,
	})
	if n, ok := in.board.Get(territoryID); ok && n.IsTerritory() {
		_ = in.board.Occupy(territoryID, name)
	}
	in.acceptLocked(entry)
	return nil
}

// Reset reverts the board to the authored map and forgets every team.
func (in *Instance) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.resetLocked()
}

func (in *Instance) resetLocked() {
	in.board = board.FromCatalog(in.cat)
	in.reg.Clear()
	in.acceptLocked(CommandEntry{Kind: CmdReset})
}

// Apply runs one command and returns the sequence number the instance holds
// once it is done, read under the same lock.
func (in *Instance) Apply(e CommandEntry) (uint64, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	var err error
	switch e.Kind {
	case CmdAssignTeam:
		err = in.assignTeamLocked(e.NodeID, e.Team)
	case CmdRegisterTeam:
		err = in.registerTeamLocked(e.Team, e.Raw, e.Battle, e.NodeID)
	case CmdReset:
		in.resetLocked()
	default:
		err = fmt.Errorf("%w: %s", ErrNotReplayable, e.Kind)
	}
	return in.seq, err
}

// ListTeams returns the registry in first-reference order.
func (in *Instance) ListTeams() []teams.Team {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.reg.List()
}

func (in *Instance) acceptLocked(entry CommandEntry) {
	in.seq++
	in.touched = time.Now()
	entry.Seq = in.seq
	in.recordLocked(entry)
	in.notifyLocked()
}

// notifyLocked posts the current seq to subscribers, replacing any unread one.
func (in *Instance) notifyLocked() {
	for _, ch := range in.subs {
		select {
		case <-ch:
		default:
		}
		ch <- in.seq
	}
}

func (in *Instance) rejectLocked(entry CommandEntry, err error) error {
	in.touched = time.Now()
	entry.Seq = in.seq
	entry.Code = ErrorCode(err)
	entry.Error = err.Error()
	in.recordLocked(entry)
	return err
}

func (in *Instance) recordLocked(entry CommandEntry) {
	if in.recorder == nil {
		return
	}
	entry.SessionID = in.id
	entry.At = in.touched.UTC()
	_ = in.recorder.RecordCommand(entry)
}

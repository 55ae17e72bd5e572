package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NodeView is one node as shown to players. display_* and threat are
// recomputed on every read and never persisted.
type NodeView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	X             int      `json:"x"`
	Y             int      `json:"y"`
	Score         int      `json:"score"`
	Links         []string `json:"links"`
	AssignedColor string   `json:"assigned_color,omitempty"`
	Team          string   `json:"team,omitempty"`
	OwnerTeam     string   `json:"owner_team,omitempty"`
	TeamColor     string   `json:"team_color,omitempty"`

	DisplayScore  int    `json:"display_score"`
	DisplayActive string `json:"display_active"`
	Threat        string `json:"threat"`
	ThreatLabel   string `json:"threat_label,omitempty"`
}

// MAP (server -> client): full board after a change.
type MapMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	SessionID       string              `json:"session_id,omitempty"`
	Version         uint64              `json:"version"`
	Nodes           map[string]NodeView `json:"nodes"`
	Scores          map[string]int      `json:"scores"`
	Threat          map[string]string   `json:"threat"`
}

// AssignTeamReq is the body of POST /api/assign_team.
type AssignTeamReq struct {
	NodeID string `json:"node_id"`
	Team   string `json:"team"`
}

// AdventureGroupReq is the body of POST /api/adventure_groups. active_total
// is the raw, hand-entered activity figure.
type AdventureGroupReq struct {
	GroupName    string      `json:"group_name"`
	ActiveTotal  RawValue    `json:"active_total"`
	BattleValues []FlexFloat `json:"battle_values"`
	Territory    string      `json:"territory"`
}

// AdventureGroup is one registry entry in GET /api/adventure_groups.
type AdventureGroup struct {
	GroupName      string    `json:"group_name"`
	RawActiveValue string    `json:"raw_active_value"`
	ActiveTotal    float64   `json:"active_total"`
	BattleValues   []float64 `json:"battle_values"`
	Territory      string    `json:"territory"`
	Color          string    `json:"color,omitempty"`
}

type MessageResp struct {
	Message string `json:"message"`
}

type ErrorResp struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// COMMAND (client -> server) over the websocket.
type CommandMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	ID              string             `json:"id"`
	Op              string             `json:"op"`
	NodeID          string             `json:"node_id,omitempty"`
	Team            string             `json:"team,omitempty"`
	Group           *AdventureGroupReq `json:"group,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Version         uint64 `json:"version,omitempty"`
}

// RawValue keeps a hand-entered figure verbatim whether the client sent it
// as a JSON string or a number.
type RawValue string

func (v *RawValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = RawValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("active_total: expected string or number")
	}
	*v = RawValue(n.String())
	return nil
}

// FlexFloat accepts a JSON number or a numeric string.
type FlexFloat float64

// BadNumberError reports a battle value that is not a finite number.
type BadNumberError struct {
	Raw string
}

func (e *BadNumberError) Error() string {
	return fmt.Sprintf("battle value %s is not a number", e.Raw)
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return &BadNumberError{Raw: string(b)}
	}
	*f = FlexFloat(v)
	return nil
}

func Floats(in []FlexFloat) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

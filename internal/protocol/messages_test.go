package protocol

import (
	"encoding/json"
	"testing"
)

func TestAdventureGroupReq_FlexibleInputs(t *testing.T) {
	var req AdventureGroupReq
	raw := `{"group_name":"red","active_total":"3億","battle_values":[1,"2.5"," 3 "],"territory":"陣地1"}`
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.ActiveTotal != "3億" {
		t.Fatalf("active_total: %q", req.ActiveTotal)
	}
	got := Floats(req.BattleValues)
	if len(got) != 3 || got[0] != 1 || got[1] != 2.5 || got[2] != 3 {
		t.Fatalf("battle values: %v", got)
	}

	var numeric AdventureGroupReq
	if err := json.Unmarshal([]byte(`{"group_name":"b","active_total":1200}`), &numeric); err != nil {
		t.Fatalf("decode numeric: %v", err)
	}
	if numeric.ActiveTotal != "1200" {
		t.Fatalf("numeric active_total kept as %q", numeric.ActiveTotal)
	}
}

func TestAdventureGroupReq_MalformedBattleValue(t *testing.T) {
	var req AdventureGroupReq
	err := json.Unmarshal([]byte(`{"group_name":"red","battle_values":["x"]}`), &req)
	if err == nil {
		t.Fatalf("expected malformed battle value error")
	}
	if err := json.Unmarshal([]byte(`{"group_name":"red","battle_values":[true]}`), &req); err == nil {
		t.Fatalf("expected bool battle value rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := DecodeBase([]byte(`{"type":"COMMAND","protocol_version":"1.0","op":"RESET"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Type != TypeCommand || b.ProtocolVersion != Version {
		t.Fatalf("base: %+v", b)
	}
}

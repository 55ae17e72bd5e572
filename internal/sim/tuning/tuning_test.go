package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ConfigsTuning(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	if tune.Threat.Teams != 8 || tune.Threat.High != 2 || tune.Threat.Medium != 4 {
		t.Fatalf("threat bands: %+v", tune.Threat)
	}
	if tune.BattleSlots != 5 {
		t.Fatalf("battle slots: %d", tune.BattleSlots)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("sessions:\n  max: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.Sessions.Max != 3 {
		t.Fatalf("max sessions: %d", tune.Sessions.Max)
	}
	if tune.Threat != Defaults().Threat || tune.RateLimits != Defaults().RateLimits {
		t.Fatalf("defaults lost: %+v", tune)
	}
}

func TestLoad_RejectsOversizedBands(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("threat:\n  teams: 4\n  high: 3\n  medium: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestThreat_Bands(t *testing.T) {
	b := Defaults().Threat.Bands()
	if b.Teams != 8 || b.High != 2 || b.Medium != 4 {
		t.Fatalf("unexpected bands: %+v", b)
	}
}

package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"territory.ai/internal/sim/threat"
)

type Tuning struct {
	Threat Threat `yaml:"threat" json:"threat"`

	BattleSlots int `yaml:"battle_slots" json:"battle_slots"`

	Sessions   Sessions   `yaml:"sessions" json:"sessions"`
	RateLimits RateLimits `yaml:"rate_limits" json:"rate_limits"`

	// A session snapshot is written after this many accepted commands (0 disables).
	SnapshotEveryCommands int `yaml:"snapshot_every_commands" json:"snapshot_every_commands"`
}

type Threat struct {
	Teams  int `yaml:"teams" json:"teams"`
	High   int `yaml:"high" json:"high"`
	Medium int `yaml:"medium" json:"medium"`
}

func (t Threat) Bands() threat.Bands {
	return threat.Bands{Teams: t.Teams, High: t.High, Medium: t.Medium}
}

type Sessions struct {
	Max        int `yaml:"max" json:"max"`
	IdleTTLSec int `yaml:"idle_ttl_sec" json:"idle_ttl_sec"`
}

type RateLimits struct {
	CommandsPerSec float64 `yaml:"commands_per_sec" json:"commands_per_sec"`
	Burst          int     `yaml:"burst" json:"burst"`
}

func Defaults() Tuning {
	return Tuning{
		Threat:      Threat{Teams: 8, High: 2, Medium: 4},
		BattleSlots: 5,
		Sessions: Sessions{
			Max:        1024,
			IdleTTLSec: 6 * 3600,
		},
		RateLimits: RateLimits{
			CommandsPerSec: 10,
			Burst:          20,
		},
		SnapshotEveryCommands: 50,
	}
}

// Load reads tuning.yaml on top of Defaults; keys missing from the file keep
// their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values with defaults.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.Threat.Teams <= 0 {
		t.Threat = d.Threat
	}
	if t.BattleSlots <= 0 {
		t.BattleSlots = d.BattleSlots
	}
	if t.Sessions.Max <= 0 {
		t.Sessions.Max = d.Sessions.Max
	}
	if t.Sessions.IdleTTLSec <= 0 {
		t.Sessions.IdleTTLSec = d.Sessions.IdleTTLSec
	}
	if t.RateLimits.CommandsPerSec <= 0 {
		t.RateLimits.CommandsPerSec = d.RateLimits.CommandsPerSec
	}
	if t.RateLimits.Burst <= 0 {
		t.RateLimits.Burst = d.RateLimits.Burst
	}
	if t.SnapshotEveryCommands < 0 {
		t.SnapshotEveryCommands = 0
	}
}

func (t Tuning) Validate() error {
	if t.Threat.High < 0 || t.Threat.Medium < 0 {
		return errors.New("threat bands must be non-negative")
	}
	if t.Threat.High+t.Threat.Medium > t.Threat.Teams {
		return fmt.Errorf("threat bands high+medium=%d exceed teams=%d", t.Threat.High+t.Threat.Medium, t.Threat.Teams)
	}
	return nil
}

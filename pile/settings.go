package pile

import (
	"fmt"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

// Settings are the world-wide values stored in a Pile file's user data.
type Settings struct {
	Name        string
	Spawn       cube.Pos
	Time        int64
	TimeCycle   bool
	CurrentTick int64
	// PlayerSpawns holds per-player spawn positions by player UUID.
	PlayerSpawns map[uuid.UUID]cube.Pos
}

// defaultSettings returns default world settings.
func defaultSettings() *Settings {
	return &Settings{
		Name:         "Strata World",
		Spawn:        cube.Pos{0, 64, 0},
		Time:         6000,
		TimeCycle:    true,
		PlayerSpawns: make(map[uuid.UUID]cube.Pos),
	}
}

func posTag(pos cube.Pos) map[string]any {
	return map[string]any{"x": int32(pos.X()), "y": int32(pos.Y()), "z": int32(pos.Z())}
}

func tagPos(v any) (cube.Pos, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return cube.Pos{}, false
	}
	x, okx := m["x"].(int32)
	y, oky := m["y"].(int32)
	z, okz := m["z"].(int32)
	return cube.Pos{int(x), int(y), int(z)}, okx && oky && okz
}

func boolTag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// encodeSettings encodes world settings to NBT.
func encodeSettings(s *Settings) ([]byte, error) {
	spawns := make(map[string]any, len(s.PlayerSpawns))
	for id, pos := range s.PlayerSpawns {
		spawns[id.String()] = posTag(pos)
	}
	data := map[string]any{
		"name":         s.Name,
		"spawn":        posTag(s.Spawn),
		"time":         s.Time,
		"timeCycle":    boolTag(s.TimeCycle),
		"currentTick":  s.CurrentTick,
		"playerSpawns": spawns,
	}
	b, err := nbt.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return b, nil
}

// decodeSettings decodes world settings from NBT. Missing fields keep the
// values already in s.
func decodeSettings(data []byte, s *Settings) error {
	if len(data) == 0 {
		return fmt.Errorf("no settings data")
	}
	var m map[string]any
	if err := nbt.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}

	if name, ok := m["name"].(string); ok {
		s.Name = name
	}
	if pos, ok := tagPos(m["spawn"]); ok {
		s.Spawn = pos
	}
	if t, ok := m["time"].(int64); ok {
		s.Time = t
	}
	if tc, ok := m["timeCycle"].(uint8); ok {
		s.TimeCycle = tc != 0
	}
	if ct, ok := m["currentTick"].(int64); ok {
		s.CurrentTick = ct
	}
	if spawns, ok := m["playerSpawns"].(map[string]any); ok {
		if s.PlayerSpawns == nil {
			s.PlayerSpawns = make(map[uuid.UUID]cube.Pos, len(spawns))
		}
		for k, v := range spawns {
			id, err := uuid.Parse(k)
			if err != nil {
				return fmt.Errorf("player spawn %q: %w", k, err)
			}
			if pos, ok := tagPos(v); ok {
				s.PlayerSpawns[id] = pos
			}
		}
	}
	return nil
}

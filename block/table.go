package block

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Table is an in-memory Registry.
type Table struct {
	states      map[uint16]State
	ids         map[string]uint16
	defaults    map[string]uint16
	replaceable map[string]bool
}

// DefaultReplaceable lists the blocks that placement may overwrite unless a
// table is given its own list.
var DefaultReplaceable = []string{
	AirName,
	"minecraft:cave_air",
	"minecraft:void_air",
	"minecraft:water",
	"minecraft:lava",
	"minecraft:grass",
	"minecraft:tall_grass",
	"minecraft:fern",
	"minecraft:large_fern",
	"minecraft:dead_bush",
	"minecraft:snow",
}

// NewTable creates an empty table. Names passed are reported as replaceable;
// without any, DefaultReplaceable is used.
func NewTable(replaceable ...string) *Table {
	if len(replaceable) == 0 {
		replaceable = DefaultReplaceable
	}
	t := &Table{
		states:      make(map[uint16]State),
		ids:         make(map[string]uint16),
		defaults:    make(map[string]uint16),
		replaceable: make(map[string]bool, len(replaceable)),
	}
	for _, name := range replaceable {
		t.replaceable[name] = true
	}
	return t
}

// Register adds a state under id. The first state registered for a name is
// its default until another one is registered with def set.
func (t *Table) Register(id uint16, s State, def bool) {
	t.states[id] = s
	t.ids[s.String()] = id
	if _, ok := t.defaults[s.Name]; !ok || def {
		t.defaults[s.Name] = id
	}
}

// Resolve ...
func (t *Table) Resolve(id uint16) (State, bool) {
	s, ok := t.states[id]
	return s, ok
}

// StateFor ...
func (t *Table) StateFor(name string, properties map[string]string) (uint16, bool) {
	if id, ok := t.ids[State{Name: name, Properties: properties}.String()]; ok {
		return id, true
	}
	if len(properties) == 0 {
		id, ok := t.defaults[name]
		return id, ok
	}
	return 0, false
}

// IsReplaceable ...
func (t *Table) IsReplaceable(id uint16) bool {
	s, ok := t.states[id]
	return ok && t.replaceable[s.Name]
}

// Len returns the number of registered states.
func (t *Table) Len() int {
	return len(t.states)
}

// blockJSON is one entry of the vanilla data generator's blocks.json report.
type blockJSON struct {
	States []struct {
		ID         uint16            `json:"id"`
		Default    bool              `json:"default"`
		Properties map[string]string `json:"properties"`
	} `json:"states"`
}

// ReadTable decodes a blocks.json report as written by the vanilla data
// generator.
func ReadTable(r io.Reader) (*Table, error) {
	var report map[string]blockJSON
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode block report: %w", err)
	}
	t := NewTable()
	for name, b := range report {
		for _, s := range b.States {
			t.Register(s.ID, State{Name: name, Properties: s.Properties}, s.Default)
		}
	}
	return t, nil
}

// ReadTableFile reads a blocks.json report from path.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open block report: %w", err)
	}
	defer f.Close()
	return ReadTable(f)
}

// DefaultTable returns the states the engine needs on its own, with their
// 1.16.5 network ids: the flat generator layers and the common fluids.
func DefaultTable() *Table {
	t := NewTable()
	t.Register(0, State{Name: AirName}, true)
	t.Register(1, State{Name: "minecraft:stone"}, true)
	t.Register(8, State{Name: "minecraft:grass_block", Properties: map[string]string{"snowy": "true"}}, false)
	t.Register(9, State{Name: "minecraft:grass_block", Properties: map[string]string{"snowy": "false"}}, true)
	t.Register(10, State{Name: "minecraft:dirt"}, true)
	t.Register(14, State{Name: "minecraft:cobblestone"}, true)
	t.Register(15, State{Name: "minecraft:oak_planks"}, true)
	t.Register(33, State{Name: "minecraft:bedrock"}, true)
	for level := range 16 {
		props := map[string]string{"level": fmt.Sprint(level)}
		t.Register(uint16(34+level), State{Name: "minecraft:water", Properties: props}, level == 0)
		t.Register(uint16(50+level), State{Name: "minecraft:lava", Properties: props}, level == 0)
	}
	t.Register(66, State{Name: "minecraft:sand"}, true)
	t.Register(68, State{Name: "minecraft:gravel"}, true)
	return t
}

// Package block defines the contract between the world engine and the block
// registry. The engine only ever handles opaque 16-bit state ids and asks a
// Registry to translate them to and from named states.
package block

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AirName is the identifier of the empty block.
const AirName = "minecraft:air"

// Registry resolves block state ids.
type Registry interface {
	// Resolve returns the named state of id.
	Resolve(id uint16) (State, bool)
	// StateFor returns the id of the state with the name and properties
	// passed. With no properties, the block's default state is returned.
	StateFor(name string, properties map[string]string) (uint16, bool)
	// IsReplaceable reports whether placing a block may overwrite id.
	IsReplaceable(id uint16) bool
}

// Air returns the state id of minecraft:air in reg. Registries without an air
// entry are treated as using id 0.
func Air(reg Registry) uint16 {
	id, _ := reg.StateFor(AirName, nil)
	return id
}

// State is a block name with a full property assignment.
type State struct {
	Name       string
	Properties map[string]string
}

// String returns the state in its canonical form, for example
// minecraft:oak_stairs[facing=east,half=bottom]. Properties are sorted by key.
func (s State) String() string {
	if len(s.Properties) == 0 {
		return s.Name
	}
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('[')
	for i, k := range slices.Sorted(maps.Keys(s.Properties)) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.Properties[k])
	}
	b.WriteByte(']')
	return b.String()
}

// ParseState parses the canonical form produced by State.String.
func ParseState(s string) (State, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" {
			return State{}, fmt.Errorf("empty block state")
		}
		return State{Name: s}, nil
	}
	if !strings.HasSuffix(s, "]") || open == 0 {
		return State{}, fmt.Errorf("malformed block state %q", s)
	}
	st := State{Name: s[:open], Properties: make(map[string]string)}
	body := s[open+1 : len(s)-1]
	if body == "" {
		return st, nil
	}
	for _, kv := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return State{}, fmt.Errorf("malformed property %q in block state %q", kv, s)
		}
		st.Properties[k] = v
	}
	return st, nil
}

package block

import (
	"strings"
	"testing"
)

func TestStateString(t *testing.T) {
	s := State{Name: "minecraft:oak_stairs", Properties: map[string]string{"half": "bottom", "facing": "east"}}
	if got, want := s.String(), "minecraft:oak_stairs[facing=east,half=bottom]"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	parsed, err := ParseState(s.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.String() != s.String() {
		t.Fatalf("parsed %q, want %q", parsed, s)
	}
}

func TestParseStateErrors(t *testing.T) {
	for _, in := range []string{"", "[a=b]", "minecraft:stone[a=b", "minecraft:stone[ab]"} {
		if _, err := ParseState(in); err == nil {
			t.Errorf("ParseState(%q) succeeded", in)
		}
	}
}

func TestDefaultTable(t *testing.T) {
	tab := DefaultTable()
	if Air(tab) != 0 {
		t.Fatalf("air = %d, want 0", Air(tab))
	}
	if id, ok := tab.StateFor("minecraft:grass_block", nil); !ok || id != 9 {
		t.Fatalf("grass default = %d/%v, want 9", id, ok)
	}
	if id, ok := tab.StateFor("minecraft:grass_block", map[string]string{"snowy": "true"}); !ok || id != 8 {
		t.Fatalf("snowy grass = %d/%v, want 8", id, ok)
	}
	if _, ok := tab.StateFor("minecraft:grass_block", map[string]string{"snowy": "maybe"}); ok {
		t.Fatal("unknown property assignment resolved")
	}
	s, ok := tab.Resolve(33)
	if !ok || s.Name != "minecraft:bedrock" {
		t.Fatalf("Resolve(33) = %v/%v, want bedrock", s, ok)
	}
	if !tab.IsReplaceable(0) || !tab.IsReplaceable(34) {
		t.Fatal("air and water should be replaceable")
	}
	if tab.IsReplaceable(1) || tab.IsReplaceable(9999) {
		t.Fatal("stone and unknown ids should not be replaceable")
	}
}

func TestReadTable(t *testing.T) {
	const report = `{
		"minecraft:air": {"states": [{"id": 0, "default": true}]},
		"minecraft:snow": {
			"properties": {"layers": ["1", "2"]},
			"states": [
				{"id": 3921, "default": true, "properties": {"layers": "1"}},
				{"id": 3922, "properties": {"layers": "2"}}
			]
		}
	}`
	tab, err := ReadTable(strings.NewReader(report))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tab.Len() != 3 {
		t.Fatalf("len = %d, want 3", tab.Len())
	}
	if id, _ := tab.StateFor("minecraft:snow", nil); id != 3921 {
		t.Fatalf("snow default = %d, want 3921", id)
	}
	if id, _ := tab.StateFor("minecraft:snow", map[string]string{"layers": "2"}); id != 3922 {
		t.Fatalf("snow layers=2 = %d, want 3922", id)
	}
	if !tab.IsReplaceable(3922) {
		t.Fatal("snow should be replaceable")
	}
}

package chunk

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"slices"
	"testing"

	"github.com/Tnze/go-mc/nbt"
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/strata/block"
)

func TestCoordsRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for range 1000 {
		pos := cube.Pos{r.Intn(1<<20) - 1<<19, r.Intn(Height), r.Intn(1<<20) - 1<<19}
		c := FromPos(pos)
		x, y, z := c.Relative(pos)
		if x < 0 || x >= Width || z < 0 || z >= Width {
			t.Fatalf("relative(%v) = %d, %d, %d, outside chunk %v", pos, x, y, z, c)
		}
		if got := c.Global(x, y, z); got != pos {
			t.Fatalf("global(relative(%v)) = %v", pos, got)
		}
	}
}

func TestFromBlockFloors(t *testing.T) {
	cases := []struct {
		x, z int
		want Coords
	}{
		{0, 0, Coords{0, 0}},
		{15, 16, Coords{0, 1}},
		{-1, -16, Coords{-1, -1}},
		{-17, 31, Coords{-2, 1}},
	}
	for _, c := range cases {
		if got := FromBlock(c.x, c.z); got != c.want {
			t.Errorf("FromBlock(%d, %d) = %v, want %v", c.x, c.z, got, c.want)
		}
	}
}

func TestVarInt(t *testing.T) {
	cases := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0}},
		{2, []byte{2}},
		{372, []byte{0xf4, 0x02}},
		{393716, []byte{0xf4, 0x83, 0x18}},
		{0xffffffff, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, c := range cases {
		got := AppendVarInt(nil, c.v)
		if !bytes.Equal(got, c.want) {
			t.Errorf("AppendVarInt(%d) = % x, want % x", c.v, got, c.want)
		}
		back, err := ReadVarInt(bytes.NewReader(got))
		if err != nil || back != c.v {
			t.Errorf("ReadVarInt(% x) = %d, %v", got, back, err)
		}
	}
}

func TestPaletteBits(t *testing.T) {
	p := NewPalette(0)
	prev := p.Bits()
	for n := 2; n <= 300; n++ {
		p.Add(uint16(n))
		b := p.Bits()
		want := uint8(MinPaletteBits)
		for 1<<want < n {
			want++
		}
		if b != want {
			t.Fatalf("%d entries: bits = %d, want %d", n, b, want)
		}
		if b < prev {
			t.Fatalf("%d entries: bits decreased from %d to %d", n, prev, b)
		}
		prev = b
	}
}

func TestPaletteStatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("State on missing index did not panic")
		}
	}()
	NewPalette(0).State(1)
}

func TestSectionGrowsPalette(t *testing.T) {
	s := NewSection(0)
	for i := range 17 {
		s.SetBlock(i%16, i/16, 0, uint16(i+1))
	}
	if s.Direct() {
		t.Fatal("section switched to direct mode early")
	}
	if got := s.States().Bits(); got != 5 {
		t.Fatalf("bits = %d, want 5 for 18 entries", got)
	}
	for i := range 17 {
		if got := s.Block(i%16, i/16, 0); got != uint16(i+1) {
			t.Fatalf("block %d = %d, want %d", i, got, i+1)
		}
	}
}

func TestSectionSwitchesToDirect(t *testing.T) {
	s := NewSection(0)
	want := make(map[[3]int]uint16)
	set := func(i int, id uint16) {
		pos := [3]int{i % 16, i / 256, (i / 16) % 16}
		s.SetBlock(pos[0], pos[1], pos[2], id)
		want[pos] = id
	}
	// Air plus 255 more ids fills the 8-bit palette exactly.
	for i := range 255 {
		set(i, uint16(1000+i))
	}
	if s.Direct() || s.Palette().Len() != 256 {
		t.Fatalf("direct = %v, palette = %d entries; want paletted with 256", s.Direct(), s.Palette().Len())
	}
	set(255, 5000)
	if !s.Direct() {
		t.Fatal("257th distinct id did not switch to direct mode")
	}
	if s.States().Bits() != GlobalBits {
		t.Fatalf("direct bits = %d, want %d", s.States().Bits(), GlobalBits)
	}
	set(256, 6000)
	set(0, 7)
	for pos, id := range want {
		if got := s.Block(pos[0], pos[1], pos[2]); got != id {
			t.Fatalf("block %v = %d, want %d", pos, got, id)
		}
	}
	if got := s.Block(15, 15, 15); got != 0 {
		t.Fatalf("untouched block = %d, want air", got)
	}
}

func TestSectionWire(t *testing.T) {
	b := NewSection(0).AppendWire(nil)
	if len(b) != 2+1+1+1+2+256*8 {
		t.Fatalf("wire length = %d", len(b))
	}
	if hint := binary.BigEndian.Uint16(b); hint != NonAirHint {
		t.Fatalf("hint = %d, want %d", hint, NonAirHint)
	}
	if !bytes.Equal(b[2:7], []byte{4, 1, 0, 0x80, 0x02}) {
		t.Fatalf("header = % x", b[2:7])
	}

	s := NewSection(0)
	for i := range 300 {
		s.SetBlock(i%16, i/256, (i/16)%16, uint16(i+1))
	}
	b = s.AppendWire(nil)
	if b[2] != GlobalBits {
		t.Fatalf("direct bits byte = %d, want %d", b[2], GlobalBits)
	}
	// Direct sections carry no palette: the word count follows immediately.
	n, err := ReadVarInt(bytes.NewReader(b[3:]))
	if err != nil || int(n) != len(s.States().Words()) {
		t.Fatalf("word count = %d, %v; want %d", n, err, len(s.States().Words()))
	}
}

func TestSectionWriteTo(t *testing.T) {
	s := NewSection(0)
	s.SetBlock(1, 2, 3, 9)
	var buf bytes.Buffer
	n, err := s.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if int(n) != buf.Len() || !bytes.Equal(buf.Bytes(), s.AppendWire(nil)) {
		t.Fatalf("WriteTo wrote %d bytes, buffer has %d", n, buf.Len())
	}
	prefix := []byte{0xff}
	if b := s.AppendWire(prefix); b[0] != 0xff || !bytes.Equal(b[1:], buf.Bytes()) {
		t.Fatal("AppendWire did not append after existing bytes")
	}
}

func TestDataBitmaskAndHeightMap(t *testing.T) {
	d := NewData(0)
	if d.Bitmask() != 0 {
		t.Fatalf("empty bitmask = %b", d.Bitmask())
	}
	d.SetBlock(0, 0, 0, 1)
	d.SetBlock(3, 70, 2, 1)
	if got, want := d.Bitmask(), uint16(1|1<<4); got != want {
		t.Fatalf("bitmask = %b, want %b", got, want)
	}
	hm := d.HeightMap()
	if hm.Bits() != 9 || hm.Len() != 256 {
		t.Fatalf("heightmap %d values at %d bits", hm.Len(), hm.Bits())
	}
	if got := hm.Get(0); got != 1 {
		t.Fatalf("height(0,0) = %d, want 1", got)
	}
	if got := hm.Get(3 | 2<<4); got != 71 {
		t.Fatalf("height(3,2) = %d, want 71", got)
	}
	if got := hm.Get(5); got != 0 {
		t.Fatalf("height(5,0) = %d, want 0", got)
	}
	if d.Block(0, -1, 0) != 0 || d.Block(0, 300, 0) != 0 {
		t.Fatal("out of column reads should be air")
	}
}

func TestPayload(t *testing.T) {
	d := NewData(0)
	d.SetBlock(1, 1, 1, 9)
	p, err := d.Payload(Coords{X: 3, Z: -4})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.X != 3 || p.Z != -4 || !p.FullChunk || p.Bitmask != 1 {
		t.Fatalf("payload header = %+v", p)
	}
	if len(p.Biomes) != BiomeCount {
		t.Fatalf("biomes = %d, want %d", len(p.Biomes), BiomeCount)
	}
	if !bytes.Equal(p.Data, d.Section(0).AppendWire(nil)) {
		t.Fatal("payload data differs from section wire form")
	}
	var hm heightMaps
	if err := nbt.Unmarshal(p.HeightMaps, &hm); err != nil {
		t.Fatalf("decode heightmap: %v", err)
	}
	if !slices.Equal(hm.MotionBlocking, d.HeightMap().Int64s()) {
		t.Fatal("heightmap payload differs")
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	reg := block.DefaultTable()
	d := NewData(0)
	for x := range 16 {
		for z := range 16 {
			d.SetBlock(x, 0, z, 33)
			d.SetBlock(x, 1, z, 10)
			d.SetBlock(x, 2, z, 9)
		}
	}
	d.SetBlock(4, 100, 4, 34)

	records, err := d.Records(reg)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 2 || records[0].Y != 0 || records[1].Y != 6 {
		t.Fatalf("records = %d, want sections 0 and 6", len(records))
	}
	back, unknown, err := FromRecords(reg, records)
	if err != nil || len(unknown) != 0 {
		t.Fatalf("from records: %v, unknown %v", err, unknown)
	}
	assertSameBlocks(t, d, back)
}

func TestRecordsCompactDirectSections(t *testing.T) {
	reg := block.NewTable()
	reg.Register(0, block.State{Name: block.AirName}, true)
	for i := range 400 {
		reg.Register(uint16(i+1), block.State{Name: "test:block", Properties: map[string]string{"n": string(rune('a'+i%26)) + string(rune('a'+i/26))}}, false)
	}
	d := NewData(0)
	for i := range 400 {
		d.SetBlock(i%16, i/256, (i/16)%16, uint16(i+1))
	}
	if !d.Section(0).Direct() {
		t.Fatal("expected a direct section")
	}
	records, err := d.Records(reg)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if n := len(records[0].Palette); n != 401 {
		t.Fatalf("compacted palette = %d entries, want 401", n)
	}
	back, _, err := FromRecords(reg, records)
	if err != nil {
		t.Fatalf("from records: %v", err)
	}
	if !back.Section(0).Direct() {
		t.Fatal("large palette should load as a direct section")
	}
	assertSameBlocks(t, d, back)
}

func TestFromRecordsUnknownAndMalformed(t *testing.T) {
	reg := block.DefaultTable()
	rec := SectionRecord{
		Y:       0,
		Palette: []block.State{{Name: block.AirName}, {Name: "mod:mystery"}},
		States:  make([]int64, 256),
	}
	rec.States[0] = 1
	d, unknown, err := FromRecords(reg, []SectionRecord{rec})
	if err != nil {
		t.Fatalf("from records: %v", err)
	}
	if len(unknown) != 1 || unknown[0].Name != "mod:mystery" {
		t.Fatalf("unknown = %v", unknown)
	}
	if d.Block(0, 0, 0) != 0 {
		t.Fatal("unknown state should load as air")
	}

	rec.States = rec.States[:10]
	if _, _, err := FromRecords(reg, []SectionRecord{rec}); err == nil {
		t.Fatal("short state array accepted")
	}
	rec.States = make([]int64, 256)
	rec.States[0] = 7
	if _, _, err := FromRecords(reg, []SectionRecord{rec}); err == nil {
		t.Fatal("index past palette accepted")
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := NewData(0)
	d.SetBlock(1, 2, 3, 1)
	c := d.Clone()
	c.SetBlock(1, 2, 3, 10)
	c.SetBlock(0, 200, 0, 1)
	if d.Block(1, 2, 3) != 1 || d.Section(12) != nil {
		t.Fatal("clone shares state with original")
	}
}

func assertSameBlocks(t *testing.T, want, got *Data) {
	t.Helper()
	if want.Bitmask() != got.Bitmask() {
		t.Fatalf("bitmask = %b, want %b", got.Bitmask(), want.Bitmask())
	}
	for y := range Height {
		for z := range Width {
			for x := range Width {
				if a, b := want.Block(x, y, z), got.Block(x, y, z); a != b {
					t.Fatalf("block (%d, %d, %d) = %d, want %d", x, y, z, b, a)
				}
			}
		}
	}
}

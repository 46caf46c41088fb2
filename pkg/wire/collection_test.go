package wire

import (
	"encoding/binary"
	"errors"
	"testing"
)

type testLevel struct {
	record  LevelRecord
	title   string
	objects []Object
}

// buildPayload assembles a complete payload for the given levels.
func buildPayload(t *testing.T, mode Mode, levels []testLevel) []byte {
	t.Helper()

	header := QueryHeader{
		IssuedAt:     "2024-01-01-12:00",
		Count:        uint32(len(levels)),
		Category:     CategoryDefault,
		Mode:         mode,
		CacheSeconds: 5,
		MaxPageSize:  500,
	}
	raw := header.Encode()
	for _, l := range levels {
		raw = append(raw, l.record.EncodeEntry()...)
	}
	for _, l := range levels {
		tiles := make([][]byte, TileRows)
		for r := range tiles {
			tiles[r] = make([]byte, TileColumns)
			tiles[r][0] = byte(r)
		}
		block, err := EncodeLevelBlock(EncodeLevelBody(l.title, tiles, l.objects), uint16(len(l.objects)))
		if err != nil {
			t.Fatalf("EncodeLevelBlock() error = %v", err)
		}
		raw = append(raw, block...)
	}
	return raw
}

func sampleLevels() []testLevel {
	return []testLevel{
		{
			record: LevelRecord{ID: 22715, AuthorID: 117031, Author: "Melancholy", PlusPlusCount: 12, Date: "2016-05-04-10:11"},
			title:  "untitled",
			objects: []Object{
				{Kind: 0, X: 10, Y: 12, Orientation: 0, Mode: 0},
				{Kind: 1, X: 20, Y: 22, Orientation: 2, Mode: 0},
			},
		},
		{
			record:  LevelRecord{ID: -5, AuthorID: 1, Author: "slomac", PlusPlusCount: -1, Date: "2015-06-02-00:00"},
			title:   "the hard one",
			objects: []Object{{Kind: 3, X: 1, Y: 2, Orientation: 4, Mode: 1}},
		},
	}
}

func TestLevelEntry_RoundTrip(t *testing.T) {
	for _, l := range sampleLevels() {
		got, err := DecodeLevelEntry(l.record.EncodeEntry())
		if err != nil {
			t.Fatalf("DecodeLevelEntry() error = %v", err)
		}
		if got.ID != l.record.ID || got.AuthorID != l.record.AuthorID || got.Author != l.record.Author ||
			got.PlusPlusCount != l.record.PlusPlusCount || got.Date != l.record.Date {
			t.Errorf("DecodeLevelEntry(EncodeEntry()) = %+v, want %+v", got, l.record)
		}
	}
}

func TestParse_FullPayload(t *testing.T) {
	levels := sampleLevels()
	raw := buildPayload(t, ModeSolo, levels)

	c, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !c.Complete() || c.Len() != len(levels) {
		t.Fatalf("Parse() decoded %d of %d levels", c.Len(), c.Header.Count)
	}

	for i, want := range levels {
		got := c.Levels[i]
		if got.ID != want.record.ID || got.Author != want.record.Author {
			t.Errorf("level %d = %d/%q, want %d/%q", i, got.ID, got.Author, want.record.ID, want.record.Author)
		}
		if got.Title != want.title {
			t.Errorf("level %d title = %q, want %q", i, got.Title, want.title)
		}
		if int(got.ObjectCount) != len(want.objects) || len(got.Objects) != len(want.objects) {
			t.Errorf("level %d objects = %d/%d, want %d", i, got.ObjectCount, len(got.Objects), len(want.objects))
		}
		for j, o := range want.objects {
			if got.Objects[j] != o {
				t.Errorf("level %d object %d = %+v, want %+v", i, j, got.Objects[j], o)
			}
		}
		if len(got.Tiles) != TileRows || len(got.Tiles[5]) != TileColumns || got.Tiles[5][0] != 5 {
			t.Errorf("level %d tile grid malformed", i)
		}
	}

	raw[60] ^= 0xff
	if c.Raw[60] == raw[60] {
		t.Error("collection shares its buffer with the caller")
	}
}

func TestParse_TruncatedBlockKeepsEarlierLevels(t *testing.T) {
	raw := buildPayload(t, ModeSolo, sampleLevels())
	truncated := raw[:len(raw)-3]

	c, err := Parse(truncated)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Parse() kept %d levels, want 1", c.Len())
	}
	if c.Complete() {
		t.Error("Complete() = true for truncated payload")
	}
	if c.Levels[0].Title != "untitled" {
		t.Errorf("first level title = %q", c.Levels[0].Title)
	}
}

func TestParse_CorruptBlockTruncates(t *testing.T) {
	raw := buildPayload(t, ModeSolo, sampleLevels())
	// First block starts right after the entry table.
	first := HeaderSize + 2*LevelEntrySize
	length := binary.LittleEndian.Uint32(raw[first:])
	raw[first+BlockPrefixSize] ^= 0xff

	c, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Parse() kept %d levels after corrupt first block (len %d)", c.Len(), length)
	}
}

func TestParse_MissingBodies(t *testing.T) {
	entries := func(n int) []byte {
		var b []byte
		for i := range n {
			b = append(b, LevelRecord{ID: uint32(i + 1), Author: "a"}.EncodeEntry()...)
		}
		return b
	}

	tests := []struct {
		name    string
		count   uint32
		entries int
	}{
		{"short entry table", 3, 1},
		{"two of three entries", 3, 2},
		{"full table without blocks", 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := QueryHeader{IssuedAt: "2024-01-01-12:00", Count: tt.count}
			raw := append(header.Encode(), entries(tt.entries)...)

			c, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if c.Len() != 0 {
				t.Errorf("Parse() kept %d body-less levels, want 0", c.Len())
			}
			if c.Complete() {
				t.Error("Complete() = true for a reply with no bodies")
			}
		})
	}
}

func TestDecodeCollection_Rejections(t *testing.T) {
	valid := buildPayload(t, ModeCoop, nil)
	wrongType := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(wrongType[24:], 1)

	tests := []struct {
		name    string
		raw     []byte
		mode    Mode
		wantErr error
		reason  string
	}{
		{"nil reply", nil, ModeSolo, ErrEmptyReply, "empty"},
		{"one byte short", valid[:HeaderSize-1], ModeCoop, ErrTooShort, "length"},
		{"wrong type", wrongType, ModeCoop, ErrInvalidType, "type"},
		{"wrong mode", valid, ModeRace, ErrModeMismatch, "mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeCollection(tt.raw, tt.mode)
			if c != nil {
				t.Error("DecodeCollection() returned a collection for invalid input")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeCollection() error = %v, want %v", err, tt.wantErr)
			}
			if got := Reason(err); got != tt.reason {
				t.Errorf("Reason() = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestDecodeCollection_ReportsTypeAndMode(t *testing.T) {
	raw := QueryHeader{Type: 1, Mode: ModeRace}.Encode()
	_, err := DecodeCollection(raw, ModeSolo)
	if !errors.Is(err, ErrInvalidType) || !errors.Is(err, ErrModeMismatch) {
		t.Errorf("DecodeCollection() error = %v, want both type and mode failures", err)
	}
}

func TestDecodeCollection_EmptyQueryIsValid(t *testing.T) {
	raw := QueryHeader{IssuedAt: "2024-01-01-12:00", Mode: ModeRace}.Encode()
	c, err := DecodeCollection(raw, ModeRace)
	if err != nil {
		t.Fatalf("DecodeCollection() error = %v", err)
	}
	if c.Len() != 0 || !c.Complete() {
		t.Errorf("empty query decoded as %d levels", c.Len())
	}
}

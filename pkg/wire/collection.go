package wire

import (
	"encoding/binary"
	"errors"
)

// LevelCollection is a decoded query payload. It owns a private copy of the
// raw bytes it was decoded from, which is what gets replayed to the client.
// A collection is never modified after decoding.
type LevelCollection struct {
	// Key is the normalized filter set that produced the payload.
	Key    string        `json:"key"`
	Header QueryHeader   `json:"header"`
	Levels []LevelRecord `json:"levels"`
	Raw    []byte        `json:"-"`
}

// Len returns the number of levels that were fully decoded.
func (c *LevelCollection) Len() int {
	return len(c.Levels)
}

// Complete reports whether every level announced by the header was decoded.
func (c *LevelCollection) Complete() bool {
	return uint32(len(c.Levels)) == c.Header.Count
}

// Parse decodes a payload without checking it against a request.
//
// It fails only when the header is unusable (too short, or not a level
// list). An entry table shorter than the header count yields no levels. A
// missing or corrupt block truncates the collection at that level and keeps
// what was decoded before it.
func Parse(raw []byte) (*LevelCollection, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyReply
	}
	header, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if header.Type != TypeLevelList {
		return nil, typeError(header.Type)
	}

	owned := make([]byte, len(raw))
	copy(owned, raw)
	c := &LevelCollection{Header: header, Raw: owned}
	c.Levels = decodeLevels(owned, header.Count)
	return c, nil
}

// DecodeCollection decodes a payload and checks it is fit to answer a
// client request made in the given mode. Every failed check is reported.
func DecodeCollection(raw []byte, mode Mode) (*LevelCollection, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyReply
	}
	header, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	var errs []error
	if header.Type != TypeLevelList {
		errs = append(errs, typeError(header.Type))
	}
	if header.Mode != mode {
		errs = append(errs, modeError(header.Mode, mode))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return Parse(raw)
}

// decodeLevels reads the entry table and then one block per entry. A record
// whose block is missing or corrupt is dropped with every record after it,
// so a short entry table yields no records at all.
func decodeLevels(raw []byte, count uint32) []LevelRecord {
	if uint64(len(raw)-HeaderSize) < uint64(count)*LevelEntrySize {
		return []LevelRecord{}
	}

	levels := make([]LevelRecord, 0, count)
	offset := HeaderSize
	for range count {
		level, err := DecodeLevelEntry(raw[offset:])
		if err != nil {
			return levels[:0]
		}
		levels = append(levels, level)
		offset += LevelEntrySize
	}

	for i := range levels {
		if len(raw)-offset < BlockPrefixSize {
			return levels[:i]
		}
		length := int(binary.LittleEndian.Uint32(raw[offset:]))
		if length < BlockPrefixSize || length > len(raw)-offset {
			return levels[:i]
		}
		body, err := inflate(raw[offset+BlockPrefixSize : offset+length])
		if err != nil {
			return levels[:i]
		}
		if err := levels[i].decodeBody(body); err != nil {
			return levels[:i]
		}
		levels[i].ObjectCount = binary.LittleEndian.Uint16(raw[offset+4:])
		offset += length
	}
	return levels
}

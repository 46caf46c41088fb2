package wire

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Sizes of the fixed parts of a payload.
const (
	HeaderSize     = 48
	TimestampSize  = 16
	LevelEntrySize = 44
	AuthorSize     = 16
)

// Header field offsets.
const (
	offCount        = 16
	offPage         = 20
	offType         = 24
	offCategory     = 28
	offMode         = 32
	offCacheSeconds = 36
	offMaxPageSize  = 40
	offReserved     = 44
)

// Known header values.
const (
	// TypeLevelList is the only payload type the client accepts here.
	TypeLevelList uint32 = 0

	// CategorySearch is the category the client uses for free-text searches.
	CategorySearch uint32 = 36

	// CategoryDefault is used when a request carries no category at all.
	CategoryDefault uint32 = 10

	DefaultCacheSeconds uint32 = 5
	DefaultMaxPageSize  uint32 = 500
)

// Mode is the game mode a query is made for.
type Mode uint32

const (
	ModeSolo Mode = 0
	ModeCoop Mode = 1
	ModeRace Mode = 2
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case ModeSolo:
		return "solo"
	case ModeCoop:
		return "coop"
	case ModeRace:
		return "race"
	default:
		return fmt.Sprintf("mode(%d)", uint32(m))
	}
}

// QueryHeader is the fixed 48-byte header of every query payload.
// Count must equal the number of level entries that follow.
type QueryHeader struct {
	IssuedAt     string `json:"issued_at"`
	Count        uint32 `json:"count"`
	Page         uint32 `json:"page"`
	Type         uint32 `json:"type"`
	Category     uint32 `json:"category"`
	Mode         Mode   `json:"mode"`
	CacheSeconds uint32 `json:"cache_seconds"`
	MaxPageSize  uint32 `json:"max_page_size"`
	Reserved     uint32 `json:"reserved"`
}

// Encode serializes the header into its 48-byte wire form.
func (h QueryHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	putText(buf[:TimestampSize], h.IssuedAt)
	binary.LittleEndian.PutUint32(buf[offCount:], h.Count)
	binary.LittleEndian.PutUint32(buf[offPage:], h.Page)
	binary.LittleEndian.PutUint32(buf[offType:], h.Type)
	binary.LittleEndian.PutUint32(buf[offCategory:], h.Category)
	binary.LittleEndian.PutUint32(buf[offMode:], uint32(h.Mode))
	binary.LittleEndian.PutUint32(buf[offCacheSeconds:], h.CacheSeconds)
	binary.LittleEndian.PutUint32(buf[offMaxPageSize:], h.MaxPageSize)
	binary.LittleEndian.PutUint32(buf[offReserved:], h.Reserved)
	return buf
}

// Time parses IssuedAt.
func (h QueryHeader) Time() (time.Time, error) {
	return ParseTimestamp(h.IssuedAt)
}

// DecodeHeader reads a QueryHeader from the first 48 bytes of raw.
func DecodeHeader(raw []byte) (QueryHeader, error) {
	if len(raw) < HeaderSize {
		return QueryHeader{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(raw))
	}
	return QueryHeader{
		IssuedAt:     rawText(raw[:TimestampSize]),
		Count:        binary.LittleEndian.Uint32(raw[offCount:]),
		Page:         binary.LittleEndian.Uint32(raw[offPage:]),
		Type:         binary.LittleEndian.Uint32(raw[offType:]),
		Category:     binary.LittleEndian.Uint32(raw[offCategory:]),
		Mode:         Mode(binary.LittleEndian.Uint32(raw[offMode:])),
		CacheSeconds: binary.LittleEndian.Uint32(raw[offCacheSeconds:]),
		MaxPageSize:  binary.LittleEndian.Uint32(raw[offMaxPageSize:]),
		Reserved:     binary.LittleEndian.Uint32(raw[offReserved:]),
	}, nil
}

// EncodeEmptyQuery builds a header-only payload with no levels. It is what
// the client receives whenever no valid backend data is available, so that
// it shows "zero results" instead of a protocol error.
func EncodeEmptyQuery(category uint32, mode Mode, now time.Time) []byte {
	return QueryHeader{
		IssuedAt:     FormatTimestamp(now),
		Type:         TypeLevelList,
		Category:     category,
		Mode:         mode,
		CacheSeconds: DefaultCacheSeconds,
		MaxPageSize:  DefaultMaxPageSize,
	}.Encode()
}

// RewriteForPage returns a copy of raw with the page and category fields
// replaced. No other byte changes. The backend does not know which page or
// tab the client asked for, so these are patched in before replying.
func RewriteForPage(raw []byte, page, category uint32) []byte {
	out := make([]byte, len(raw))
	copy(out, raw)
	if len(out) < HeaderSize {
		return out
	}
	binary.LittleEndian.PutUint32(out[offPage:], page)
	binary.LittleEndian.PutUint32(out[offCategory:], category)
	return out
}

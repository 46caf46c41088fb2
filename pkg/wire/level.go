package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Level body layout, after decompression.
const (
	BlockPrefixSize = 6

	TitleOffset   = 30
	TitleEnd      = 158
	TilesOffset   = 176
	TilesEnd      = 1142
	ObjectsOffset = 1222

	TileColumns = 42
	TileRows    = (TilesEnd - TilesOffset) / TileColumns
	ObjectSize  = 5
)

// Object is one 5-byte entity descriptor of a level.
type Object struct {
	Kind        uint8 `json:"kind"`
	X           uint8 `json:"x"`
	Y           uint8 `json:"y"`
	Orientation uint8 `json:"orientation"`
	Mode        uint8 `json:"mode"`
}

// LevelRecord is one userlevel: the 44-byte entry from the header section,
// plus the fields sliced out of its decompressed data block.
type LevelRecord struct {
	ID            int32  `json:"id"`
	AuthorID      int32  `json:"author_id"`
	Author        string `json:"author"`
	PlusPlusCount int32  `json:"plus_plus"`
	Date          string `json:"date"`

	ObjectCount uint16   `json:"object_count"`
	Title       string   `json:"title"`
	Tiles       [][]byte `json:"tiles,omitempty"`
	Objects     []Object `json:"objects,omitempty"`
}

// EncodeEntry serializes the 44-byte entry part of the record.
func (l LevelRecord) EncodeEntry() []byte {
	buf := make([]byte, LevelEntrySize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(l.ID))
	binary.LittleEndian.PutUint32(buf[4:], uint32(l.AuthorID))
	putText(buf[8:8+AuthorSize], l.Author)
	binary.LittleEndian.PutUint32(buf[24:], uint32(l.PlusPlusCount))
	putText(buf[28:28+TimestampSize], l.Date)
	return buf
}

// DecodeLevelEntry reads the 44-byte entry at the start of raw.
func DecodeLevelEntry(raw []byte) (LevelRecord, error) {
	if len(raw) < LevelEntrySize {
		return LevelRecord{}, fmt.Errorf("%w: level entry has %d bytes", ErrTooShort, len(raw))
	}
	return LevelRecord{
		ID:            int32(binary.LittleEndian.Uint32(raw[0:])),
		AuthorID:      int32(binary.LittleEndian.Uint32(raw[4:])),
		Author:        SanitizeText(raw[8 : 8+AuthorSize]),
		PlusPlusCount: int32(binary.LittleEndian.Uint32(raw[24:])),
		Date:          rawText(raw[28 : 28+TimestampSize]),
	}, nil
}

// decodeBody fills the map fields from a decompressed level body.
func (l *LevelRecord) decodeBody(body []byte) error {
	if len(body) < ObjectsOffset {
		return fmt.Errorf("%w: level body has %d bytes", ErrTooShort, len(body))
	}
	l.Title = SanitizeText(body[TitleOffset:TitleEnd])

	l.Tiles = make([][]byte, 0, TileRows)
	for off := TilesOffset; off+TileColumns <= TilesEnd; off += TileColumns {
		row := make([]byte, TileColumns)
		copy(row, body[off:off+TileColumns])
		l.Tiles = append(l.Tiles, row)
	}

	objects := body[ObjectsOffset:]
	l.Objects = make([]Object, 0, len(objects)/ObjectSize)
	for off := 0; off+ObjectSize <= len(objects); off += ObjectSize {
		o := objects[off : off+ObjectSize]
		l.Objects = append(l.Objects, Object{Kind: o[0], X: o[1], Y: o[2], Orientation: o[3], Mode: o[4]})
	}
	return nil
}

// EncodeLevelBody lays out an uncompressed level body. Tile rows beyond the
// grid and bytes beyond a row are ignored.
func EncodeLevelBody(title string, tiles [][]byte, objects []Object) []byte {
	body := make([]byte, ObjectsOffset+len(objects)*ObjectSize)
	putText(body[TitleOffset:TitleEnd], title)
	for r, row := range tiles {
		if r >= TileRows {
			break
		}
		off := TilesOffset + r*TileColumns
		copy(body[off:off+TileColumns], row)
	}
	for i, o := range objects {
		off := ObjectsOffset + i*ObjectSize
		body[off], body[off+1], body[off+2], body[off+3], body[off+4] = o.Kind, o.X, o.Y, o.Orientation, o.Mode
	}
	return body
}

// EncodeLevelBlock compresses body and prefixes it with the block length
// and object count.
func EncodeLevelBlock(body []byte, objectCount uint16) ([]byte, error) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("compress level body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress level body: %w", err)
	}

	block := make([]byte, BlockPrefixSize, BlockPrefixSize+compressed.Len())
	binary.LittleEndian.PutUint32(block[0:], uint32(BlockPrefixSize+compressed.Len()))
	binary.LittleEndian.PutUint16(block[4:], objectCount)
	return append(block, compressed.Bytes()...), nil
}

func inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

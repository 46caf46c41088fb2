// Package wire implements the binary userlevel query payload spoken by the
// game server's "list levels" endpoints.
//
// A payload is a fixed 48-byte QueryHeader, followed by Count fixed 44-byte
// level entries, followed by one variable-length data block per level. Every
// block is prefixed by its total length (4 bytes) and object count (2 bytes),
// and its remaining bytes are a zlib stream holding the level body:
//
//	offset   size  field
//	0        16    issued-at timestamp (YYYY-MM-DD-HH:MM)
//	16       4     level count
//	20       4     page
//	24       4     type (0 = level list)
//	28       4     category (tab / quick type)
//	32       4     mode (0 solo, 1 coop, 2 race)
//	36       4     cache duration in seconds
//	40       4     max page size
//	44       4     reserved
//
// All integers are little-endian. The client firmware is not under our
// control, so widths and byte order must stay bit-identical.
//
// Functions in this package do no I/O. Decoding never mutates its input and
// RewriteForPage returns a fresh buffer, so a payload held by the cache can be
// shared across requests.
package wire

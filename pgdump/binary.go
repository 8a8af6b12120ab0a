package pgdump

import "encoding/binary"

// Little-endian field readers shared by every on-disk struct decoder in
// this package: pages, tuples, varlena headers, numeric digits, WAL
// records all share PostgreSQL's native byte order.

func u16(data []byte, off int) uint16 { return binary.LittleEndian.Uint16(data[off:]) }
func u32(data []byte, off int) uint32 { return binary.LittleEndian.Uint32(data[off:]) }
func u64(data []byte, off int) uint64 { return binary.LittleEndian.Uint64(data[off:]) }

func i16(data []byte, off int) int16 { return int16(u16(data, off)) }
func i32(data []byte, off int) int32 { return int32(u32(data, off)) }
func i64(data []byte, off int) int64 { return int64(u64(data, off)) }

// cstring reads a NUL-terminated string, stopping at the first zero byte
// or maxLen, whichever comes first.
func cstring(data []byte, maxLen int) string {
	for i := 0; i < len(data) && i < maxLen; i++ {
		if data[i] == 0 {
			return string(data[:i])
		}
	}
	if maxLen < len(data) {
		return string(data[:maxLen])
	}
	return string(data)
}

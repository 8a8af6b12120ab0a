package pgdump

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// TOASTPointer mirrors varatt_external: the 18-byte body of an external
// (on-disk) TOAST pointer, plus the 1-byte tag that precedes it.
type TOASTPointer struct {
	RawSize           uint32
	ExtSize           uint32
	ValueID           uint32
	ToastRelID        uint32
	IsCompressed      bool
	CompressionMethod int
}

// TOASTChunk is one row of a TOAST table: chunk_id, chunk_seq, chunk_data.
type TOASTChunk struct {
	ChunkID  uint32
	ChunkSeq int32
	Data     []byte
}

const (
	toastTagOnDisk           = 0x01
	toastTagCompressedOnDisk = 0x02
	toastTagCompressedAlt    = 0x12
)

// ParseTOASTPointer decodes an external varlena pointer's body (the
// bytes after its 1-byte tag, as returned by ReadVarlena for the
// varlenaExternal shape).
func ParseTOASTPointer(data []byte) *TOASTPointer {
	if len(data) < 19 {
		return nil
	}
	tag := data[0]
	if tag != toastTagOnDisk && tag != toastTagCompressedOnDisk && tag != toastTagCompressedAlt {
		return nil
	}

	body := data[1:19]
	rawSizeField := binary.LittleEndian.Uint32(body[0:4])
	return &TOASTPointer{
		IsCompressed:      tag == toastTagCompressedOnDisk || tag == toastTagCompressedAlt,
		RawSize:           rawSizeField & 0x3FFFFFFF,
		CompressionMethod: int(rawSizeField >> 30),
		ExtSize:           binary.LittleEndian.Uint32(body[4:8]),
		ValueID:           binary.LittleEndian.Uint32(body[8:12]),
		ToastRelID:        binary.LittleEndian.Uint32(body[12:16]),
	}
}

// IsTOASTPointer reports whether data's leading byte is one of the
// recognized external-pointer tags.
func IsTOASTPointer(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	switch data[0] {
	case toastTagOnDisk, toastTagCompressedOnDisk, toastTagCompressedAlt:
		return true
	default:
		return false
	}
}

// ReadTOASTTable decodes every row of a TOAST table file into chunks.
func ReadTOASTTable(data []byte) []TOASTChunk {
	var chunks []TOASTChunk
	for _, entry := range ReadTuples(data, true) {
		tuple := entry.Tuple
		if tuple == nil || len(tuple.Data) < 8 {
			continue
		}

		c := newCursor(tuple.Data)
		idBytes, err := c.take(4)
		if err != nil {
			continue
		}
		seqBytes, err := c.take(4)
		if err != nil {
			continue
		}
		if err := c.alignTo(4); err != nil {
			continue
		}
		if c.available() == 0 {
			continue
		}
		consumed, v, err := ReadVarlena(c.buf[c.pos:])
		if err != nil {
			continue
		}
		c.pos += consumed

		chunks = append(chunks, TOASTChunk{
			ChunkID:  u32(idBytes, 0),
			ChunkSeq: i32(seqBytes, 0),
			Data:     v.Payload,
		})
	}
	return chunks
}

// ToastIndex groups a TOAST table's chunks by value OID, once per scan,
// so reassembly never re-sorts the whole chunk list per lookup. A value
// OID can map to more than one chunk group: PostgreSQL reuses OIDs
// across a TOAST table's lifetime, so a recovery scan walking multiple
// page generations may see two distinct chunk sequences sharing one
// chunk_id. Groups are tried most-recently-built first.
type ToastIndex struct {
	groups map[uint32][][]TOASTChunk
}

// BuildTOASTIndex groups and orders a TOAST table's chunks by value OID,
// splitting a value's chunks into separate groups wherever a chunk_seq
// repeats (a new generation reusing the same chunk_id): the n-th chunk
// read with a given chunk_seq belongs to the n-th generation.
func BuildTOASTIndex(chunks []TOASTChunk) *ToastIndex {
	byValue := make(map[uint32][]TOASTChunk)
	for _, c := range chunks {
		byValue[c.ChunkID] = append(byValue[c.ChunkID], c)
	}

	idx := &ToastIndex{groups: make(map[uint32][][]TOASTChunk, len(byValue))}
	for valueID, cs := range byValue {
		var groups [][]TOASTChunk
		seen := make(map[int32]int)
		for _, c := range cs {
			gen := seen[c.ChunkSeq]
			seen[c.ChunkSeq]++
			if gen == len(groups) {
				groups = append(groups, nil)
			}
			groups[gen] = append(groups[gen], c)
		}
		for _, g := range groups {
			sort.Slice(g, func(i, j int) bool { return g[i].ChunkSeq < g[j].ChunkSeq })
		}
		for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
			groups[i], groups[j] = groups[j], groups[i]
		}
		idx.groups[valueID] = groups
	}
	return idx
}

// Reassemble resolves ptr against the index, trying each candidate
// chunk group in order until one produces exactly ptr.ExtSize bytes of
// (still possibly compressed) chunk data.
func (idx *ToastIndex) Reassemble(ptr *TOASTPointer) ([]byte, error) {
	if ptr == nil {
		return nil, newErr(FormatInvalid, "nil toast pointer")
	}
	groups := idx.groups[ptr.ValueID]
	if len(groups) == 0 {
		return nil, newErr(AssemblyFailed, "no toast chunks found for value")
	}

	var lastErr error
	for _, g := range groups {
		data, err := reassembleGroup(g, ptr)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, wrapErr(AssemblyFailed, lastErr, "no chunk group matched the pointer's external size")
}

func reassembleGroup(chunks []TOASTChunk, ptr *TOASTPointer) ([]byte, error) {
	var buf bytes.Buffer
	var expectedSeq int32
	for _, c := range chunks {
		if c.ChunkSeq != expectedSeq {
			return nil, newErr(AssemblyFailed, "toast chunk sequence has a gap")
		}
		buf.Write(c.Data)
		expectedSeq++
	}
	data := buf.Bytes()

	if uint32(len(data)) != ptr.ExtSize {
		return nil, newErr(AssemblyFailed, "assembled size does not match pointer external_size")
	}

	if !ptr.IsCompressed {
		return data, nil
	}

	switch ptr.CompressionMethod {
	case toastCompressLZ4:
		return decompressLZ4Block(data, int(ptr.RawSize))
	default:
		return decompressPGLZ(data, int(ptr.RawSize))
	}
}

// ReassembleTOAST is the convenience form of Reassemble for callers that
// haven't built a persistent index (a one-off lookup from a standalone
// chunk list, e.g. in tests).
func ReassembleTOAST(chunks []TOASTChunk, valueID uint32, ptr *TOASTPointer) []byte {
	idx := BuildTOASTIndex(chunks)
	data, err := idx.Reassemble(ptr)
	if err != nil {
		return nil
	}
	return data
}

// TOASTReader caches one data directory's worth of TOAST tables by
// relation OID, building an index per table the first time it's needed.
type TOASTReader struct {
	indexes map[uint32]*ToastIndex
}

// NewTOASTReader returns an empty TOAST reader; callers populate it with
// LoadTOASTTable as each TOAST relation file is read off disk.
func NewTOASTReader() *TOASTReader {
	return &TOASTReader{indexes: make(map[uint32]*ToastIndex)}
}

// LoadTOASTTable indexes one TOAST relation's chunk data.
func (r *TOASTReader) LoadTOASTTable(toastRelID uint32, data []byte) {
	r.indexes[toastRelID] = BuildTOASTIndex(ReadTOASTTable(data))
}

// Resolve implements ToastResolver against whatever tables have been
// loaded via LoadTOASTTable.
func (r *TOASTReader) Resolve(ptr *TOASTPointer) ([]byte, error) {
	idx, ok := r.indexes[ptr.ToastRelID]
	if !ok {
		return nil, newErr(AssemblyFailed, "toast relation not loaded into reader")
	}
	return idx.Reassemble(ptr)
}

package pgdump

import "testing"

// === Decompression Tests ===

func TestDecompressLZ4BlockEmpty(t *testing.T) {
	_, err := decompressLZ4Block([]byte{}, 0)
	if err == nil {
		t.Error("Expected error for empty LZ4 block")
	}
}

func TestDecompressPGLZShort(t *testing.T) {
	_, err := decompressPGLZ([]byte{}, 0)
	if err == nil {
		t.Error("Expected error for empty data")
	}
}

func TestDecompressPGLZNegativeRawSize(t *testing.T) {
	_, err := decompressPGLZ([]byte{0x00}, -1)
	if err == nil {
		t.Error("Expected error for negative raw size")
	}
}

func TestDecompressPGLZLiterals(t *testing.T) {
	// A single control byte of 0 means all 8 following items are literal
	// bytes; rawSize=3 stops after the third.
	src := []byte{0x00, 'a', 'b', 'c'}
	out, err := decompressPGLZ(src, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "abc" {
		t.Errorf("decompressPGLZ literals = %q, want %q", out, "abc")
	}
}

// === Varlena Tests ===

func TestClassifyVarlenaShapes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want varlenaShape
	}{
		{"1-byte short", []byte{0x03}, varlenaShort1B},
		{"4-byte compressed", []byte{0x02, 0x00, 0x00, 0x00, 0, 0, 0, 0}, varlenaCompressed4B},
		{"4-byte uncompressed", []byte{0x00, 0x00, 0x00, 0x00}, varlenaUncompressed4B},
		{"external (1-byte va_tag)", []byte{0x01, 0x00, 0x00, 0x00}, varlenaExternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, err := classifyVarlena(tt.data)
			if err != nil {
				t.Fatalf("classifyVarlena: %v", err)
			}
			if shape != tt.want {
				t.Errorf("classifyVarlena(%q) = %v, want %v", tt.data, shape, tt.want)
			}
		})
	}
}

func TestReadVarlenaShortPayload(t *testing.T) {
	// 1-byte header, low bit set, remaining 7 bits = total length
	// including the header byte itself: 1 header + 3 payload = 4.
	data := []byte{(4 << 1) | 0x01, 'x', 'y', 'z'}
	consumed, v, err := ReadVarlena(data)
	if err != nil {
		t.Fatalf("ReadVarlena: %v", err)
	}
	if consumed != 4 {
		t.Errorf("consumed = %d, want 4", consumed)
	}
	if string(v.Payload) != "xyz" {
		t.Errorf("payload = %q, want xyz", v.Payload)
	}
}

func TestReadVarlenaUncompressed(t *testing.T) {
	// 4-byte header, low 2 bits clear, length field in top 30 bits =
	// total length (4-byte header + 2-byte payload) << 2.
	total := uint32(6)
	data := []byte{byte(total << 2), byte(total << 2 >> 8), byte(total << 2 >> 16), byte(total << 2 >> 24), 'h', 'i'}
	consumed, v, err := ReadVarlena(data)
	if err != nil {
		t.Fatalf("ReadVarlena: %v", err)
	}
	if consumed != 6 {
		t.Errorf("consumed = %d, want 6", consumed)
	}
	if string(v.Payload) != "hi" {
		t.Errorf("payload = %q, want hi", v.Payload)
	}
}

// === TOAST Tests ===

func TestNewTOASTReader(t *testing.T) {
	reader := NewTOASTReader()
	if reader == nil {
		t.Fatal("NewTOASTReader returned nil")
	}
	if reader.indexes == nil {
		t.Error("indexes map not initialized")
	}
}

func TestBuildTOASTIndexOrdersChunksBySequence(t *testing.T) {
	chunks := []TOASTChunk{
		{ChunkID: 1, ChunkSeq: 1, Data: []byte("b")},
		{ChunkID: 1, ChunkSeq: 0, Data: []byte("a")},
		{ChunkID: 1, ChunkSeq: 2, Data: []byte("c")},
	}
	idx := BuildTOASTIndex(chunks)
	if idx == nil {
		t.Fatal("BuildTOASTIndex returned nil")
	}

	ptr := &TOASTPointer{ValueID: 1, RawSize: 3, ExtSize: 3}
	out, err := idx.Reassemble(ptr)
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	if string(out) != "abc" {
		t.Errorf("Reassemble = %q, want abc", out)
	}
}

func TestBuildTOASTIndexSplitsGenerations(t *testing.T) {
	// Two generations of the same chunk_id: seq 0,1 then seq 0,1 again
	// (an OID reused after the first value was vacuumed away).
	chunks := []TOASTChunk{
		{ChunkID: 7, ChunkSeq: 0, Data: []byte("A")},
		{ChunkID: 7, ChunkSeq: 1, Data: []byte("B")},
		{ChunkID: 7, ChunkSeq: 0, Data: []byte("x")},
		{ChunkID: 7, ChunkSeq: 1, Data: []byte("y")},
	}
	idx := BuildTOASTIndex(chunks)

	// Most recently built generation is tried first.
	ptr := &TOASTPointer{ValueID: 7, RawSize: 2, ExtSize: 2}
	out, err := idx.Reassemble(ptr)
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	if string(out) != "xy" {
		t.Errorf("Reassemble = %q, want xy (latest generation)", out)
	}
}

func TestIsTOASTPointer(t *testing.T) {
	if IsTOASTPointer([]byte{0x00}) {
		t.Error("single byte should not classify as a TOAST pointer")
	}
	if !IsTOASTPointer([]byte{0x01, 0x00}) {
		t.Error("tag 0x01 should classify as a TOAST pointer")
	}
}

// === RelMap Tests ===

func TestParseRelMapFile(t *testing.T) {
	data := make([]byte, 512)

	data[0] = 0x17
	data[1] = 0x27
	data[2] = 0x59
	data[3] = 0x00

	data[4] = 0x02
	data[5] = 0x00
	data[6] = 0x00
	data[7] = 0x00

	data[8] = 0xEE
	data[9] = 0x04
	data[10] = 0x00
	data[11] = 0x00
	data[12] = 0xEE
	data[13] = 0x04
	data[14] = 0x00
	data[15] = 0x00

	data[16] = 0xEB
	data[17] = 0x04
	data[18] = 0x00
	data[19] = 0x00
	data[20] = 0xEB
	data[21] = 0x04
	data[22] = 0x00
	data[23] = 0x00

	rm, err := ParseRelMapFile(data)
	if err != nil {
		t.Fatalf("ParseRelMapFile failed: %v", err)
	}

	if rm.Magic != RelMapMagic {
		t.Errorf("Magic = 0x%X, want 0x%X", rm.Magic, RelMapMagic)
	}
	if rm.NumMappings != 2 {
		t.Errorf("NumMappings = %d, want 2", rm.NumMappings)
	}
	if len(rm.Mappings) != 2 {
		t.Errorf("len(Mappings) = %d, want 2", len(rm.Mappings))
	}
}

func TestParseRelMapFileTooSmall(t *testing.T) {
	_, err := ParseRelMapFile(make([]byte, 100))
	if err == nil {
		t.Error("Expected error for small file")
	}
}

func TestParseRelMapFileInvalidMagic(t *testing.T) {
	data := make([]byte, 512)
	data[0] = 0xFF
	_, err := ParseRelMapFile(data)
	if err == nil {
		t.Error("Expected error for invalid magic")
	}
}

func TestRelMapGetFilenode(t *testing.T) {
	rm := &RelMapFile{
		Mappings: []RelMapping{
			{OID: 1262, Filenode: 1262},
			{OID: 1259, Filenode: 16384},
		},
	}

	if fn := rm.GetFilenode(1259); fn != 16384 {
		t.Errorf("GetFilenode(1259) = %d, want 16384", fn)
	}
	if fn := rm.GetFilenode(9999); fn != 0 {
		t.Errorf("GetFilenode(9999) = %d, want 0", fn)
	}
}

func TestRelMapGetOID(t *testing.T) {
	rm := &RelMapFile{
		Mappings: []RelMapping{
			{OID: 1262, Filenode: 1262},
			{OID: 1259, Filenode: 16384},
		},
	}

	if oid := rm.GetOID(16384); oid != 1259 {
		t.Errorf("GetOID(16384) = %d, want 1259", oid)
	}
}

func TestGetCatalogName(t *testing.T) {
	tests := []struct {
		oid  uint32
		want string
	}{
		{1262, "pg_database"},
		{1259, "pg_class"},
		{1249, "pg_attribute"},
		{1260, "pg_authid"},
		{9999, ""},
	}

	for _, tt := range tests {
		got := GetCatalogName(tt.oid)
		if got != tt.want {
			t.Errorf("GetCatalogName(%d) = %q, want %q", tt.oid, got, tt.want)
		}
	}
}

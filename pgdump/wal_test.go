package pgdump

import "testing"

func TestParseWALPageHeaderShort(t *testing.T) {
	data := make([]byte, ShortPageHeaderSize)
	data[0] = byte(WALMagic16 & 0xFF)
	data[1] = byte(WALMagic16 >> 8)
	u32put := func(off int, v uint32) {
		data[off] = byte(v)
		data[off+1] = byte(v >> 8)
		data[off+2] = byte(v >> 16)
		data[off+3] = byte(v >> 24)
	}
	u32put(4, 1) // timeline

	h := parseWALPageHeader(data)
	if h == nil {
		t.Fatal("parseWALPageHeader returned nil")
	}
	if h.Magic != WALMagic16 {
		t.Errorf("Magic = 0x%X, want 0x%X", h.Magic, WALMagic16)
	}
	if isLongHeader(h) {
		t.Error("expected a short header")
	}
	if walPageHeaderSize(h) != ShortPageHeaderSize {
		t.Errorf("walPageHeaderSize = %d, want %d", walPageHeaderSize(h), ShortPageHeaderSize)
	}
}

func TestIsValidWALMagic(t *testing.T) {
	if !isValidWALMagic(WALMagic16) {
		t.Error("WALMagic16 should be valid")
	}
	if isValidWALMagic(0xDEAD) {
		t.Error("0xDEAD should not be a valid WAL magic")
	}
}

func TestFormatLSN(t *testing.T) {
	got := FormatLSN(0x1<<32 | 0xABCDEF)
	want := "1/ABCDEF"
	if got != want {
		t.Errorf("FormatLSN = %q, want %q", got, want)
	}
}

func TestAlign8(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0}, {1, 8}, {7, 8}, {8, 8}, {9, 16},
	}
	for _, tt := range tests {
		if got := align8(tt.in); got != tt.want {
			t.Errorf("align8(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// === Full-page image reconstruction ===

func TestReconstructPageImageNoHole(t *testing.T) {
	plain := make([]byte, WALPageSize)
	for i := range plain {
		plain[i] = byte(i)
	}
	img, err := reconstructPageImage(plain, 0, 0, 0)
	if err != nil {
		t.Fatalf("reconstructPageImage: %v", err)
	}
	if len(img) != WALPageSize {
		t.Fatalf("len(img) = %d, want %d", len(img), WALPageSize)
	}
	if img[0] != 0 || img[WALPageSize-1] != byte((WALPageSize-1)&0xFF) {
		t.Error("reconstructed page content mismatch")
	}
}

func TestReconstructPageImageWithHole(t *testing.T) {
	holeOffset := uint16(100)
	holeLength := uint16(50)
	rawSize := WALPageSize - int(holeLength)
	raw := make([]byte, rawSize)
	for i := range raw {
		raw[i] = byte(i + 1)
	}

	img, err := reconstructPageImage(raw, 0, holeOffset, holeLength)
	if err != nil {
		t.Fatalf("reconstructPageImage: %v", err)
	}
	if len(img) != WALPageSize {
		t.Fatalf("len(img) = %d, want %d", len(img), WALPageSize)
	}
	for i := int(holeOffset); i < int(holeOffset)+int(holeLength); i++ {
		if img[i] != 0 {
			t.Errorf("img[%d] = %d, want 0 (hole region)", i, img[i])
			break
		}
	}
	if img[0] != raw[0] {
		t.Error("bytes before the hole were not preserved")
	}
	if img[int(holeOffset)+int(holeLength)] != raw[holeOffset] {
		t.Error("bytes after the hole were not preserved")
	}
}

// === FPW cache ===

func TestFPWCachePutGet(t *testing.T) {
	cache := NewFPWCache()
	node := RelFileNode{SpcOID: 1, DbOID: 2, RelOID: 3}
	page := []byte{1, 2, 3}

	if _, ok := cache.Get(node, 0, 5); ok {
		t.Error("expected no cached image before Put")
	}
	cache.Put(node, 0, 5, page)
	got, ok := cache.Get(node, 0, 5)
	if !ok {
		t.Fatal("expected cached image after Put")
	}
	if string(got) != string(page) {
		t.Errorf("Get = %v, want %v", got, page)
	}
}

func TestFPWCacheObserve(t *testing.T) {
	cache := NewFPWCache()
	node := RelFileNode{SpcOID: 1, DbOID: 2, RelOID: 3}
	rec := &WALRecord{
		Blocks: []WALBlockRef{
			{RelFileNode: &node, BlockNum: 7, Image: []byte("page-image")},
			{RelFileNode: &node, BlockNum: 8}, // no image, should be ignored
		},
	}
	cache.Observe(rec)

	if _, ok := cache.Get(node, 0, 8); ok {
		t.Error("block without an image should not be cached")
	}
	got, ok := cache.Get(node, 0, 7)
	if !ok || string(got) != "page-image" {
		t.Errorf("Get(block 7) = %v, %v", got, ok)
	}
}

// === Heap redo ===

func insertColumns() []Column {
	return []Column{{Name: "n", TypID: OidInt4, Len: 4, Num: 1}}
}

func int4HeapHeader(value int32) []byte {
	infomask2 := uint16(1) // natts=1
	infomask := uint16(0)  // no null bitmap
	hoff := byte(tupleHeaderSize)
	body := []byte{
		byte(infomask2), byte(infomask2 >> 8),
		byte(infomask), byte(infomask >> 8),
		hoff,
		byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24),
	}
	return body
}

func TestTupleFromWALHeader(t *testing.T) {
	data := int4HeapHeader(42)
	tuple, err := tupleFromWALHeader(data)
	if err != nil {
		t.Fatalf("tupleFromWALHeader: %v", err)
	}
	if tuple.Header.Natts != 1 {
		t.Errorf("Natts = %d, want 1", tuple.Header.Natts)
	}
	if len(tuple.Data) != 4 {
		t.Fatalf("len(Data) = %d, want 4", len(tuple.Data))
	}

	row := &RowBuffer{}
	if err := DecodeRow(tuple, insertColumns(), row, nil); err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if len(row.Fields) != 1 || row.Fields[0].Text != "42" {
		t.Errorf("decoded row = %+v, want n=42", row.Fields)
	}
}

func TestTupleFromWALHeaderTruncated(t *testing.T) {
	if _, err := tupleFromWALHeader([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated xl_heap_header")
	}
}

func TestDecodeHeapRecordInsert(t *testing.T) {
	rel := RelFileNode{SpcOID: 1, DbOID: 16384, RelOID: 20000}
	rec := &WALRecord{
		ResourceMgr:   RMHeapID,
		Info:          xlogHeapInsert,
		TransactionID: 999,
		LSN:           0x100,
		MainData:      []byte{0, 0, 0}, // offnum(2) + flags(1)
		Blocks: []WALBlockRef{
			{ID: 0, RelFileNode: &rel, BlockNum: 3, Data: int4HeapHeader(7)},
		},
	}

	result, err := DecodeHeapRecord(rec, insertColumns(), nil)
	if err != nil {
		t.Fatalf("DecodeHeapRecord: %v", err)
	}
	if result == nil {
		t.Fatal("expected a redo result")
	}
	if result.Kind != RestoreUpdate {
		t.Errorf("Kind = %v, want RestoreUpdate (insert surfaces as an upsert)", result.Kind)
	}
	if result.After == nil || result.After.Fields[0].Text != "7" {
		t.Errorf("After = %+v, want n=7", result.After)
	}
	if result.Relation != rel {
		t.Errorf("Relation = %+v, want %+v", result.Relation, rel)
	}
}

func TestDecodeHeapRecordDelete(t *testing.T) {
	rel := RelFileNode{SpcOID: 1, DbOID: 16384, RelOID: 20000}
	rec := &WALRecord{
		ResourceMgr: RMHeapID,
		Info:        xlogHeapDelete,
		MainData:    make([]byte, sizeOfHeapDelete),
		Blocks: []WALBlockRef{
			{ID: 0, RelFileNode: &rel, BlockNum: 3, Data: int4HeapHeader(9)},
		},
	}

	result, err := DecodeHeapRecord(rec, insertColumns(), nil)
	if err != nil {
		t.Fatalf("DecodeHeapRecord: %v", err)
	}
	if result == nil || result.Kind != RestoreDelete {
		t.Fatalf("expected a RestoreDelete result, got %+v", result)
	}
	if result.Before == nil || result.Before.Fields[0].Text != "9" {
		t.Errorf("Before = %+v, want n=9", result.Before)
	}
}

func TestDecodeHeapRecordUnknownRM(t *testing.T) {
	rec := &WALRecord{ResourceMgr: RMBtreeID, Blocks: []WALBlockRef{{}}}
	result, err := DecodeHeapRecord(rec, insertColumns(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Error("expected nil result for a non-heap resource manager")
	}
}

func TestDecodeHeapMultiInsert(t *testing.T) {
	rel := RelFileNode{SpcOID: 1, DbOID: 16384, RelOID: 20000}

	var blockData []byte
	appendTuple := func(value int32) {
		body := []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
		datalen := uint16(len(body))
		infomask2 := uint16(1)
		infomask := uint16(0)
		hoff := byte(tupleHeaderSize)
		blockData = append(blockData,
			byte(datalen), byte(datalen>>8),
			byte(infomask2), byte(infomask2>>8),
			byte(infomask), byte(infomask>>8),
			hoff,
		)
		blockData = append(blockData, body...)
		for len(blockData)%8 != 0 {
			blockData = append(blockData, 0)
		}
	}
	appendTuple(1)
	appendTuple(2)

	rec := &WALRecord{
		ResourceMgr: RMHeap2ID,
		Info:        xlogHeap2MultiInsert,
		MainData:    []byte{0, 2, 0}, // flags(1) + ntuples(2)=2
		Blocks: []WALBlockRef{
			{ID: 0, RelFileNode: &rel, BlockNum: 1, Data: blockData},
		},
	}

	results, err := DecodeHeapMultiInsert(rec, insertColumns(), nil)
	if err != nil {
		t.Fatalf("DecodeHeapMultiInsert: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].After.Fields[0].Text != "1" || results[1].After.Fields[0].Text != "2" {
		t.Errorf("unexpected decoded values: %q, %q", results[0].After.Fields[0].Text, results[1].After.Fields[0].Text)
	}
}

package pgdump

const tupleHeaderSize = 23

// HeapTupleHeader mirrors HeapTupleHeaderData. The raw Xmin/Xmax/
// CommandID/Ctid fields are kept (not just the derived visibility
// booleans) because WAL redo needs to compare a tuple's own xmin/xmax
// against the transaction a record belongs to.
type HeapTupleHeader struct {
	Xmin      uint32
	Xmax      uint32
	CommandID uint32
	CtidBlock uint32 // ItemPointerData.ip_blkid
	CtidOffset uint16 // ItemPointerData.ip_posid

	THoff    uint8
	Natts    int
	Infomask uint16

	XminCommitted bool
	XmaxInvalid   bool
	XmaxCommitted bool
	HasNull       bool
}

// HeapTupleData represents one decoded tuple: its header, the optional
// null bitmap, and the attribute data following t_hoff.
type HeapTupleData struct {
	Header *HeapTupleHeader
	Bitmap []byte
	Data   []byte
}

// ParseHeapTuple decodes a HeapTupleHeaderData plus trailing attribute
// bytes from one line pointer's worth of page data.
func ParseHeapTuple(data []byte) *HeapTupleData {
	if len(data) < tupleHeaderSize {
		return nil
	}

	infomask := u16(data, 20)
	infomask2 := u16(data, 18)
	hoff := data[22]

	if int(hoff) > len(data) {
		return nil
	}

	header := &HeapTupleHeader{
		Xmin:       u32(data, 0),
		Xmax:       u32(data, 4),
		CommandID:  u32(data, 8),
		CtidBlock:  u32(data, 12),
		CtidOffset: u16(data, 16),
		THoff:      hoff,
		Natts:     int(infomask2 & 0x07FF),
		Infomask:  infomask,
		HasNull:       infomask&0x0001 != 0,
		XminCommitted: infomask&0x0100 != 0,
		XmaxCommitted: infomask&0x0400 != 0,
		XmaxInvalid:   infomask&0x0800 != 0,
	}

	tuple := &HeapTupleData{
		Header: header,
		Data:   data[hoff:],
	}

	if header.HasNull {
		bitmapBytes := (header.Natts + 7) / 8
		if len(data) >= tupleHeaderSize+bitmapBytes {
			tuple.Bitmap = data[tupleHeaderSize : tupleHeaderSize+bitmapBytes]
		}
	}

	return tuple
}

// IsVisible reports whether the tuple's own header claims to be a live,
// committed row (xmin committed, xmax either invalid or not committed).
// This is a header-only check; it does not cross-reference the clog, so
// an aborted-but-not-yet-hinted xmin still reads as visible here.
func (t *HeapTupleData) IsVisible() bool {
	h := t.Header
	return h.XminCommitted && (h.XmaxInvalid || !h.XmaxCommitted)
}

// IsDeletedNotVacuumed reports whether the tuple's own xmax hint bits
// mark a committed deleter (xmax committed and not invalid): a DELETE
// that completed but whose dead tuple has not yet been reclaimed by
// VACUUM. xmin is not examined.
func (t *HeapTupleData) IsDeletedNotVacuumed() bool {
	h := t.Header
	return h.XmaxCommitted && !h.XmaxInvalid
}

// IsNull checks if attribute at position is null (1-indexed).
func (t *HeapTupleData) IsNull(attnum int) bool {
	if t.Bitmap == nil || attnum <= 0 {
		return false
	}
	byteIdx, bitIdx := (attnum-1)/8, (attnum-1)%8
	if byteIdx >= len(t.Bitmap) {
		return true
	}
	return t.Bitmap[byteIdx]&(1<<bitIdx) == 0
}


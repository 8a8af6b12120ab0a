package pgdump

// WAL magic numbers identify the PostgreSQL major version a segment was
// written by (XLOG_PAGE_MAGIC across releases); grounded on the pack's
// wal.go, which in turn mirrors pg_controldata's own table.
const (
	WALMagic12 = 0xD106
	WALMagic13 = 0xD10D
	WALMagic14 = 0xD10D
	WALMagic15 = 0xD110
	WALMagic16 = 0xD113
)

const (
	// WALPageSize is the size of one WAL page within a segment.
	WALPageSize = 8192
	// WALSegmentSize is the default WAL segment size (16MB); a cluster
	// initialized with --wal-segsize overrides this, but the long page
	// header carries the real value for every segment this engine reads.
	WALSegmentSize = 16 * 1024 * 1024
	// XLogRecordSize is the fixed portion of XLogRecord: total_len(4) +
	// xl_xid(4) + xl_prev(8) + xl_info(1) + xl_rmid(1) + 2 pad + crc(4).
	XLogRecordSize = 24
	// ShortPageHeaderSize is XLogPageHeaderData's size.
	ShortPageHeaderSize = 24
	// LongPageHeaderSize is XLogLongPageHeaderData's size (short header
	// plus sysid(8) + seg_size(4) + xlog_blcksz(4)).
	LongPageHeaderSize = 40
)

// Page header flag bits (xlp_info).
const (
	xlpFirstIsContrecord = 0x0001
	xlpLongHeader        = 0x0002
	xlpBkpRemovable      = 0x0004
	xlpAllZeroes         = 0x0008
)

// Resource manager IDs (xl_rmid), the dispatch key for record interpretation.
const (
	RMXLogID          = 0
	RMXactID           = 1
	RMSMgrID           = 2
	RMCLogID           = 3
	RMDbaseID          = 4
	RMTblspcID         = 5
	RMMultiXactID      = 6
	RMRelMapID         = 7
	RMStandbyID        = 8
	RMHeap2ID          = 9
	RMHeapID           = 10
	RMBtreeID          = 11
	RMHashID           = 12
	RMGinID            = 13
	RMGistID           = 14
	RMSeqID            = 15
	RMSPGistID         = 16
	RMBRINID           = 17
	RMCommitTsID       = 18
	RMReplOriginID     = 19
	RMGenericID        = 20
	RMLogicalMsgID     = 21
)

// WALPageHeader mirrors XLogPageHeaderData/XLogLongPageHeaderData (the
// long variant only appears as the first page of a segment).
type WALPageHeader struct {
	Magic      uint16
	Info       uint16
	TimelineID uint32
	PageAddr   uint64
	RemLen     uint32

	// Long-header-only fields; zero on a short header.
	SystemID  uint64
	SegSize   uint32
	BlockSize uint32
}

func isLongHeader(h *WALPageHeader) bool { return h.Info&xlpLongHeader != 0 }

// parseWALPageHeader decodes one WAL page's header. Named distinctly
// from page.go's parsePageHeader: both read an 8KB page but a WAL page
// and a heap page share nothing past that size.
func parseWALPageHeader(data []byte) *WALPageHeader {
	if len(data) < ShortPageHeaderSize {
		return nil
	}
	h := &WALPageHeader{
		Magic:      u16(data, 0),
		Info:       u16(data, 2),
		TimelineID: u32(data, 4),
		PageAddr:   u64(data, 8),
		RemLen:     u32(data, 16),
	}
	if isLongHeader(h) {
		if len(data) < LongPageHeaderSize {
			return nil
		}
		h.SystemID = u64(data, 24)
		h.SegSize = u32(data, 32)
		h.BlockSize = u32(data, 36)
	}
	return h
}

func walPageHeaderSize(h *WALPageHeader) int {
	if isLongHeader(h) {
		return LongPageHeaderSize
	}
	return ShortPageHeaderSize
}

func isValidWALMagic(magic uint16) bool {
	switch magic {
	case WALMagic12, WALMagic13, WALMagic15, WALMagic16:
		return true
	default:
		return false
	}
}

func pgVersionFromWALMagic(magic uint16) int {
	switch magic {
	case WALMagic12:
		return 12
	case WALMagic13:
		return 14
	case WALMagic15:
		return 15
	case WALMagic16:
		return 16
	default:
		return 0
	}
}

func isZeroPadding(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// align8 rounds n up to the next 8-byte boundary, the alignment XLogRecord
// and its block references are packed to.
func align8(n int) int { return (n + 7) &^ 7 }

// FormatLSN renders a 64-bit LSN in PostgreSQL's %X/%X form.
func FormatLSN(lsn uint64) string {
	return formatHex32(uint32(lsn>>32)) + "/" + formatHex32(uint32(lsn))
}

func formatHex32(v uint32) string {
	const hexDigits = "0123456789ABCDEF"
	if v == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf[i:])
}

// rmgrName returns the resource manager's name for display, grounded on
// PostgreSQL's RmgrTable.
func rmgrName(rmid uint8) string {
	switch rmid {
	case RMXLogID:
		return "XLOG"
	case RMXactID:
		return "Transaction"
	case RMSMgrID:
		return "Storage"
	case RMCLogID:
		return "CLOG"
	case RMDbaseID:
		return "Database"
	case RMTblspcID:
		return "Tablespace"
	case RMMultiXactID:
		return "MultiXact"
	case RMRelMapID:
		return "RelMap"
	case RMStandbyID:
		return "Standby"
	case RMHeap2ID:
		return "Heap2"
	case RMHeapID:
		return "Heap"
	case RMBtreeID:
		return "Btree"
	case RMHashID:
		return "Hash"
	case RMGinID:
		return "Gin"
	case RMGistID:
		return "Gist"
	case RMSeqID:
		return "Sequence"
	case RMSPGistID:
		return "SPGist"
	case RMBRINID:
		return "BRIN"
	case RMCommitTsID:
		return "CommitTs"
	case RMReplOriginID:
		return "ReplicationOrigin"
	case RMGenericID:
		return "Generic"
	case RMLogicalMsgID:
		return "LogicalMessage"
	default:
		return "Unknown"
	}
}

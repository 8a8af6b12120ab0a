package pgdump

import "encoding/hex"

// ReadTuples extracts all line-pointer entries from heap file data,
// one page at a time. visibleOnly filters out tuples whose own
// xmin/xmax hint bits mark them as not currently visible; dead line
// pointers are always excluded here regardless of visibleOnly (callers
// that want those use ParsePage directly).
func ReadTuples(data []byte, visibleOnly bool) []TupleEntry {
	var entries []TupleEntry
	for off := 0; off+PageSize <= len(data); off += PageSize {
		for _, e := range ParsePage(data[off : off+PageSize]) {
			if e.Dead {
				continue
			}
			if !visibleOnly || e.Tuple.IsVisible() {
				e.PageOffset = off
				entries = append(entries, e)
			}
		}
	}
	return entries
}

// ToastResolver fetches and reassembles the value an external varlena
// pointer refers to. DecodeRow calls it only for attributes whose
// in-tuple representation is a TOAST pointer; nil means "don't resolve,
// report the pointer metadata instead".
type ToastResolver func(ptr *TOASTPointer) ([]byte, error)

// DecodeRow decodes one tuple's attributes in catalog order and reports
// each one to sink as it becomes available, instead of building an
// entire map[string]interface{} before any output decision can be
// made. Dropped columns (col.Dropped) still occupy their original
// on-disk slot until the table is rewritten, so their bytes are walked
// to keep later offsets correct, but they are never reported to sink.
func DecodeRow(tuple *HeapTupleData, columns []Column, sink RowSink, resolveToast ToastResolver) error {
	if tuple == nil {
		return newErr(FormatInvalid, "cannot decode a nil tuple")
	}

	c := newCursor(tuple.Data)
	for idx, col := range columns {
		num := col.Num
		if num == 0 {
			num = idx + 1
		}

		if tuple.IsNull(num) {
			if !col.Dropped {
				sink.WriteField(col.Name, "", true)
			}
			continue
		}

		text, err := decodeAttribute(c, col, resolveToast)
		if err != nil {
			return wrapErr(KindOrKeep(err), err, "column "+col.Name)
		}
		if !col.Dropped {
			sink.WriteField(col.Name, text, false)
		}
	}
	return sink.FinishRow()
}

// KindOrKeep extracts err's ErrKind if it already carries one, falling
// back to FormatInvalid for an error DecodeRow didn't itself originate.
func KindOrKeep(err error) ErrKind {
	if k, ok := KindOf(err); ok {
		return k
	}
	return FormatInvalid
}

// decodeAttribute renders one non-null attribute as text, advancing c
// past however many bytes (including alignment padding) it occupied.
func decodeAttribute(c *cursor, col Column, resolveToast ToastResolver) (string, error) {
	if col.Len == -1 {
		return decodeVarlenaAttr(c, col, resolveToast)
	}

	align := alignFromChar(col.Align)
	if align == 0 {
		align = typeAlign(col.TypID, col.Len)
	}
	if err := c.alignTo(align); err != nil {
		return "", err
	}

	switch col.TypID {
	case OidBool:
		return decodeBool(c)
	case OidChar:
		return decodeChar(c)
	case OidName:
		return decodeName(c)
	case OidInt2, OidTid:
		return decodeInt2(c)
	case OidInt4, OidOid, OidXid, OidCid:
		return decodeInt4(c)
	case OidInt8:
		return decodeInt8(c)
	case OidFloat4:
		return decodeFloat4(c)
	case OidFloat8, OidMoney:
		return decodeFloat8(c)
	case OidDate:
		return decodeDate(c)
	case OidTime:
		return decodeTime(c)
	case OidTimeTZ:
		return decodeTimeTZ(c)
	case OidTimestamp:
		return decodeTimestamp(c)
	case OidTimestampTZ:
		return decodeTimestampTZ(c)
	case OidUUID:
		return decodeUUID(c)
	case OidMacaddr:
		return decodeMacaddr(c)
	case OidMacaddr8:
		return decodeMacaddr8(c)
	default:
		if col.Len <= 0 {
			return "", newErr(FormatInvalid, "non-varlena column with unusable length")
		}
		b, err := c.take(col.Len)
		if err != nil {
			return "", err
		}
		return "\\x" + hex.EncodeToString(b), nil
	}
}

// decodeVarlenaAttr handles the four varlena shapes. Short (1-byte
// header) values are never padding-aligned ahead of time, matching
// att_align_pointer's special case; everything else aligns to 4 first.
func decodeVarlenaAttr(c *cursor, col Column, resolveToast ToastResolver) (string, error) {
	if c.available() < 1 {
		return "", newErr(ShortInput, "no bytes left for varlena attribute")
	}
	if c.buf[c.pos]&0x01 == 0 {
		if err := c.alignTo(4); err != nil {
			return "", err
		}
	}

	consumed, v, err := ReadVarlena(c.buf[c.pos:])
	if err != nil {
		return "", err
	}
	c.pos += consumed

	if v.Shape == varlenaExternal {
		ptr := ParseTOASTPointer(v.Payload)
		if ptr == nil {
			return "", newErr(FormatInvalid, "external varlena pointer did not parse")
		}
		if resolveToast == nil {
			return "", newErr(AssemblyFailed, "external varlena requires a TOAST resolver")
		}
		resolved, err := resolveToast(ptr)
		if err != nil {
			return "", wrapErr(AssemblyFailed, err, "toast resolution failed")
		}
		return renderVarlenaPayload(col.TypID, resolved)
	}

	return renderVarlenaPayload(col.TypID, v.Payload)
}

// renderVarlenaPayload formats an already-decompressed/reassembled
// varlena body as text, per type.
func renderVarlenaPayload(typID int, payload []byte) (string, error) {
	switch typID {
	case OidNumeric:
		return decodeNumericText(payload)
	case OidBit, OidVarbit:
		return decodeBitString(payload), nil
	case OidBytea:
		return "\\x" + hex.EncodeToString(payload), nil
	case OidJSONB:
		if len(payload) < 1 {
			return "", newErr(ShortInput, "jsonb payload missing version byte")
		}
		return string(payload[1:]), nil
	default:
		return string(payload), nil
	}
}

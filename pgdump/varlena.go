package pgdump

// Varlena header shapes, ground truth: original_source/decode.c's
// VARATT_IS_1B_E / VARATT_IS_1B / VARATT_IS_4B_U / VARATT_IS_4B_C
// classification (decode.c:1128-1135). Checked in that exact order:
// a 1-byte header with all-zero remaining bits is external before it
// is considered a "short" value.
type varlenaShape int

const (
	varlenaUncompressed4B varlenaShape = iota
	varlenaCompressed4B
	varlenaShort1B
	varlenaExternal
)

const (
	toastCompressPGLZ = 0
	toastCompressLZ4  = 1

	varHdrSz1B = 1
	varHdrSz4B = 4
	// varHdrSzCompressed is VARHDRSZ_COMPRESSED: a 4-byte va_header plus
	// a 4-byte va_tcinfo (rawsize in the low 30 bits, method in the top 2).
	varHdrSzCompressed = 8
)

// varlenaValue is what ReadVarlena hands back: enough for the caller to
// either use Payload directly (already decompressed / already the raw
// external pointer bytes) or, for external values, resolve it through a
// TOAST table via ParseTOASTPointer(Payload).
type varlenaValue struct {
	Shape   varlenaShape
	Payload []byte
}

// classifyVarlena inspects the header byte(s) without consuming
// anything, per decode.c's detection order.
func classifyVarlena(data []byte) (varlenaShape, error) {
	if len(data) == 0 {
		return 0, newErr(ShortInput, "empty varlena header")
	}
	b0 := data[0]
	if b0&0x01 == 0x01 {
		if b0 == 0x01 {
			return varlenaExternal, nil
		}
		return varlenaShort1B, nil
	}
	if len(data) < varHdrSzCompressed {
		return varlenaUncompressed4B, nil
	}
	if b0&0x03 == 0x02 {
		return varlenaCompressed4B, nil
	}
	return varlenaUncompressed4B, nil
}

// ReadVarlena decodes one varlena field starting at data[0], returning
// the number of bytes it occupies in the tuple (for the caller's offset
// arithmetic) and its decoded payload. Compressed values are returned
// already decompressed; external values are returned as the raw 18-byte
// TOAST pointer body for the caller to resolve via ParseTOASTPointer and
// a TOAST table reader, since resolving an external value requires
// access to a different relation file than the one being decoded here.
func ReadVarlena(data []byte) (consumed int, v varlenaValue, err error) {
	shape, err := classifyVarlena(data)
	if err != nil {
		return 0, varlenaValue{}, err
	}

	switch shape {
	case varlenaShort1B:
		length := int(data[0] >> 1)
		if length < varHdrSz1B || len(data) < length {
			return 0, varlenaValue{}, newErr(ShortInput, "short varlena truncated")
		}
		return length, varlenaValue{Shape: shape, Payload: data[varHdrSz1B:length]}, nil

	case varlenaExternal:
		const extBodyLen = 18
		if len(data) < varHdrSz1B+extBodyLen {
			return 0, varlenaValue{}, newErr(ShortInput, "external varlena pointer truncated")
		}
		total := varHdrSz1B + extBodyLen
		return total, varlenaValue{Shape: shape, Payload: data[:total]}, nil

	case varlenaUncompressed4B:
		if len(data) < varHdrSz4B {
			return 0, varlenaValue{}, newErr(ShortInput, "4-byte varlena header truncated")
		}
		total := int(u32(data, 0) >> 2)
		if total < varHdrSz4B || len(data) < total {
			return 0, varlenaValue{}, newErr(ShortInput, "uncompressed varlena body truncated")
		}
		return total, varlenaValue{Shape: shape, Payload: data[varHdrSz4B:total]}, nil

	default: // varlenaCompressed4B
		if len(data) < varHdrSzCompressed {
			return 0, varlenaValue{}, newErr(ShortInput, "compressed varlena header truncated")
		}
		total := int(u32(data, 0) >> 2)
		tcinfo := u32(data, 4)
		rawSize := int(tcinfo & 0x3FFFFFFF)
		method := int(tcinfo >> 30)
		if total < varHdrSzCompressed || len(data) < total {
			return 0, varlenaValue{}, newErr(ShortInput, "compressed varlena body truncated")
		}
		compressed := data[varHdrSzCompressed:total]

		var out []byte
		var derr error
		switch method {
		case toastCompressLZ4:
			out, derr = decompressLZ4Block(compressed, rawSize)
		default:
			out, derr = decompressPGLZ(compressed, rawSize)
		}
		if derr != nil {
			return 0, varlenaValue{}, wrapErr(DecompressionFailed, derr, "inline compressed varlena decode failed")
		}
		return total, varlenaValue{Shape: shape, Payload: out}, nil
	}
}

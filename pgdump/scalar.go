package pgdump

import (
	"fmt"
	"strings"
)

// decodeBool decodes a single byte: nonzero -> "t", zero -> "f".
func decodeBool(c *cursor) (string, error) {
	b, err := c.take(1)
	if err != nil {
		return "", err
	}
	if b[0] != 0 {
		return "t", nil
	}
	return "f", nil
}

// decodeChar decodes PostgreSQL's single-byte "char" type: 0 is empty,
// 1..127 is a literal ASCII byte, 128..255 is a \ooo octal escape. This
// escaping applies only to "char", never to text/varchar.
func decodeChar(c *cursor) (string, error) {
	b, err := c.take(1)
	if err != nil {
		return "", err
	}
	v := b[0]
	switch {
	case v == 0:
		return "", nil
	case v < 128:
		return string(rune(v)), nil
	default:
		return fmt.Sprintf("\\%03o", v), nil
	}
}

// decodeName decodes a fixed 64-byte NUL-padded identifier.
func decodeName(c *cursor) (string, error) {
	b, err := c.take(64)
	if err != nil {
		return "", err
	}
	return cstring(b, len(b)), nil
}

// decodeUUID decodes 16 raw bytes into canonical
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx form.
func decodeUUID(c *cursor) (string, error) {
	b, err := c.take(16)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		u32(b, 0), u16(b, 4), u16(b, 6), u16(b, 8), b[10:16]), nil
}

// decodeMacaddr decodes 6 raw bytes into xx:xx:xx:xx:xx:xx.
func decodeMacaddr(c *cursor) (string, error) {
	b, err := c.take(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5]), nil
}

// decodeMacaddr8 decodes 8 raw bytes into xx:xx:xx:xx:xx:xx:xx:xx.
func decodeMacaddr8(c *cursor) (string, error) {
	b, err := c.take(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x:%02x:%02x",
		b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7]), nil
}

// decodeBitString renders a varlena-wrapped {bit count, packed bytes}
// payload (payload already stripped of its varlena header by the caller)
// as an MSB-first bit string.
func decodeBitString(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	bitlen := int(i32(payload, 0))
	if bitlen <= 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(bitlen)
	for i := 0; i < bitlen; i++ {
		byteIdx := 4 + i/8
		bitIdx := 7 - (i % 8)
		if byteIdx < len(payload) && payload[byteIdx]&(1<<bitIdx) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// quoteField wraps text for the selected output mode: SQL mode
// single-quotes (doubling embedded quotes); CSV mode escapes
// \r \n \t \\ to two-character sequences. isNull short-circuits to the
// mode's null spelling.
func quoteField(mode OutputMode, text string, isNull bool) string {
	if isNull {
		if mode == OutputSQL {
			return "NULL"
		}
		return `\N`
	}
	if mode == OutputSQL {
		return "'" + strings.ReplaceAll(text, "'", "''") + "'"
	}
	r := strings.NewReplacer("\\", `\\`, "\r", `\r`, "\n", `\n`, "\t", `\t`)
	return r.Replace(text)
}

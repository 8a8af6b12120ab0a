package pgdump

import "github.com/pierrec/lz4/v4"

// decompressLZ4Block decompresses one TOAST LZ4 block (PostgreSQL wraps
// LZ4_decompress_safe output with its own varlena/TOAST framing; the
// payload handed in here is the raw LZ4 block, already stripped of that
// framing by the caller) via pierrec/lz4's block API rather than the
// teacher's hand-rolled byte-at-a-time decoder.
func decompressLZ4Block(src []byte, rawSize int) ([]byte, error) {
	if len(src) == 0 {
		return nil, newErr(DecompressionFailed, "empty lz4 block")
	}
	dst := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, wrapErr(DecompressionFailed, err, "lz4 block decode failed")
	}
	return dst[:n], nil
}

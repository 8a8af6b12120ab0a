package pgdump

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdDecoderOnce lazily builds a single shared zstd decoder: the
// library's NewReader spins up a goroutine pool, so the WAL scan path
// (which may decompress thousands of full-page images) reuses one
// decoder instead of paying that cost per page.
var (
	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
	zstdDecoderErr  error
)

func getZstdDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdDecoderErr = zstd.NewReader(nil)
	})
	return zstdDecoder, zstdDecoderErr
}

// decompressZSTD decompresses a wal_compression=zstd full-page image.
// rawSize is the page's known decompressed length (PageSize minus the
// hole), used to preallocate the output buffer.
func decompressZSTD(src []byte, rawSize int) ([]byte, error) {
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, wrapErr(DecompressionFailed, err, "zstd decoder unavailable")
	}
	out, err := dec.DecodeAll(src, make([]byte, 0, rawSize))
	if err != nil {
		return nil, wrapErr(DecompressionFailed, err, "zstd full-page image decode failed")
	}
	return out, nil
}

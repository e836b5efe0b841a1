// Package gzipcodec implements the fixed-level gzip compression step of the
// capsule pipeline over klauspost/compress/gzip, an API-compatible,
// faster-in-practice drop-in for the standard library's compress/gzip.
package gzipcodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/dig-network/digcap/internal/errs"
)

// Level is the fixed gzip compression level mandated by the capsule format.
const Level = gzip.BestCompression - 3 // gzip level 6

// Magic is the two leading bytes of every valid gzip (RFC 1952) stream.
var Magic = [2]byte{0x1F, 0x8B}

// Compress gzip-compresses data at the fixed level.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := gzip.NewWriterLevel(&buf, Level)
	if err != nil {
		return nil, fmt.Errorf("constructing gzip writer: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("writing gzip stream: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip stream: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress reverses Compress.
//
// Returns errs.ErrDecompressionFailed on any gzip-layer error, including a
// missing or corrupt header.
func Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrDecompressionFailed, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrDecompressionFailed, err)
	}

	return out, nil
}

// LooksLikeGzip reports whether data begins with the RFC 1952 gzip magic.
//
// Used by the pipeline to sniff for a lying "compressed" header flag.
func LooksLikeGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == Magic[0] && data[1] == Magic[1]
}

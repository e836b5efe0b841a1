package capsule

import (
	"fmt"

	"github.com/dig-network/digcap/internal/cryptocodec"
	"github.com/dig-network/digcap/internal/gzipcodec"
	"github.com/dig-network/digcap/internal/padding"
)

// encodeChunk transforms one plaintext chunk into a capsule body, following
// the pad/encrypt/compress ordering selected by postPad (see §4.6).
//
// Compression always runs; encryption runs only when derivedKey is non-nil.
// Returns the capsule body bytes and the header carrying the flags, index,
// bucket size, and (if encrypted) IV needed to invert the transform later.
func encodeChunk(index int, chunk []byte, bucketSize int64, postPad bool, derivedKey []byte) ([]byte, header, error) {
	flags := flagCompressed
	if derivedKey != nil {
		flags |= flagEncrypted
	}

	if postPad {
		flags |= flagPostPad
	}

	h := header{
		Version:    capsuleVersion,
		Flags:      flags,
		Index:      uint32(index),
		BucketSize: uint64(bucketSize),
	}

	var (
		iv  [cryptocodec.IVSize]byte
		err error
	)

	if !postPad {
		padded, err := padding.Pad(chunk, int(bucketSize))
		if err != nil {
			return nil, header{}, err
		}

		sealed := padded
		if derivedKey != nil {
			iv, err = cryptocodec.NewIV()
			if err != nil {
				return nil, header{}, err
			}

			sealed, err = cryptocodec.Seal(derivedKey, iv, padded, aad(h))
			if err != nil {
				return nil, header{}, err
			}
		}

		body, err := gzipcodec.Compress(sealed)
		if err != nil {
			return nil, header{}, err
		}

		h.IV = iv
		h.ContentLength = uint32(len(body))

		return body, h, nil
	}

	sealed := chunk
	if derivedKey != nil {
		iv, err = cryptocodec.NewIV()
		if err != nil {
			return nil, header{}, err
		}

		sealed, err = cryptocodec.Seal(derivedKey, iv, chunk, aad(h))
		if err != nil {
			return nil, header{}, err
		}
	}

	compressed, err := gzipcodec.Compress(sealed)
	if err != nil {
		return nil, header{}, err
	}

	body, err := padding.Pad(compressed, int(bucketSize))
	if err != nil {
		return nil, header{}, err
	}

	h.IV = iv
	h.ContentLength = uint32(len(body))

	return body, h, nil
}

// decodeChunk inverts encodeChunk: given a capsule's header and body bytes
// plus the derived key (nil if the set is unencrypted), returns the original
// plaintext chunk.
func decodeChunk(h header, body []byte, derivedKey []byte) ([]byte, error) {
	if h.encrypted() && derivedKey == nil {
		return nil, fmt.Errorf("capsule %d is encrypted but no key was supplied: %w", h.Index, ErrDecryptionFailed)
	}

	if h.postPad() {
		compressed, err := padding.Unpad(body, int(h.BucketSize))
		if err != nil {
			return nil, err
		}

		if h.compressed() && !gzipcodec.LooksLikeGzip(compressed) {
			return nil, fmt.Errorf("capsule %d flagged compressed but body lacks gzip header: %w", h.Index, ErrFlagsInconsistent)
		}

		sealed, err := gzipcodec.Decompress(compressed)
		if err != nil {
			return nil, err
		}

		if !h.encrypted() {
			return sealed, nil
		}

		plaintext, err := cryptocodec.Open(derivedKey, h.IV, sealed, aad(h))
		if err != nil {
			return nil, err
		}

		return plaintext, nil
	}

	if h.compressed() && !gzipcodec.LooksLikeGzip(body) {
		return nil, fmt.Errorf("capsule %d flagged compressed but body lacks gzip header: %w", h.Index, ErrFlagsInconsistent)
	}

	sealed, err := gzipcodec.Decompress(body)
	if err != nil {
		return nil, err
	}

	padded := sealed
	if h.encrypted() {
		padded, err = cryptocodec.Open(derivedKey, h.IV, sealed, aad(h))
		if err != nil {
			return nil, err
		}
	}

	plaintext, err := padding.Unpad(padded, int(h.BucketSize))
	if err != nil {
		return nil, err
	}

	return plaintext, nil
}

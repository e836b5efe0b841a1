// Package padding builds and parses the pad envelope used to stretch a
// payload up to an exact target length without revealing its true size to an
// observer of the stretched bytes alone.
//
// Envelope layout, low address to high:
//
//	payload_bytes || 0xFF 0xFF 0xFF 0xFF || random_bytes || size_le32
//
// size_le32 stores len(payload_bytes) as a 32-bit little-endian integer.
package padding

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/dig-network/digcap/internal/errs"
)

// markerLen is the byte length of the 0xFFFFFFFF marker.
const markerLen = 4

// footerLen is the byte length of the trailing size_le32 footer.
const footerLen = 4

// minFloorFraction is the minimum fraction of target that padding must occupy.
const minFloorFraction = 0.05

// FloorFraction is the minimum fraction of a bucket's target size that
// padding must occupy, exported for overhead estimation.
const FloorFraction = minFloorFraction

// minFloorBytes returns max(1, ceil(minFloorFraction*target)).
func minFloorBytes(target int) int {
	floor := int(float64(target)*minFloorFraction + 0.9999999)
	if floor < 1 {
		floor = 1
	}

	return floor
}

// Pad builds the envelope for payload so the result is exactly target bytes.
//
// Returns errs.ErrPayloadTooLargeForBucket if payload, together with the
// marker and footer, leaves less than the required padding floor.
func Pad(payload []byte, target int) ([]byte, error) {
	overhead := markerLen + footerLen
	if len(payload)+overhead >= target {
		return nil, fmt.Errorf("payload %d bytes leaves no room in %d-byte target: %w", len(payload), target, errs.ErrPayloadTooLargeForBucket)
	}

	available := target - len(payload) - overhead
	floor := minFloorBytes(target)

	if available < floor {
		return nil, fmt.Errorf("payload %d bytes only leaves %d padding bytes, need >= %d in %d-byte target: %w", len(payload), available, floor, target, errs.ErrPayloadTooLargeForBucket)
	}

	envelope := make([]byte, target)
	copy(envelope, payload)

	off := len(payload)
	envelope[off], envelope[off+1], envelope[off+2], envelope[off+3] = 0xFF, 0xFF, 0xFF, 0xFF
	off += markerLen

	randomRegion := envelope[off : target-footerLen]
	if _, err := rand.Read(randomRegion); err != nil {
		return nil, fmt.Errorf("reading random padding bytes: %w", err)
	}

	binary.LittleEndian.PutUint32(envelope[target-footerLen:], uint32(len(payload)))

	return envelope, nil
}

// Unpad parses an envelope of exactly target bytes and returns the original
// payload.
//
// The marker is located by a forward scan from the start of the envelope,
// taking the first 0xFFFFFFFF run whose offset the trailing size_le32 footer
// confirms, so an incidental 0xFFFFFFFF run inside the payload bytes is
// skipped. Any inconsistency yields errs.ErrPaddingCorrupt.
func Unpad(envelope []byte, target int) ([]byte, error) {
	if len(envelope) != target {
		return nil, fmt.Errorf("envelope length %d != target %d: %w", len(envelope), target, errs.ErrPaddingCorrupt)
	}

	if target < markerLen+footerLen {
		return nil, fmt.Errorf("target %d too small to hold marker+footer: %w", target, errs.ErrPaddingCorrupt)
	}

	declaredSize := binary.LittleEndian.Uint32(envelope[target-footerLen:])

	markerOffset := -1
	limit := target - footerLen - markerLen

	for i := 0; i <= limit; i++ {
		if envelope[i] == 0xFF && envelope[i+1] == 0xFF && envelope[i+2] == 0xFF && envelope[i+3] == 0xFF {
			markerOffset = i
			if i == int(declaredSize) {
				break
			}
		}
	}

	if markerOffset < 0 {
		return nil, fmt.Errorf("no 0xFFFFFFFF marker found: %w", errs.ErrPaddingCorrupt)
	}

	if int(declaredSize) > markerOffset || int(declaredSize) > target-8 {
		return nil, fmt.Errorf("declared size %d inconsistent with marker offset %d in %d-byte envelope: %w", declaredSize, markerOffset, target, errs.ErrPaddingCorrupt)
	}

	if int(declaredSize) != markerOffset {
		return nil, fmt.Errorf("declared payload length %d != marker offset %d: %w", declaredSize, markerOffset, errs.ErrPaddingCorrupt)
	}

	payload := make([]byte, declaredSize)
	copy(payload, envelope[:declaredSize])

	return payload, nil
}

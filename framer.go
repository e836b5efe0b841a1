package capsule

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/natefinch/atomic"

	"github.com/dig-network/digcap/internal/bucket"
	"github.com/dig-network/digcap/internal/errs"
)

// headerSize is the fixed size of every capsule file's header in bytes.
const headerSize = 44

// capsuleMagic is the 8-byte ASCII magic at the start of every capsule file.
var capsuleMagic = [8]byte{'D', 'I', 'G', 'C', 'A', 'P', '0', '1'}

// capsuleVersion is the current capsule file format version.
const capsuleVersion uint16 = 0x0001

const (
	flagEncrypted uint16 = 1 << 0
	flagCompressed uint16 = 1 << 1
	flagPostPad    uint16 = 1 << 2
)

// header is the in-memory form of a capsule file's 44-byte header.
type header struct {
	Version       uint16
	Flags         uint16
	Index         uint32
	BucketSize    uint64
	ContentLength uint32
	IV            [12]byte
}

func (h header) encrypted() bool  { return h.Flags&flagEncrypted != 0 }
func (h header) compressed() bool { return h.Flags&flagCompressed != 0 }
func (h header) postPad() bool    { return h.Flags&flagPostPad != 0 }

// encodeHeader serializes h into a headerSize-byte buffer, computing and
// storing the trailing CRC32 (IEEE 802.3 polynomial) over bytes [0:40).
func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)

	copy(buf[0:8], capsuleMagic[:])
	binary.LittleEndian.PutUint16(buf[8:10], h.Version)
	binary.LittleEndian.PutUint16(buf[10:12], h.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], h.Index)
	binary.LittleEndian.PutUint64(buf[16:24], h.BucketSize)
	binary.LittleEndian.PutUint32(buf[24:28], h.ContentLength)
	copy(buf[28:40], h.IV[:])

	crc := crc32.ChecksumIEEE(buf[0:40])
	binary.LittleEndian.PutUint32(buf[40:44], crc)

	return buf
}

// decodeHeader parses a headerSize-byte buffer into a header, validating the
// magic, version, and CRC. expectedCount, when >= 0, additionally validates
// h.Index < expectedCount.
func decodeHeader(buf []byte, expectedCount int) (header, error) {
	var h header

	if len(buf) != headerSize {
		return h, fmt.Errorf("header is %d bytes, want %d: %w", len(buf), headerSize, errs.ErrCapsuleHeaderInvalid)
	}

	if !bytes.Equal(buf[0:8], capsuleMagic[:]) {
		return h, fmt.Errorf("bad magic %q: %w", buf[0:8], errs.ErrCapsuleHeaderInvalid)
	}

	storedCRC := binary.LittleEndian.Uint32(buf[40:44])
	computedCRC := crc32.ChecksumIEEE(buf[0:40])

	if storedCRC != computedCRC {
		return h, fmt.Errorf("header CRC mismatch (stored %08x, computed %08x): %w", storedCRC, computedCRC, errs.ErrCapsuleHeaderInvalid)
	}

	h.Version = binary.LittleEndian.Uint16(buf[8:10])
	if h.Version != capsuleVersion {
		return h, fmt.Errorf("unsupported version %d: %w", h.Version, errs.ErrCapsuleHeaderInvalid)
	}

	h.Flags = binary.LittleEndian.Uint16(buf[10:12])
	h.Index = binary.LittleEndian.Uint32(buf[12:16])
	h.BucketSize = binary.LittleEndian.Uint64(buf[16:24])
	h.ContentLength = binary.LittleEndian.Uint32(buf[24:28])
	copy(h.IV[:], buf[28:40])

	if !bucket.IsValid(int64(h.BucketSize)) {
		return h, fmt.Errorf("bucket size %d not in legal set: %w", h.BucketSize, errs.ErrCapsuleHeaderInvalid)
	}

	if expectedCount >= 0 && int(h.Index) >= expectedCount {
		return h, fmt.Errorf("index %d >= expected count %d: %w", h.Index, expectedCount, errs.ErrCapsuleHeaderInvalid)
	}

	return h, nil
}

// aadPrefixLen is the number of leading header bytes authenticated as GCM
// associated data: magic(8) || version(2) || flags(2) || index(4).
//
// The format's own header table fixes these fields at bytes [0:16); the rest
// of the header (bucketSize, contentLength, IV, CRC) is not authenticated
// here since the IV itself lives in that region and contentLength is not
// known until after compression.
const aadPrefixLen = 16

// aad returns the associated-data prefix authenticated alongside the GCM
// ciphertext: magic || version || flags || index.
func aad(h header) []byte {
	buf := encodeHeader(h)
	return buf[:aadPrefixLen]
}

// writeCapsuleFile atomically writes a capsule file: the encoded header
// followed by exactly len(body) content bytes.
//
// If overwrite is false and a file already exists at path, returns
// errs.ErrNameCollision without touching the existing file.
func writeCapsuleFile(path string, h header, body []byte, overwrite bool) error {
	if !overwrite {
		if exists, _ := diskFS.Exists(path); exists {
			return fmt.Errorf("capsule file already exists at %s: %w", path, errs.ErrNameCollision)
		}
	}

	buf := encodeHeader(h)
	buf = append(buf, body...)

	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("writing capsule file %s: %w", path, errs.ErrOutputUnwritable)
	}

	return nil
}

// readCapsuleFile opens and validates a capsule file's header, returning the
// header and its body bytes. expectedCount, when >= 0, bounds h.Index.
func readCapsuleFile(path string, expectedCount int) (header, []byte, error) {
	f, err := diskFS.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return header{}, nil, fmt.Errorf("capsule file %s: %w", path, errs.ErrInputMissing)
		}

		return header{}, nil, fmt.Errorf("opening %s: %w", path, errs.ErrInputMissing)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return header{}, nil, fmt.Errorf("reading %s: %w", path, errs.ErrInputMissing)
	}

	if len(raw) < headerSize {
		return header{}, nil, fmt.Errorf("capsule file %s shorter than header: %w", path, errs.ErrCapsuleHeaderInvalid)
	}

	h, err := decodeHeader(raw[:headerSize], expectedCount)
	if err != nil {
		return header{}, nil, fmt.Errorf("%s: %w", path, err)
	}

	body := raw[headerSize:]
	if uint32(len(body)) != h.ContentLength {
		return header{}, nil, fmt.Errorf("capsule file %s body length %d != header contentLength %d: %w", path, len(body), h.ContentLength, errs.ErrCapsuleHeaderInvalid)
	}

	return h, body, nil
}


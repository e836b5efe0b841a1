package capsule

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dig-network/digcap/internal/bucket"
	"github.com/dig-network/digcap/internal/errs"
	"github.com/dig-network/digcap/internal/padding"
)

// CreateFromFile reads inputPath in full, chunks it per the deterministic
// bucket plan for its size, and writes one capsule file per chunk plus a
// metadata sidecar into outputDir. key is nil for an unencrypted set, or a
// raw 32-byte key or arbitrary-length passphrase for an encrypted one.
func CreateFromFile(ctx context.Context, inputPath, outputDir string, postPad bool, key []byte, opts Options) (CapsuleSet, error) {
	f, err := diskFS.Open(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return CapsuleSet{}, fmt.Errorf("input file %s: %w", inputPath, errs.ErrInputMissing)
		}

		return CapsuleSet{}, fmt.Errorf("opening input file %s: %w", inputPath, errs.ErrInputMissing)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return CapsuleSet{}, fmt.Errorf("stat input file %s: %w", inputPath, errs.ErrInputMissing)
	}

	return createSet(ctx, f, info.Size(), outputDir, postPad, key, opts)
}

// CreateFromBuffer is CreateFromFile for data already resident in memory.
func CreateFromBuffer(ctx context.Context, data []byte, outputDir string, postPad bool, key []byte, opts Options) (CapsuleSet, error) {
	return createSet(ctx, bytes.NewReader(data), int64(len(data)), outputDir, postPad, key, opts)
}

// ExtractToFile reconstructs the original content from the capsule set in
// inputDir and writes it to outputPath. The file is built under a temporary
// name in the same directory and renamed into place on success, so a failed
// or cancelled extraction never leaves a partial outputPath behind.
func ExtractToFile(ctx context.Context, inputDir, outputPath string, key []byte) error {
	dir := filepath.Dir(outputPath)

	tmp, err := os.CreateTemp(dir, ".digcap-extract-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary output file in %s: %w", dir, errs.ErrOutputUnwritable)
	}

	tmpPath := tmp.Name()

	removeTmp := func() {
		_ = diskFS.Remove(tmpPath)
	}

	if _, err := extractSet(ctx, inputDir, key, tmp); err != nil {
		tmp.Close()
		removeTmp()

		return err
	}

	if err := tmp.Close(); err != nil {
		removeTmp()
		return fmt.Errorf("closing temporary output file %s: %w", tmpPath, errs.ErrOutputUnwritable)
	}

	if err := diskFS.Rename(tmpPath, outputPath); err != nil {
		removeTmp()
		return fmt.Errorf("finalizing output file %s: %w", outputPath, errs.ErrOutputUnwritable)
	}

	return nil
}

// ExtractToBuffer reconstructs the original content from the capsule set in
// inputDir and returns it in memory.
func ExtractToBuffer(ctx context.Context, inputDir string, key []byte) ([]byte, error) {
	var buf bytes.Buffer

	if _, err := extractSet(ctx, inputDir, key, &buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// LoadSet reads the metadata sidecar in dir and returns a CapsuleSet
// describing it. Capsule entries are reconstructed from the sidecar's
// aggregate fields only: ContentLength and ContentHash, which are not
// recorded in the sidecar, are left zero. Capsule files themselves are not
// opened; use DescribeSet to cross-check against what is actually on disk.
func LoadSet(dir string) (CapsuleSet, error) {
	prefix, err := findSidecar(dir)
	if err != nil {
		return CapsuleSet{}, err
	}

	md, err := readSidecar(dir, prefix)
	if err != nil {
		return CapsuleSet{}, err
	}

	capsules := make([]Capsule, md.CapsuleCount)
	for i := range capsules {
		capsules[i] = Capsule{
			Index:      i,
			BucketSize: md.CapsuleSizes[i],
			Encrypted:  md.EncryptionInfo != nil,
			Compressed: md.CompressionInfo != nil,
		}
	}

	return CapsuleSet{ID: md.Checksum, Capsules: capsules, Metadata: md}, nil
}

// ReconstructFromSet checks set with ValidateConsensusParameters and then
// runs ExtractToFile on dir. The extraction itself reads the sidecar in dir
// again and is driven by that sidecar; set is used only for the validation.
func ReconstructFromSet(ctx context.Context, set CapsuleSet, dir, outputPath string, key []byte) error {
	if err := ValidateConsensusParameters(set); err != nil {
		return err
	}

	return ExtractToFile(ctx, dir, outputPath, key)
}

// ListBucketSizes returns the closed set of legal bucket sizes, in
// ascending order.
func ListBucketSizes() []int64 {
	return bucket.List()
}

// ConsensusTag returns the format generation tag every metadata sidecar must
// carry in its consensusVersion field.
func ConsensusTag() string {
	return ConsensusVersionTag
}

// OverheadEstimate returns the fraction of on-disk bytes over originalSize n
// that a set of k capsules is expected to carry, combining the fixed
// 44-byte header per capsule with the minimum 5% padding floor. It is an
// estimate: actual padding added is data-dependent above the floor.
func OverheadEstimate(n int64, k int) float64 {
	if n <= 0 || k <= 0 {
		return 0
	}

	bucketSize, _ := bucket.Plan(n)

	headerOverhead := float64(headerSize*k) / float64(n)
	paddingFloor := padding.FloorFraction * float64(bucketSize*int64(k)) / float64(n)

	return headerOverhead + paddingFloor
}

// IsValidCapsuleFile reports whether path looks like a well-formed capsule
// file: a readable, correctly-sized header with a valid magic, version, CRC,
// and bucket size. It does not decrypt or decompress the body.
func IsValidCapsuleFile(path string) bool {
	_, err := CapsuleFileInfo(path)
	return err == nil
}

// CapsuleFileInfo reads and validates just the header of the capsule file at
// path, without touching its body.
func CapsuleFileInfo(path string) (*CapsuleInfo, error) {
	f, err := diskFS.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("capsule file %s: %w", path, errs.ErrInputMissing)
		}

		return nil, fmt.Errorf("opening %s: %w", path, errs.ErrInputMissing)
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, errs.ErrCapsuleHeaderInvalid)
	}

	h, err := decodeHeader(buf, -1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &CapsuleInfo{
		Version:       h.Version,
		Encrypted:     h.encrypted(),
		Compressed:    h.compressed(),
		PostPad:       h.postPad(),
		Index:         int(h.Index),
		BucketSize:    int64(h.BucketSize),
		ContentLength: int64(h.ContentLength),
		IV:            h.IV,
	}, nil
}

// DescribeSet cross-checks a capsule set's metadata sidecar against what is
// actually present on disk in dir: every expected capsule file exists and
// its stated size and bucket agree with the sidecar. It never opens a key
// or attempts decryption; it is a structural, not cryptographic, check.
func DescribeSet(dir string) (SetReport, error) {
	set, err := LoadSet(dir)
	if err != nil {
		return SetReport{}, err
	}

	report := SetReport{
		ID:       set.ID,
		Dir:      dir,
		Metadata: set.Metadata,
	}

	if err := ValidateConsensusParameters(set); err != nil {
		report.Problems = append(report.Problems, err.Error())
	}

	prefix := id16(set.ID)

	for i := 0; i < set.Metadata.CapsuleCount; i++ {
		path := filepath.Join(dir, capsuleFilename(prefix, i))

		if exists, _ := diskFS.Exists(path); !exists {
			report.Problems = append(report.Problems, fmt.Sprintf("capsule %d: %s missing or unreadable", i, path))
			continue
		}

		report.CapsuleFilesFound++

		hInfo, infoErr := CapsuleFileInfo(path)
		if infoErr != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("capsule %d: %v", i, infoErr))
			continue
		}

		if hInfo.BucketSize != set.Metadata.CapsuleSizes[i] {
			report.Problems = append(report.Problems, fmt.Sprintf("capsule %d: on-disk bucket size %d != metadata %d", i, hInfo.BucketSize, set.Metadata.CapsuleSizes[i]))
		}
	}

	report.CountMatches = report.CapsuleFilesFound == set.Metadata.CapsuleCount
	report.SizesMatch = len(report.Problems) == 0

	return report, nil
}

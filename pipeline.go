package capsule

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"

	sha256simd "github.com/minio/sha256-simd"

	"github.com/dig-network/digcap/internal/bucket"
	"github.com/dig-network/digcap/internal/cryptocodec"
	"github.com/dig-network/digcap/internal/errs"
)

// createSet streams r (totalSize bytes) through the bucket planner and the
// per-chunk transform pipeline, writing one capsule file per chunk into
// outputDir plus a metadata sidecar.
//
// Capsule files are first written under a process-unique temporary name
// (since their permanent name depends on the set id, which is only known
// once the whole input has been hashed) and renamed into place once the id
// is final, satisfying the "no partial output file" requirement: any
// mid-stream failure removes every temporary file before returning, and a
// failure while renaming or writing the sidecar also removes the capsule
// files already renamed into place.
func createSet(ctx context.Context, r io.Reader, totalSize int64, outputDir string, postPad bool, key []byte, opts Options) (CapsuleSet, error) {
	if totalSize < 0 {
		return CapsuleSet{}, fmt.Errorf("negative input size %d: %w", totalSize, errs.ErrInputMissing)
	}

	if err := diskFS.MkdirAll(outputDir, 0o755); err != nil {
		return CapsuleSet{}, fmt.Errorf("creating output directory %s: %w", outputDir, errs.ErrOutputUnwritable)
	}

	bucketSize, chunkCount := bucket.Plan(totalSize)

	var derivedKey []byte
	if key != nil {
		derivedKey = cryptocodec.DeriveKey(key)
		defer cryptocodec.Zero(derivedKey)
	}

	tag, err := tmpTag()
	if err != nil {
		return CapsuleSet{}, err
	}

	tmpPaths := make([]string, chunkCount)
	capsules := make([]Capsule, 0, chunkCount)

	cleanup := func() {
		for _, p := range tmpPaths {
			if p != "" {
				_ = diskFS.Remove(p)
			}
		}
	}

	runningHash := sha256simd.New()
	remaining := totalSize
	readBuf := make([]byte, bucketSize)

	for i := 0; i < chunkCount; i++ {
		if err := ctx.Err(); err != nil {
			cleanup()
			return CapsuleSet{}, err
		}

		want := bucketSize
		if remaining < bucketSize {
			want = remaining
		}

		chunk := make([]byte, want)

		if want > 0 {
			if _, err := io.ReadFull(r, readBuf[:want]); err != nil {
				cleanup()
				return CapsuleSet{}, wrapErr(fmt.Errorf("%w", errs.ErrInputMissing), "", "", i)
			}

			copy(chunk, readBuf[:want])
		}

		runningHash.Write(chunk)

		body, h, err := encodeChunk(i, chunk, bucketSize, postPad, derivedKey)
		cryptocodec.Zero(chunk)

		if err != nil {
			cleanup()
			return CapsuleSet{}, wrapErr(err, "", "", i)
		}

		contentHash := sha256simd.Sum256(body)

		tmpPath := filepath.Join(outputDir, fmt.Sprintf(".%s-%03d.capsule.tmp", tag, i))
		if err := writeCapsuleFile(tmpPath, h, body, true); err != nil {
			cleanup()
			return CapsuleSet{}, wrapErr(err, "", tmpPath, i)
		}

		tmpPaths[i] = tmpPath

		capsules = append(capsules, Capsule{
			Index:         i,
			BucketSize:    bucketSize,
			ContentLength: len(body),
			ContentHash:   hex.EncodeToString(contentHash[:]),
			Encrypted:     h.encrypted(),
			Compressed:    h.compressed(),
			PostPadFlag:   postPad,
		})

		remaining -= want
	}

	setID := hex.EncodeToString(runningHash.Sum(nil))
	prefix := id16(setID)

	finalPaths := make([]string, chunkCount)

	for i := 0; i < chunkCount; i++ {
		finalPaths[i] = filepath.Join(outputDir, capsuleFilename(prefix, i))

		if !opts.Overwrite {
			if exists, _ := diskFS.Exists(finalPaths[i]); exists {
				cleanup()
				return CapsuleSet{}, fmt.Errorf("capsule file %s already exists: %w", finalPaths[i], errs.ErrNameCollision)
			}
		}
	}

	sidecarPath := filepath.Join(outputDir, sidecarFilename(prefix))
	if !opts.Overwrite {
		if exists, _ := diskFS.Exists(sidecarPath); exists {
			cleanup()
			return CapsuleSet{}, fmt.Errorf("metadata sidecar %s already exists: %w", sidecarPath, errs.ErrNameCollision)
		}
	}

	removeFinal := func(n int) {
		for _, p := range finalPaths[:n] {
			_ = diskFS.Remove(p)
		}
	}

	for i := 0; i < chunkCount; i++ {
		if err := diskFS.Rename(tmpPaths[i], finalPaths[i]); err != nil {
			cleanup()
			removeFinal(i)
			return CapsuleSet{}, fmt.Errorf("finalizing capsule file %s: %w", finalPaths[i], errs.ErrOutputUnwritable)
		}
	}

	sizes := make([]int64, chunkCount)
	for i := range sizes {
		sizes[i] = bucketSize
	}

	md := Metadata{
		OriginalSize:      totalSize,
		CapsuleCount:      chunkCount,
		CapsuleSizes:      sizes,
		Checksum:          setID,
		ChunkingAlgorithm: ChunkingAlgorithm,
		ConsensusVersion:  ConsensusVersionTag,
		CompressionInfo: &CompressionInfo{
			Algorithm:    CompressionAlgorithm,
			Level:        CompressionLevel,
			OriginalSize: totalSize,
		},
	}

	if derivedKey != nil {
		md.EncryptionInfo = &EncryptionInfo{
			Algorithm:     EncryptionAlgorithm,
			KeyDerivation: KeyDerivationAlgorithm,
			Iterations:    cryptocodec.PBKDF2Iterations,
		}
	}

	set := CapsuleSet{ID: setID, Capsules: capsules, Metadata: md}

	if err := writeSidecar(outputDir, set); err != nil {
		removeFinal(chunkCount)
		return CapsuleSet{}, err
	}

	return set, nil
}

// extractSet loads the sidecar in dir, validates its consensus fields,
// reads every capsule file in index order, and writes the recovered
// plaintext to w, cross-checking the recovered total against the metadata's
// originalSize.
func extractSet(ctx context.Context, dir string, key []byte, w io.Writer) (CapsuleSet, error) {
	set, err := LoadSet(dir)
	if err != nil {
		return CapsuleSet{}, err
	}

	if err := ValidateConsensusParameters(set); err != nil {
		return CapsuleSet{}, err
	}

	var derivedKey []byte
	if key != nil {
		derivedKey = cryptocodec.DeriveKey(key)
		defer cryptocodec.Zero(derivedKey)
	}

	prefix := id16(set.ID)

	var recovered int64

	for i := 0; i < set.Metadata.CapsuleCount; i++ {
		if err := ctx.Err(); err != nil {
			return CapsuleSet{}, err
		}

		path := filepath.Join(dir, capsuleFilename(prefix, i))

		h, body, err := readCapsuleFile(path, set.Metadata.CapsuleCount)
		if err != nil {
			return CapsuleSet{}, wrapErr(err, set.ID, path, i)
		}

		if int64(h.BucketSize) != set.Metadata.CapsuleSizes[i] {
			return CapsuleSet{}, wrapErr(fmt.Errorf("bucket size %d != metadata size %d: %w", h.BucketSize, set.Metadata.CapsuleSizes[i], errs.ErrFlagsInconsistent), set.ID, path, i)
		}

		plaintext, err := decodeChunk(h, body, derivedKey)
		if err != nil {
			return CapsuleSet{}, wrapErr(err, set.ID, path, i)
		}

		if _, err := w.Write(plaintext); err != nil {
			cryptocodec.Zero(plaintext)
			return CapsuleSet{}, wrapErr(fmt.Errorf("%w", errs.ErrOutputUnwritable), set.ID, path, i)
		}

		recovered += int64(len(plaintext))
		cryptocodec.Zero(plaintext)
	}

	if recovered != set.Metadata.OriginalSize {
		err := fmt.Errorf("recovered %d bytes, want %d: %w", recovered, set.Metadata.OriginalSize, errs.ErrLengthMismatch)
		return CapsuleSet{}, wrapErr(err, set.ID, dir, -1)
	}

	return set, nil
}

// tmpTag returns a short random hex tag used to namespace one create call's
// temporary files, so concurrent or retried creates in the same directory
// never collide before the final rename.
func tmpTag() (string, error) {
	var b [8]byte

	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating temp file tag: %w: %w", errs.ErrRngUnavailable, err)
	}

	return hex.EncodeToString(b[:]), nil
}

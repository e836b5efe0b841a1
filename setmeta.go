package capsule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/dig-network/digcap/internal/bucket"
	"github.com/dig-network/digcap/internal/errs"
)

// id16 returns the first 16 hex characters of a set id, used as the
// directory-unique file-naming prefix.
func id16(id string) string {
	if len(id) < 16 {
		return id
	}

	return id[:16]
}

// capsuleFilename returns the on-disk name of capsule idx within a set
// identified by its id16 prefix.
func capsuleFilename(id16Prefix string, idx int) string {
	return fmt.Sprintf("%s_%03d.capsule", id16Prefix, idx)
}

// sidecarFilename returns the on-disk name of the metadata sidecar for a set
// identified by its id16 prefix.
func sidecarFilename(id16Prefix string) string {
	return fmt.Sprintf("%s_metadata.json", id16Prefix)
}

// writeSidecar serializes set.Metadata as canonical, stably-ordered JSON and
// writes it atomically to dir/{id16}_metadata.json.
func writeSidecar(dir string, set CapsuleSet) error {
	path := filepath.Join(dir, sidecarFilename(id16(set.ID)))

	buf, err := json.MarshalIndent(set.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w: %w", errs.ErrMetadataInvalid, err)
	}

	buf = append(buf, '\n')

	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("writing sidecar %s: %w", path, errs.ErrOutputUnwritable)
	}

	return nil
}

// readSidecar loads and validates the JSON schema (not the consensus
// semantics - see ValidateConsensusParameters) of the metadata sidecar for
// the set whose id16 prefix is idPrefix.
func readSidecar(dir, idPrefix string) (Metadata, error) {
	path := filepath.Join(dir, sidecarFilename(idPrefix))

	raw, err := diskFS.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, fmt.Errorf("sidecar %s: %w", path, errs.ErrInputMissing)
		}

		return Metadata{}, fmt.Errorf("reading sidecar %s: %w", path, errs.ErrInputMissing)
	}

	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return Metadata{}, fmt.Errorf("parsing sidecar %s: %w: %w", path, errs.ErrMetadataInvalid, err)
	}

	if md.CapsuleCount <= 0 || len(md.CapsuleSizes) != md.CapsuleCount {
		return Metadata{}, fmt.Errorf("sidecar %s: capsuleCount/capsuleSizes mismatch: %w", path, errs.ErrMetadataInvalid)
	}

	return md, nil
}

// findSidecar locates the single *_metadata.json file in dir and returns its
// id16 prefix. Returns errs.ErrMetadataInvalid if none exists and
// errs.ErrNameCollision if more than one exists.
func findSidecar(dir string) (string, error) {
	entries, err := diskFS.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading directory %s: %w", dir, errs.ErrInputMissing)
	}

	var found string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()
		const suffix = "_metadata.json"

		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			if found != "" {
				return "", fmt.Errorf("directory %s contains multiple metadata sidecars: %w", dir, errs.ErrNameCollision)
			}

			found = name[:len(name)-len(suffix)]
		}
	}

	if found == "" {
		return "", fmt.Errorf("no metadata sidecar found in %s: %w", dir, errs.ErrMetadataInvalid)
	}

	return found, nil
}

// ValidateConsensusParameters checks the consensus-critical fields of a
// capsule set's metadata: every capsule size is a legal bucket, the bucket is
// consistent across all capsules, the counts agree, and the algorithm/version
// tags match this format generation.
//
// Returns an error wrapping ErrConsensusViolation naming the first offending
// field, or nil if the set is consensus-valid.
func ValidateConsensusParameters(set CapsuleSet) error {
	md := set.Metadata

	if md.ConsensusVersion != ConsensusVersionTag {
		return fmt.Errorf("invalid consensusVersion %q, want %q: %w", md.ConsensusVersion, ConsensusVersionTag, errs.ErrConsensusViolation)
	}

	if md.ChunkingAlgorithm != ChunkingAlgorithm {
		return fmt.Errorf("invalid chunkingAlgorithm %q, want %q: %w", md.ChunkingAlgorithm, ChunkingAlgorithm, errs.ErrConsensusViolation)
	}

	if md.CapsuleCount != len(md.CapsuleSizes) {
		return fmt.Errorf("invalid capsuleCount %d, capsuleSizes has %d entries: %w", md.CapsuleCount, len(md.CapsuleSizes), errs.ErrConsensusViolation)
	}

	if md.CapsuleCount != len(set.Capsules) {
		return fmt.Errorf("invalid capsuleCount %d, capsules has %d entries: %w", md.CapsuleCount, len(set.Capsules), errs.ErrConsensusViolation)
	}

	var commonBucket int64 = -1

	for i, size := range md.CapsuleSizes {
		if !bucket.IsValid(size) {
			return fmt.Errorf("invalid capsule size %d at index %d: %w", size, i, errs.ErrConsensusViolation)
		}

		if commonBucket == -1 {
			commonBucket = size
		} else if size != commonBucket {
			return fmt.Errorf("invalid capsule size %d at index %d: mixed bucket sizes in one set: %w", size, i, errs.ErrConsensusViolation)
		}
	}

	var total int64
	for _, size := range md.CapsuleSizes {
		total += size
	}

	if total < md.OriginalSize {
		return fmt.Errorf("invalid capsuleSizes: sum %d < originalSize %d: %w", total, md.OriginalSize, errs.ErrConsensusViolation)
	}

	return nil
}

// Package errs defines the sentinel error values shared across the capsule
// pipeline's leaf packages and the root capsule package.
//
// Centralizing the sentinels here (rather than declaring a copy per package)
// keeps errors.Is classification working uniformly: a padding failure
// detected in internal/padding and a padding failure detected while framing
// a capsule both compare equal to the same ErrPaddingCorrupt value.
package errs

import "errors"

var (
	// ErrInputMissing indicates an input path does not exist or is not readable.
	ErrInputMissing = errors.New("capsule: input missing")
	// ErrOutputUnwritable indicates the output directory or file could not be created or written.
	ErrOutputUnwritable = errors.New("capsule: output unwritable")
	// ErrNameCollision indicates a target capsule or sidecar file already exists.
	ErrNameCollision = errors.New("capsule: name collision")
	// ErrPayloadTooLargeForBucket indicates the padding floor cannot fit the chosen bucket.
	ErrPayloadTooLargeForBucket = errors.New("capsule: payload too large for bucket")
	// ErrPaddingCorrupt indicates the pad envelope marker/size footer is inconsistent.
	ErrPaddingCorrupt = errors.New("capsule: padding corrupt")
	// ErrDecryptionFailed indicates AES-GCM tag verification failed.
	ErrDecryptionFailed = errors.New("capsule: decryption failed")
	// ErrDecompressionFailed indicates a gzip stream failed to decompress.
	ErrDecompressionFailed = errors.New("capsule: decompression failed")
	// ErrCapsuleHeaderInvalid indicates the capsule header's magic, version, CRC, or flags are wrong.
	ErrCapsuleHeaderInvalid = errors.New("capsule: header invalid")
	// ErrMetadataInvalid indicates the metadata sidecar is missing, malformed, or fails schema checks.
	ErrMetadataInvalid = errors.New("capsule: metadata invalid")
	// ErrConsensusViolation indicates a consensus-critical field is outside its allowed set.
	ErrConsensusViolation = errors.New("capsule: consensus violation")
	// ErrLengthMismatch indicates the recovered payload total did not equal the original size.
	ErrLengthMismatch = errors.New("capsule: length mismatch")
	// ErrFlagsInconsistent indicates header flags disagree with the observed capsule body.
	ErrFlagsInconsistent = errors.New("capsule: flags inconsistent")
	// ErrRngUnavailable indicates the system CSPRNG is exhausted or unavailable.
	ErrRngUnavailable = errors.New("capsule: rng unavailable")
)

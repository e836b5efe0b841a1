package capsule

// ChunkingAlgorithm identifies the bucket-planning algorithm used to produce
// a capsule set. Consensus-critical: see ValidateConsensusParameters.
const ChunkingAlgorithm = "DIG_DETERMINISTIC_V1"

// ConsensusVersionTag identifies this capsule format generation. Consensus-critical.
const ConsensusVersionTag = "DIG_CAPSULE_V1"

// EncryptionAlgorithm names the cipher used by the crypto codec.
const EncryptionAlgorithm = "AES-256-GCM"

// KeyDerivationAlgorithm names the passphrase key-expansion function.
const KeyDerivationAlgorithm = "PBKDF2-HMAC-SHA256"

// CompressionAlgorithm names the compression codec.
const CompressionAlgorithm = "gzip"

// CompressionLevel is the fixed gzip level used throughout the pipeline.
const CompressionLevel = 6

// Capsule is a per-chunk record describing one capsule file in a set.
type Capsule struct {
	// Index is the 0-based, dense position of this capsule within its set.
	Index int `json:"index"`
	// BucketSize is the bucket this capsule belongs to (an element of ListBucketSizes()).
	BucketSize int64 `json:"bucketSize"`
	// ContentLength is the number of framed payload bytes actually written, excluding the header.
	ContentLength int `json:"contentLength"`
	// ContentHash is the SHA-256 hex digest of the capsule's body bytes.
	ContentHash string `json:"contentHash"`
	// Encrypted reports whether this capsule's body passed through the crypto codec.
	Encrypted bool `json:"encrypted"`
	// Compressed reports whether this capsule's body passed through the compression codec.
	Compressed bool `json:"compressed"`
	// PostPadFlag records the creation-time postPad option that produced this capsule.
	PostPadFlag bool `json:"postPadFlag"`
}

// EncryptionInfo describes the encryption parameters used to produce a set,
// present only when the set was created with a key.
type EncryptionInfo struct {
	Algorithm      string `json:"algorithm"`
	KeyDerivation  string `json:"keyDerivation"`
	Iterations     int    `json:"iterations"`
}

// CompressionInfo describes the compression parameters used to produce a set.
type CompressionInfo struct {
	Algorithm    string `json:"algorithm"`
	Level        int    `json:"level"`
	OriginalSize int64  `json:"originalSize"`
}

// Metadata is the semantic content of a capsule set's JSON sidecar.
//
// Field order here is the canonical on-disk serialization order (see
// writeSidecar): originalSize, capsuleCount, capsuleSizes, checksum,
// chunkingAlgorithm, consensusVersion, encryptionInfo, compressionInfo.
type Metadata struct {
	OriginalSize     int64            `json:"originalSize"`
	CapsuleCount     int              `json:"capsuleCount"`
	CapsuleSizes     []int64          `json:"capsuleSizes"`
	Checksum         string           `json:"checksum"`
	ChunkingAlgorithm string          `json:"chunkingAlgorithm"`
	ConsensusVersion string           `json:"consensusVersion"`
	EncryptionInfo   *EncryptionInfo  `json:"encryptionInfo,omitempty"`
	CompressionInfo  *CompressionInfo `json:"compressionInfo,omitempty"`
}

// CapsuleSet is the in-memory representation of one transformed input: its
// set id, its ordered capsule descriptors, and its sidecar metadata.
type CapsuleSet struct {
	// ID is the SHA-256 hex digest (64 chars) of the original bytes.
	ID string
	// Capsules are ordered by Index, dense from 0.
	Capsules []Capsule
	// Metadata is the sidecar content describing this set.
	Metadata Metadata
}

// CapsuleInfo is the parsed header of a single capsule file, as returned by
// CapsuleFileInfo.
type CapsuleInfo struct {
	Version       uint16
	Encrypted     bool
	Compressed    bool
	PostPad       bool
	Index         int
	BucketSize    int64
	ContentLength int64
	IV            [12]byte
}

// SetReport is the result of DescribeSet: a cross-check of the sidecar
// metadata against the capsule files physically present in a directory,
// performed without extracting or decrypting any capsule.
//
// This is a supplemental read-only diagnostic, not part of the core
// create/extract contract: the sidecar is a derived index over the capsule
// files (the source of truth), so it can always be recomputed or audited
// the way a cache can be rebuilt from source.
type SetReport struct {
	ID                string
	Dir               string
	Metadata          Metadata
	CapsuleFilesFound int
	SizesMatch        bool
	CountMatches      bool
	Problems          []string
}

// Package cryptocodec implements the per-chunk AES-256-GCM seal/open used by
// the capsule pipeline, along with the PBKDF2-HMAC-SHA256 key expansion for
// passphrase-style keys.
package cryptocodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/crypto/pbkdf2"

	"github.com/dig-network/digcap/internal/errs"
)

// IVSize is the GCM nonce size in bytes, stored verbatim in the capsule header.
const IVSize = 12

// TagSize is the GCM authentication tag size in bytes.
const TagSize = 16

// KeySize is the AES-256 key size in bytes.
const KeySize = 32

// PBKDF2Iterations is the fixed iteration count for passphrase key expansion.
//
// Part of the on-disk consensus contract: both sides of an interoperating
// implementation must use this exact value.
const PBKDF2Iterations = 100000

// pbkdf2Salt is the fixed public salt used for passphrase key expansion.
//
// Part of the on-disk consensus contract, documented here per the capsule
// format specification. It is not a secret; it exists only to domain-separate
// this format's key derivation from any other PBKDF2 user.
var pbkdf2Salt = []byte("DIGCAPv1-PBKDF2-SALT-01")

// DeriveKey produces the 32-byte AES-256 key for a caller-supplied key input.
//
// A 32-byte input is used directly. Any other length is treated as a UTF-8
// passphrase (the empty slice is a valid passphrase) and expanded via
// PBKDF2-HMAC-SHA256 with PBKDF2Iterations and pbkdf2Salt.
func DeriveKey(key []byte) []byte {
	if len(key) == KeySize {
		out := make([]byte, KeySize)
		copy(out, key)

		return out
	}

	return pbkdf2Key(key, pbkdf2Salt, PBKDF2Iterations, KeySize)
}

// pbkdf2Key runs golang.org/x/crypto/pbkdf2 with sha256-simd as the
// HMAC hash.
func pbkdf2Key(password, salt []byte, iter, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iter, keyLen, sha256simd.New)
}

// NewIV generates a fresh 12-byte GCM nonce from the system CSPRNG.
func NewIV() ([IVSize]byte, error) {
	var iv [IVSize]byte

	if _, err := rand.Read(iv[:]); err != nil {
		return iv, fmt.Errorf("generating IV: %w: %w", errs.ErrRngUnavailable, err)
	}

	return iv, nil
}

// Seal encrypts plaintext under key/iv, authenticating aad, and returns
// ciphertext || 16-byte tag.
func Seal(key []byte, iv [IVSize]byte, plaintext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	return aead.Seal(nil, iv[:], plaintext, aad), nil
}

// Open verifies and decrypts a ciphertext||tag blob produced by Seal.
//
// Returns errs.ErrDecryptionFailed (never errs.ErrPaddingCorrupt) when the
// GCM tag fails to verify.
func Open(key []byte, iv [IVSize]byte, sealed, aad []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, iv[:], sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("constructing AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("constructing GCM: %w", err)
	}

	return aead, nil
}

// Zero overwrites a key or plaintext buffer with zeroes before it is dropped.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

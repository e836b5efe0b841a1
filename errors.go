package capsule

import (
	"errors"
	"fmt"
	"os"

	"github.com/dig-network/digcap/internal/errs"
)

// Sentinel error kinds, re-exported from internal/errs so every leaf package
// and the root pipeline classify failures against the same values.
//
// Use [errors.Is] to classify an error returned from any public operation:
//
//	if errors.Is(err, capsule.ErrDecryptionFailed) { ... }
var (
	ErrInputMissing             = errs.ErrInputMissing
	ErrOutputUnwritable         = errs.ErrOutputUnwritable
	ErrNameCollision            = errs.ErrNameCollision
	ErrPayloadTooLargeForBucket = errs.ErrPayloadTooLargeForBucket
	ErrPaddingCorrupt           = errs.ErrPaddingCorrupt
	ErrDecryptionFailed         = errs.ErrDecryptionFailed
	ErrDecompressionFailed      = errs.ErrDecompressionFailed
	ErrCapsuleHeaderInvalid     = errs.ErrCapsuleHeaderInvalid
	ErrMetadataInvalid          = errs.ErrMetadataInvalid
	ErrConsensusViolation       = errs.ErrConsensusViolation
	ErrLengthMismatch           = errs.ErrLengthMismatch
	ErrFlagsInconsistent        = errs.ErrFlagsInconsistent
	ErrRngUnavailable           = errs.ErrRngUnavailable
)

// Error is the error type returned when creation or extraction fails on a
// specific capsule, and when extraction's recovered length check fails.
// Other failures are returned as sentinel errors wrapped with fmt.Errorf.
//
// The underlying error message appears first, followed by context:
//
//	capsule: decryption failed: cipher: message authentication failed (set_id=3f9a... index=2 path=/tmp/out/3f9a..._002.capsule)
//
// Use [errors.As] to extract structured fields and [errors.Is] to classify
// against the sentinel Err* values.
type Error struct {
	// SetID is the set id (hex, possibly truncated to id16) the error occurred in, if known.
	SetID string
	// Index is the capsule index the error occurred on, or -1 if not applicable.
	Index int
	// Path is the filesystem path involved, if any.
	Path string
	// Err is the underlying cause. Compare with errors.Is against the sentinel values above.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	suffix := e.suffix()
	if suffix == "" {
		return cause
	}

	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *Error) suffix() string {
	parts := ""

	if e.SetID != "" {
		parts += "set_id=" + e.SetID
	}

	if e.Index >= 0 {
		if parts != "" {
			parts += " "
		}

		parts += fmt.Sprintf("index=%d", e.Index)
	}

	if e.Path != "" {
		if parts != "" {
			parts += " "
		}

		parts += "path=" + e.Path
	}

	if parts == "" {
		return ""
	}

	return "(" + parts + ")"
}

// wrapErr builds an *Error with the given context, or returns nil if err is nil.
func wrapErr(err error, setID, path string, index int) error {
	if err == nil {
		return nil
	}

	return &Error{SetID: setID, Index: index, Path: path, Err: err}
}

// IsNotExist reports whether err indicates a missing input path, matching
// both wrapped ErrInputMissing values and raw os.ErrNotExist-family errors.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrInputMissing) || errors.Is(err, os.ErrNotExist)
}

// Package bucket implements the deterministic size-bucket chooser shared by
// capsule creation and extraction.
//
// Given an input length, Plan picks one bucket size from a fixed, closed set
// and the number of equal-size chunks the input is split into. The rule is
// pure and depends only on the input length, so two independent
// implementations given the same length always agree on (bucket, count).
package bucket

// Sizes is the closed, ascending set of legal bucket sizes in bytes.
//
// 256 KiB, 1 MiB, 10 MiB, 100 MiB, 1000 MiB. Every pad envelope is exactly
// one of these sizes; in post-pad mode that envelope is the capsule body,
// otherwise the body is the compressed form of the envelope.
var Sizes = [5]int64{
	262144,
	1048576,
	10485760,
	104857600,
	1048576000,
}

// Min is the smallest legal bucket size, used for zero-length input.
const Min = int64(262144)

// Max is the largest legal bucket size.
const Max = int64(1048576000)

// Plan picks the bucket size and chunk count for an input of length n.
//
// Rule: b is the smallest element of Sizes with n <= b; if n exceeds every
// bucket, b = Max. k = ceil(n/b), with k = 1 when n == 0 (one capsule holding
// an all-padding envelope).
func Plan(n int64) (bucketSize int64, chunkCount int) {
	if n < 0 {
		n = 0
	}

	b := Max
	for _, candidate := range Sizes {
		if n <= candidate {
			b = candidate
			break
		}
	}

	if n == 0 {
		return b, 1
	}

	k := n / b
	if n%b != 0 {
		k++
	}

	if k < 1 {
		k = 1
	}

	return b, int(k)
}

// IsValid reports whether b is one of the legal bucket sizes.
func IsValid(b int64) bool {
	for _, candidate := range Sizes {
		if candidate == b {
			return true
		}
	}

	return false
}

// List returns the legal bucket sizes in ascending order.
//
// The returned slice is a fresh copy; callers may mutate it freely.
func List() []int64 {
	out := make([]int64, len(Sizes))
	copy(out, Sizes[:])

	return out
}

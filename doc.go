// Package capsule transforms arbitrary byte streams into a deterministic set
// of fixed-size, encrypted, compressed, padded opaque containers ("capsules")
// that can be written to disk, inspected, and losslessly reconstructed into
// the original stream.
//
// An observer of a stored capsule set learns only the capsule count and the
// bucket size, never the true payload length or content. Given the same
// input, key, and options, two independent implementations of this format
// produce byte-identical capsule sets (modulo the per-chunk IV and padding
// bytes, which are drawn from crypto/rand on every create).
//
// The core pipeline is:
//
//	input -> bucket plan -> per-chunk (pad, encrypt, compress) -> capsule file
//
// and its inverse on extraction. See [CreateFromFile], [ExtractToFile], and
// [CapsuleSet] for the public surface.
package capsule

package capsule

// Options configures CreateFromFile and CreateFromBuffer.
type Options struct {
	// Overwrite permits writing over pre-existing capsule/sidecar files in
	// outputDir. Default false: a collision raises ErrNameCollision.
	Overwrite bool
}

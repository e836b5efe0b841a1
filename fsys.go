package capsule

import (
	"github.com/dig-network/digcap/pkg/fs"
)

// diskFS is the filesystem this package's reads, directory creation,
// existence checks, removes and renames go through, rather than calling the
// os package directly. File writes do not use it: capsule files and the
// sidecar are written with natefinch/atomic, and ExtractToFile creates its
// temporary output file with os.CreateTemp. It exists so
// the pipeline can later be pointed at a fault-injecting or in-memory FS
// for testing without changing any exported signature.
var diskFS fs.FS = fs.NewReal()

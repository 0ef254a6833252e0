// Package randutil provides random identifiers for process-local scratch
// files and object keys.
package randutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// String returns a random lowercase hex identifier of length n (max 32).
func String(n int) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if n > 0 && n < len(id) {
		id = id[:n]
	}
	return id
}

// TmpPath returns a unique path under the system temp directory. Concurrent
// callers get distinct paths, so pipeline stages never collide on their
// hand-off files.
func TmpPath(n int) string {
	return filepath.Join(os.TempDir(), "envx-"+String(n))
}

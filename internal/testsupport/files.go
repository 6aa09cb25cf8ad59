package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteBytes creates path (and its parent directories) holding size filler
// bytes. Sizes below one write a single byte.
func WriteBytes(t testing.TB, path string, size int) {
	t.Helper()
	if size < 1 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

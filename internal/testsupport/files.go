package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteAudioFixture creates a fake MP3 file of roughly the requested size: an
// ID3v2 header followed by padding. Enough to exercise copy, digest, and
// external-command plumbing without real audio.
func WriteAudioFixture(t testing.TB, path string, size int64) {
	t.Helper()

	header := []byte{'I', 'D', '3', 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if size < int64(len(header)) {
		size = int64(len(header))
	}
	body := make([]byte, size)
	copy(body, header)
	for i := len(header); i < len(body); i++ {
		body[i] = byte(i % 251)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteText writes literal text to the target path, creating parents.
func WriteText(t testing.TB, path, text string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

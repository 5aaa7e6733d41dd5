// Package fileutil provides the file copy primitives the processor uses to
// move audio between the staging workspace and the library.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Copy streams src into dst, creating or truncating dst with 0o644.
func Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// CopyVerified copies src to dst and then re-reads dst from disk, comparing
// size and SHA256 against the source. The read-back catches corruption the
// write path itself would not see. On mismatch dst is removed. Returns the
// hex digest of the copied content.
func CopyVerified(src, dst string) (string, error) {
	wantSize, wantSum, err := digestFile(src)
	if err != nil {
		return "", fmt.Errorf("digest source: %w", err)
	}
	if err := Copy(src, dst); err != nil {
		return "", err
	}
	gotSize, gotSum, err := digestFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("read back copy: %w", err)
	}
	if gotSize != wantSize {
		_ = os.Remove(dst)
		return "", fmt.Errorf("copy size mismatch: source %d bytes, destination %d bytes", wantSize, gotSize)
	}
	if gotSum != wantSum {
		_ = os.Remove(dst)
		return "", fmt.Errorf("copy checksum mismatch: content corrupted in transit")
	}
	return wantSum, nil
}

func digestFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

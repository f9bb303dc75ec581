// Package integrity computes and checks the sha256 content hashes that
// protect release artifacts. Digests are lowercase hex.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMismatch is returned when content does not match its expected
// digest.
var ErrMismatch = errors.New("content hash mismatch")

// HashBytes returns the digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader returns the digest of everything readable from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the digest of the file at path, streaming the
// content rather than loading it whole.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := HashReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return sum, nil
}

// Verify compares a computed digest against the expected one, ignoring
// hex case.
func Verify(got, want string) error {
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("%w: got %s, want %s", ErrMismatch, got, want)
	}
	return nil
}

// Check verifies that data matches the expected digest.
func Check(data []byte, want string) error {
	return Verify(HashBytes(data), want)
}

// CheckFile verifies that the file at path matches the expected digest.
func CheckFile(path, want string) error {
	got, err := HashFile(path)
	if err != nil {
		return err
	}
	return Verify(got, want)
}

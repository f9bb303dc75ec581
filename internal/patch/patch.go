// Package patch produces and applies binary diffs between release
// archives using the bsdiff (BSDIFF40) format.
//
// A patch is only trusted after the rebuilt content has been verified
// against the target release's content hash; applying a structurally
// valid patch to the wrong base yields intact-looking garbage otherwise.
package patch

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/kr/binarydist"

	"github.com/adamancini/molt/internal/integrity"
)

var (
	// ErrCorrupt is returned when patch data is malformed.
	ErrCorrupt = errors.New("patch is corrupt")

	// ErrBaseMismatch is returned when a patch applies cleanly but the
	// rebuilt content does not hash to the expected target, which means
	// the patch was applied to the wrong base.
	ErrBaseMismatch = errors.New("patch does not match base")
)

// Diff computes the patch that transforms old into new.
func Diff(old, new []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := binarydist.Diff(bytes.NewReader(old), bytes.NewReader(new), &out); err != nil {
		return nil, fmt.Errorf("failed to compute patch: %w", err)
	}
	return out.Bytes(), nil
}

// Apply rebuilds content by applying patchData to base.
func Apply(base, patchData []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := binarydist.Patch(bytes.NewReader(base), &out, bytes.NewReader(patchData)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out.Bytes(), nil
}

// ApplyVerified rebuilds content by applying patchData to base and
// verifies the result against wantHash before returning it.
func ApplyVerified(base, patchData []byte, wantHash string) ([]byte, error) {
	rebuilt, err := Apply(base, patchData)
	if err != nil {
		return nil, err
	}
	if err := integrity.Check(rebuilt, wantHash); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBaseMismatch, err)
	}
	return rebuilt, nil
}

// Package release builds update repositories: it packs release
// archives, computes binary patches between consecutive releases and
// maintains the signed versions document and trust bundle that update
// clients consume.
package release

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adamancini/molt/internal/integrity"
	"github.com/adamancini/molt/internal/keys"
	"github.com/adamancini/molt/internal/manifest"
	"github.com/adamancini/molt/internal/patch"
	"github.com/adamancini/molt/internal/version"
)

// Builder accumulates releases into a repository directory. Call Write
// after adding releases to re-sign and persist the versions document.
type Builder struct {
	dir  string
	pair *keys.Pair
	man  *manifest.Manifest
}

// NewBuilder opens the repository at dir, loading and verifying an
// existing versions document if one is present.
func NewBuilder(dir string, pair *keys.Pair) (*Builder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}

	b := &Builder{dir: dir, pair: pair, man: manifest.New()}

	data, err := os.ReadFile(filepath.Join(dir, manifest.VersionsName))
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read versions document: %w", err)
	}

	m, err := manifest.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := m.Verify(pair.Public); err != nil {
		return nil, fmt.Errorf("repository was signed with a different key: %w", err)
	}

	b.man = m
	return b, nil
}

// Manifest returns the builder's working manifest.
func (b *Builder) Manifest() *manifest.Manifest {
	return b.man
}

// Dir returns the repository directory.
func (b *Builder) Dir() string {
	return b.dir
}

// AddRelease packs the contents of inputDir and publishes the result as
// the archive for the given app, version and platform.
func (b *Builder) AddRelease(app string, v version.Version, p manifest.Platform, inputDir string) (manifest.ReleaseEntry, error) {
	data, err := Pack(inputDir, p)
	if err != nil {
		return manifest.ReleaseEntry{}, err
	}
	return b.AddArchive(app, v, p, data)
}

// AddArchive publishes pre-packed archive content as a release. When a
// preceding release exists in the repository, a binary patch from it is
// generated and recorded alongside. Releases must be added in strictly
// ascending version order per app and platform.
func (b *Builder) AddArchive(app string, v version.Version, p manifest.Platform, data []byte) (manifest.ReleaseEntry, error) {
	existing := b.man.Versions(app, p)
	if n := len(existing); n > 0 && !v.GreaterThan(existing[n-1]) {
		return manifest.ReleaseEntry{}, fmt.Errorf(
			"release %s is not newer than already published %s", v, existing[len(existing)-1])
	}

	entry := manifest.ReleaseEntry{
		FileHash: integrity.HashBytes(data),
		FileSize: int64(len(data)),
		Filename: manifest.ArchiveName(app, v, p),
	}

	if len(existing) > 0 {
		patchEntry, err := b.buildPatch(app, v, p, existing[len(existing)-1], data)
		if err != nil {
			return manifest.ReleaseEntry{}, err
		}
		entry.PatchName = patchEntry.PatchName
		entry.PatchHash = patchEntry.PatchHash
		entry.PatchSize = patchEntry.PatchSize
	}

	if err := writeAtomic(filepath.Join(b.dir, entry.Filename), data); err != nil {
		return manifest.ReleaseEntry{}, fmt.Errorf("failed to write archive: %w", err)
	}

	b.man.AddRelease(app, v, p, entry)
	b.man.SetLatest(app, v.Channel, p, v)
	return entry, nil
}

// buildPatch diffs the previous release's archive against data and
// writes the patch artifact. A previous archive missing from the
// repository directory skips patch generation: the release ships
// full-download only.
func (b *Builder) buildPatch(app string, v version.Version, p manifest.Platform, prev version.Version, data []byte) (manifest.ReleaseEntry, error) {
	prevEntry, err := b.man.Entry(app, prev, p)
	if err != nil {
		return manifest.ReleaseEntry{}, err
	}

	prevData, err := os.ReadFile(filepath.Join(b.dir, prevEntry.Filename))
	if errors.Is(err, os.ErrNotExist) {
		return manifest.ReleaseEntry{}, nil
	}
	if err != nil {
		return manifest.ReleaseEntry{}, fmt.Errorf("failed to read previous archive: %w", err)
	}

	patchData, err := patch.Diff(prevData, data)
	if err != nil {
		return manifest.ReleaseEntry{}, err
	}

	index := len(b.man.Versions(app, p)) + 1
	name := manifest.PatchName(app, p, index)
	if err := writeAtomic(filepath.Join(b.dir, name), patchData); err != nil {
		return manifest.ReleaseEntry{}, fmt.Errorf("failed to write patch: %w", err)
	}

	return manifest.ReleaseEntry{
		PatchName: name,
		PatchHash: integrity.HashBytes(patchData),
		PatchSize: int64(len(patchData)),
	}, nil
}

// Write re-signs the manifest and persists the versions document and
// trust bundle into the repository.
func (b *Builder) Write() error {
	if err := b.man.Sign(b.pair); err != nil {
		return err
	}

	data, err := b.man.Encode()
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(b.dir, manifest.VersionsName), data); err != nil {
		return fmt.Errorf("failed to write versions document: %w", err)
	}

	bundle, err := keys.NewBundle(b.pair).Encode()
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(b.dir, manifest.KeysName), bundle); err != nil {
		return fmt.Errorf("failed to write trust bundle: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

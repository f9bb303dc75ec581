// Package cache manages the client's on-disk update state: the cached
// versions document and downloaded release archives kept under the
// application's per-user data directory.
//
// Layout:
//
//	<data dir>/versions.gz   last fetched versions document
//	<data dir>/update/       downloaded archives and rebuilt releases
//
// All writes go through a temp file in the destination directory
// followed by a rename, so a crash mid-write never leaves a truncated
// file behind. The cached versions document is re-verified on every
// load; a tampered cache is indistinguishable from a tampered download.
package cache

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/adamancini/molt/internal/appdirs"
	"github.com/adamancini/molt/internal/manifest"
)

const updateDirName = "update"

// Store manages the local update state for one application.
type Store struct {
	dataDir string
}

// New creates a store rooted at the application's per-user data
// directory.
func New(company, app string) (*Store, error) {
	dir, err := appdirs.UserDataDir(company, app)
	if err != nil {
		return nil, err
	}
	return &Store{dataDir: dir}, nil
}

// NewWithDir creates a store rooted at a custom directory (for testing
// and for explicit data directory configuration).
func NewWithDir(dir string) *Store {
	return &Store{dataDir: dir}
}

// DataDir returns the store's root directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// UpdateDir returns the directory holding downloaded archives.
func (s *Store) UpdateDir() string {
	return filepath.Join(s.dataDir, updateDirName)
}

// SaveManifest stores the raw versions document. Callers must have
// verified it first.
func (s *Store) SaveManifest(data []byte) error {
	if err := writeAtomic(filepath.Join(s.dataDir, manifest.VersionsName), data); err != nil {
		return fmt.Errorf("failed to store versions document: %w", err)
	}
	return nil
}

// LoadManifest reads the cached versions document and re-verifies its
// signature against pub before returning it. A missing cache satisfies
// errors.Is against os.ErrNotExist.
func (s *Store) LoadManifest(pub ed25519.PublicKey) (*manifest.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, manifest.VersionsName))
	if err != nil {
		return nil, fmt.Errorf("no cached versions document: %w", err)
	}

	m, err := manifest.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("cached versions document is unreadable: %w", err)
	}
	if err := m.Verify(pub); err != nil {
		return nil, fmt.Errorf("cached versions document failed verification: %w", err)
	}
	return m, nil
}

// ArtifactPath returns where the named artifact lives in the cache,
// whether or not it exists.
func (s *Store) ArtifactPath(name string) string {
	return filepath.Join(s.UpdateDir(), name)
}

// HasArtifact reports whether the named artifact is cached.
func (s *Store) HasArtifact(name string) bool {
	info, err := os.Stat(s.ArtifactPath(name))
	return err == nil && info.Mode().IsRegular()
}

// ReadArtifact returns the cached artifact's content.
func (s *Store) ReadArtifact(name string) ([]byte, error) {
	data, err := os.ReadFile(s.ArtifactPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read cached artifact %s: %w", name, err)
	}
	return data, nil
}

// SaveArtifact stores an artifact in the cache. Callers must have
// verified the content hash first.
func (s *Store) SaveArtifact(name string, data []byte) error {
	if err := writeAtomic(s.ArtifactPath(name), data); err != nil {
		return fmt.Errorf("failed to store artifact %s: %w", name, err)
	}
	return nil
}

// RemoveArtifact deletes a cached artifact if present.
func (s *Store) RemoveArtifact(name string) error {
	err := os.Remove(s.ArtifactPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact %s: %w", name, err)
	}
	return nil
}

// Artifacts lists the cached artifact names, sorted. An empty cache is
// not an error.
func (s *Store) Artifacts() ([]string, error) {
	entries, err := os.ReadDir(s.UpdateDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read update directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []string
	Kept    int
}

// Prune removes every cached artifact whose name is not in keep. The
// archive of the running version stays in keep so future patches have
// their base.
func (s *Store) Prune(keep ...string) (*PruneResult, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, name := range keep {
		keepSet[name] = true
	}

	entries, err := os.ReadDir(s.UpdateDir())
	if err != nil {
		if os.IsNotExist(err) {
			return &PruneResult{}, nil
		}
		return nil, fmt.Errorf("failed to read update directory: %w", err)
	}

	result := &PruneResult{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if keepSet[entry.Name()] {
			result.Kept++
			continue
		}
		if err := os.Remove(filepath.Join(s.UpdateDir(), entry.Name())); err != nil {
			return nil, fmt.Errorf("failed to delete artifact %s: %w", entry.Name(), err)
		}
		result.Deleted = append(result.Deleted, entry.Name())
	}
	return result, nil
}

// writeAtomic writes data to path through a temp file in the same
// directory plus a rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}
	return nil
}

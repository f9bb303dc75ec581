package update

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/adamancini/molt/internal/cache"
	"github.com/adamancini/molt/internal/fetch"
	"github.com/adamancini/molt/internal/keys"
	"github.com/adamancini/molt/internal/manifest"
	"github.com/adamancini/molt/internal/release"
	"github.com/adamancini/molt/internal/version"
)

// fixture is an update repository with two published releases of demo
// for nix, 1.2.3.2.0 and 1.2.5.2.0, plus an empty client cache.
type fixture struct {
	repo     string
	pair     *keys.Pair
	store    *cache.Store
	archives map[string][]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pair, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	repo := t.TempDir()
	b, err := release.NewBuilder(repo, pair)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	v1 := append([]byte("release one "), bytes.Repeat([]byte("payload "), 512)...)
	v2 := append(append([]byte(nil), v1...), []byte("plus the new feature")...)

	if _, err := b.AddArchive("demo", mustVersion(t, "1.2.3.2.0"), manifest.Nix, v1); err != nil {
		t.Fatalf("AddArchive() error = %v", err)
	}
	if _, err := b.AddArchive("demo", mustVersion(t, "1.2.5.2.0"), manifest.Nix, v2); err != nil {
		t.Fatalf("AddArchive() error = %v", err)
	}
	if err := b.Write(); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	return &fixture{
		repo:  repo,
		pair:  pair,
		store: cache.NewWithDir(t.TempDir()),
		archives: map[string][]byte{
			"1.2.3.2.0": v1,
			"1.2.5.2.0": v2,
		},
	}
}

// seedBase puts the current version's archive into the client cache, as
// a previous update run would have.
func (f *fixture) seedBase(t *testing.T, v string) string {
	t.Helper()

	name := manifest.ArchiveName("demo", mustVersion(t, v), manifest.Nix)
	if err := f.store.SaveArtifact(name, f.archives[v]); err != nil {
		t.Fatalf("SaveArtifact() error = %v", err)
	}
	return name
}

func (f *fixture) updater(t *testing.T, current string, source fetch.Source) *Updater {
	t.Helper()

	if source == nil {
		source = fetch.NewDirSource(f.repo)
	}
	return New(Options{
		App:      "demo",
		Current:  mustVersion(t, current),
		Channel:  version.Stable,
		Platform: manifest.Nix,
		Public:   f.pair.Public,
		Source:   source,
		Store:    f.store,
	})
}

// recordingSource wraps a source and records fetched artifact names.
type recordingSource struct {
	inner fetch.Source
	names []string
}

func (s *recordingSource) Fetch(name string) ([]byte, error) {
	s.names = append(s.names, name)
	return s.inner.Fetch(name)
}

func (s *recordingSource) fetched(name string) bool {
	for _, got := range s.names {
		if got == name {
			return true
		}
	}
	return false
}

func TestRunPatchPath(t *testing.T) {
	f := newFixture(t)
	f.seedBase(t, "1.2.3.2.0")

	src := &recordingSource{inner: fetch.NewDirSource(f.repo)}
	result := f.updater(t, "1.2.3.2.0", src).Run()

	if result.Status != StatusRestarting {
		t.Fatalf("result.Status = %q, want %q (err: %v)", result.Status, StatusRestarting, result.Err)
	}
	if result.Target != "1.2.5.2.0" {
		t.Errorf("result.Target = %q, want %q", result.Target, "1.2.5.2.0")
	}
	if result.Archive != "demo-nix-1.2.5.tar.gz" {
		t.Errorf("result.Archive = %q, want %q", result.Archive, "demo-nix-1.2.5.tar.gz")
	}

	// The patch was fetched, the full archive was not.
	if !src.fetched("demo-nix-2") {
		t.Errorf("patch artifact was not fetched; fetched %v", src.names)
	}
	if src.fetched("demo-nix-1.2.5.tar.gz") {
		t.Errorf("full archive fetched on the patch path; fetched %v", src.names)
	}

	staged, err := f.store.ReadArtifact(result.Archive)
	if err != nil {
		t.Fatalf("ReadArtifact() error = %v", err)
	}
	if !bytes.Equal(staged, f.archives["1.2.5.2.0"]) {
		t.Error("staged archive differs from the published release")
	}
}

func TestRunFullPathWithoutBase(t *testing.T) {
	f := newFixture(t)

	src := &recordingSource{inner: fetch.NewDirSource(f.repo)}
	result := f.updater(t, "1.2.3.2.0", src).Run()

	if result.Status != StatusRestarting {
		t.Fatalf("result.Status = %q, want %q (err: %v)", result.Status, StatusRestarting, result.Err)
	}
	if src.fetched("demo-nix-2") {
		t.Errorf("patch fetched despite missing base; fetched %v", src.names)
	}
	if !src.fetched("demo-nix-1.2.5.tar.gz") {
		t.Errorf("full archive was not fetched; fetched %v", src.names)
	}

	staged, err := f.store.ReadArtifact(result.Archive)
	if err != nil {
		t.Fatalf("ReadArtifact() error = %v", err)
	}
	if !bytes.Equal(staged, f.archives["1.2.5.2.0"]) {
		t.Error("staged archive differs from the published release")
	}
}

func TestRunPatchAndFullYieldIdenticalArtifacts(t *testing.T) {
	patched := newFixture(t)
	patched.seedBase(t, "1.2.3.2.0")
	patchResult := patched.updater(t, "1.2.3.2.0", nil).Run()
	if patchResult.Status != StatusRestarting {
		t.Fatalf("patch run status = %q (err: %v)", patchResult.Status, patchResult.Err)
	}

	full := newFixture(t)
	fullResult := full.updater(t, "1.2.3.2.0", nil).Run()
	if fullResult.Status != StatusRestarting {
		t.Fatalf("full run status = %q (err: %v)", fullResult.Status, fullResult.Err)
	}

	patchedBytes, err := patched.store.ReadArtifact(patchResult.Archive)
	if err != nil {
		t.Fatal(err)
	}
	fullBytes, err := full.store.ReadArtifact(fullResult.Archive)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(patchedBytes, fullBytes) {
		t.Error("patch path and full path staged different bytes")
	}
}

func TestRunNoUpdate(t *testing.T) {
	f := newFixture(t)

	result := f.updater(t, "1.2.5.2.0", nil).Run()
	if result.Status != StatusNoUpdate {
		t.Errorf("result.Status = %q, want %q", result.Status, StatusNoUpdate)
	}
	if !result.Ok() {
		t.Error("result.Ok() = false for no-update run")
	}
}

func TestRunArchiveDeletedFromServer(t *testing.T) {
	f := newFixture(t)

	if err := os.Remove(filepath.Join(f.repo, "demo-nix-1.2.5.tar.gz")); err != nil {
		t.Fatal(err)
	}

	result := f.updater(t, "1.2.3.2.0", nil).Run()
	if result.Status != StatusDownloadFailed {
		t.Errorf("result.Status = %q, want %q", result.Status, StatusDownloadFailed)
	}
	if result.Ok() {
		t.Error("result.Ok() = true for failed run")
	}
}

func TestRunFallbackOnMissingPatch(t *testing.T) {
	f := newFixture(t)
	f.seedBase(t, "1.2.3.2.0")

	if err := os.Remove(filepath.Join(f.repo, "demo-nix-2")); err != nil {
		t.Fatal(err)
	}

	src := &recordingSource{inner: fetch.NewDirSource(f.repo)}
	result := f.updater(t, "1.2.3.2.0", src).Run()

	if result.Status != StatusRestarting {
		t.Fatalf("result.Status = %q, want %q (err: %v)", result.Status, StatusRestarting, result.Err)
	}
	if !src.fetched("demo-nix-2") || !src.fetched("demo-nix-1.2.5.tar.gz") {
		t.Errorf("expected patch attempt then full download; fetched %v", src.names)
	}
}

func TestRunFallbackOnCorruptPatch(t *testing.T) {
	f := newFixture(t)
	f.seedBase(t, "1.2.3.2.0")

	// Corrupt the published patch; its hash no longer matches the
	// manifest.
	if err := os.WriteFile(filepath.Join(f.repo, "demo-nix-2"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := f.updater(t, "1.2.3.2.0", nil).Run()
	if result.Status != StatusRestarting {
		t.Fatalf("result.Status = %q, want %q (err: %v)", result.Status, StatusRestarting, result.Err)
	}

	staged, err := f.store.ReadArtifact(result.Archive)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(staged, f.archives["1.2.5.2.0"]) {
		t.Error("staged archive differs from the published release")
	}
}

func TestRunPatchStagingDiskError(t *testing.T) {
	f := newFixture(t)
	f.seedBase(t, "1.2.3.2.0")

	// A directory squatting on the target artifact path makes staging
	// the rebuilt archive fail at rename time.
	if err := os.MkdirAll(f.store.ArtifactPath("demo-nix-1.2.5.tar.gz"), 0o755); err != nil {
		t.Fatal(err)
	}

	src := &recordingSource{inner: fetch.NewDirSource(f.repo)}
	result := f.updater(t, "1.2.3.2.0", src).Run()

	if result.Status != StatusPatchFailed {
		t.Fatalf("result.Status = %q, want %q (err: %v)", result.Status, StatusPatchFailed, result.Err)
	}
	if result.Ok() {
		t.Error("result.Ok() = true for failed run")
	}

	// Disk failures are terminal: the full archive was never fetched.
	if !src.fetched("demo-nix-2") {
		t.Errorf("patch artifact was not fetched; fetched %v", src.names)
	}
	if src.fetched("demo-nix-1.2.5.tar.gz") {
		t.Errorf("full download attempted after a staging failure; fetched %v", src.names)
	}
}

func TestRunFallbackExhausted(t *testing.T) {
	f := newFixture(t)
	f.seedBase(t, "1.2.3.2.0")

	// Both the patch and the full archive are gone: the single
	// fallback fails too.
	if err := os.Remove(filepath.Join(f.repo, "demo-nix-2")); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(f.repo, "demo-nix-1.2.5.tar.gz")); err != nil {
		t.Fatal(err)
	}

	result := f.updater(t, "1.2.3.2.0", nil).Run()
	if result.Status != StatusDownloadFailed {
		t.Errorf("result.Status = %q, want %q", result.Status, StatusDownloadFailed)
	}
}

func TestRunFullArchiveHashMismatch(t *testing.T) {
	f := newFixture(t)

	// Replace the published archive with different content.
	if err := os.WriteFile(filepath.Join(f.repo, "demo-nix-1.2.5.tar.gz"), []byte("swapped"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := f.updater(t, "1.2.3.2.0", nil).Run()
	if result.Status != StatusDownloadFailed {
		t.Errorf("result.Status = %q, want %q", result.Status, StatusDownloadFailed)
	}

	// The swapped content must not have been promoted into the cache.
	if f.store.HasArtifact("demo-nix-1.2.5.tar.gz") {
		t.Error("unverified archive was cached")
	}
}

func TestRunManifestSignedWithForeignKey(t *testing.T) {
	f := newFixture(t)

	other, err := keys.Generate()
	if err != nil {
		t.Fatal(err)
	}

	u := New(Options{
		App:      "demo",
		Current:  mustVersion(t, "1.2.3.2.0"),
		Channel:  version.Stable,
		Platform: manifest.Nix,
		Public:   other.Public,
		Source:   fetch.NewDirSource(f.repo),
		Store:    f.store,
	})

	result := u.Run()
	if result.Status != StatusVerificationFailed {
		t.Errorf("result.Status = %q, want %q", result.Status, StatusVerificationFailed)
	}
}

func TestRunManifestUnparseable(t *testing.T) {
	f := newFixture(t)

	if err := os.WriteFile(filepath.Join(f.repo, manifest.VersionsName), []byte("not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := f.updater(t, "1.2.3.2.0", nil).Run()
	if result.Status != StatusVerificationFailed {
		t.Errorf("result.Status = %q, want %q", result.Status, StatusVerificationFailed)
	}
}

func TestRunWritesManifestThroughToCache(t *testing.T) {
	f := newFixture(t)

	if result := f.updater(t, "1.2.5.2.0", nil).Run(); result.Status != StatusNoUpdate {
		t.Fatalf("result.Status = %q, want %q", result.Status, StatusNoUpdate)
	}

	if _, err := f.store.LoadManifest(f.pair.Public); err != nil {
		t.Errorf("LoadManifest() after run error = %v", err)
	}
}

func TestRunOfflineDiscoveryFromCache(t *testing.T) {
	f := newFixture(t)

	// First run caches the versions document.
	if result := f.updater(t, "1.2.5.2.0", nil).Run(); result.Status != StatusNoUpdate {
		t.Fatalf("priming run status = %q", result.Status)
	}

	// Later the repository is unreachable: discovery still works from
	// the verified cache.
	offline := fetch.NewDirSource(filepath.Join(t.TempDir(), "missing"))

	if result := f.updater(t, "1.2.5.2.0", offline).Run(); result.Status != StatusNoUpdate {
		t.Errorf("offline no-update run status = %q, want %q", result.Status, StatusNoUpdate)
	}

	// An update is discoverable offline, but not downloadable.
	result := f.updater(t, "1.2.3.2.0", offline).Run()
	if result.Status != StatusDownloadFailed {
		t.Errorf("offline update run status = %q, want %q", result.Status, StatusDownloadFailed)
	}
}

func TestRunNoManifestAnywhere(t *testing.T) {
	f := newFixture(t)

	offline := fetch.NewDirSource(filepath.Join(t.TempDir(), "missing"))
	result := f.updater(t, "1.2.3.2.0", offline).Run()

	if result.Status != StatusDownloadFailed {
		t.Errorf("result.Status = %q, want %q", result.Status, StatusDownloadFailed)
	}
}

type fakeRestarter struct {
	path string
}

func (r *fakeRestarter) Restart(archivePath string) error {
	r.path = archivePath
	return nil
}

func TestRestart(t *testing.T) {
	f := newFixture(t)

	restarter := &fakeRestarter{}
	u := New(Options{
		App:       "demo",
		Current:   mustVersion(t, "1.2.3.2.0"),
		Channel:   version.Stable,
		Platform:  manifest.Nix,
		Public:    f.pair.Public,
		Source:    fetch.NewDirSource(f.repo),
		Store:     f.store,
		Restarter: restarter,
	})

	result := u.Run()
	if result.Status != StatusRestarting {
		t.Fatalf("result.Status = %q (err: %v)", result.Status, result.Err)
	}

	if err := u.Restart(result.Archive); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if restarter.path != f.store.ArtifactPath(result.Archive) {
		t.Errorf("restarter received %q, want %q", restarter.path, f.store.ArtifactPath(result.Archive))
	}
}

func TestRestartWithoutRestarter(t *testing.T) {
	f := newFixture(t)

	if err := f.updater(t, "1.2.3.2.0", nil).Restart("demo-nix-1.2.5.tar.gz"); err != nil {
		t.Errorf("Restart() without restarter error = %v", err)
	}
}

func TestCheckReportsWithoutDownloading(t *testing.T) {
	f := newFixture(t)
	f.seedBase(t, "1.2.3.2.0")

	src := &recordingSource{inner: fetch.NewDirSource(f.repo)}
	plan, err := f.updater(t, "1.2.3.2.0", src).Check()
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	if plan.Kind != PatchUpdate {
		t.Errorf("plan.Kind = %v, want %v", plan.Kind, PatchUpdate)
	}
	if got := plan.Target.String(); got != "1.2.5.2.0" {
		t.Errorf("plan.Target = %s, want 1.2.5.2.0", got)
	}

	// Only the versions document was fetched.
	if src.fetched("demo-nix-2") || src.fetched("demo-nix-1.2.5.tar.gz") {
		t.Errorf("Check() fetched artifacts: %v", src.names)
	}
}

func TestCheckUpToDate(t *testing.T) {
	f := newFixture(t)

	plan, err := f.updater(t, "1.2.5.2.0", nil).Check()
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if plan.Kind != NoUpdate {
		t.Errorf("plan.Kind = %v, want %v", plan.Kind, NoUpdate)
	}
}

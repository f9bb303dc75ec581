package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamancini/molt/internal/keys"
	"github.com/adamancini/molt/internal/manifest"
)

func releaseFixture(t *testing.T, content string) (inputDir, repoDir, keysDir string) {
	t.Helper()

	inputDir = t.TempDir()
	if err := os.WriteFile(filepath.Join(inputDir, "demo"), []byte(content), 0o755); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	repoDir = filepath.Join(t.TempDir(), "repo")
	keysDir = t.TempDir()

	pair, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if err := pair.Save(keysDir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return inputDir, repoDir, keysDir
}

func TestRunRelease_FirstAndSecond(t *testing.T) {
	inputDir, repoDir, keysDir := releaseFixture(t, "release one")
	setGlobals(t, "")

	var err error
	out := captureStdout(t, func() {
		err = runRelease(inputDir, repoDir, keysDir, "demo", "1.0.0", "")
	})
	if err != nil {
		t.Fatalf("runRelease() error = %v", err)
	}
	if !strings.Contains(out, "Published demo 1.0.0") {
		t.Errorf("runRelease() output = %q, want published line", out)
	}
	if !strings.Contains(out, "patch:   none") {
		t.Errorf("runRelease() output = %q, want no patch for the first release", out)
	}

	// A second release carries a patch from the first.
	if err := os.WriteFile(filepath.Join(inputDir, "demo"), []byte("release two"), 0o755); err != nil {
		t.Fatalf("failed to rewrite payload: %v", err)
	}
	out = captureStdout(t, func() {
		err = runRelease(inputDir, repoDir, keysDir, "demo", "1.0.1", "")
	})
	if err != nil {
		t.Fatalf("runRelease() second error = %v", err)
	}
	patchName := manifest.PatchName("demo", manifest.CurrentPlatform(), 2)
	if !strings.Contains(out, "patch:   "+patchName) {
		t.Errorf("runRelease() output = %q, want patch %s", out, patchName)
	}

	for _, name := range []string{manifest.VersionsName, manifest.KeysName, patchName} {
		if _, statErr := os.Stat(filepath.Join(repoDir, name)); statErr != nil {
			t.Errorf("repository missing %s: %v", name, statErr)
		}
	}
}

func TestRunRelease_ExplicitPlatform(t *testing.T) {
	inputDir, repoDir, keysDir := releaseFixture(t, "windows build")
	setGlobals(t, "")

	var err error
	out := captureStdout(t, func() {
		err = runRelease(inputDir, repoDir, keysDir, "demo", "2.0.0", "win")
	})
	if err != nil {
		t.Fatalf("runRelease() error = %v", err)
	}
	if !strings.Contains(out, "demo-win-2.0.0.zip") {
		t.Errorf("runRelease() output = %q, want zip archive for win", out)
	}
}

func TestRunRelease_Validation(t *testing.T) {
	inputDir, repoDir, keysDir := releaseFixture(t, "content")

	tests := []struct {
		name     string
		app      string
		version  string
		platform string
		wantErr  string
	}{
		{name: "missing app", version: "1.0.0", wantErr: "--app"},
		{name: "missing version", app: "demo", wantErr: "--version"},
		{name: "bad version", app: "demo", version: "not.a.version", wantErr: "version"},
		{name: "bad platform", app: "demo", version: "1.0.0", platform: "amiga", wantErr: "platform"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runRelease(inputDir, repoDir, keysDir, tt.app, tt.version, tt.platform)
			if err == nil {
				t.Fatalf("runRelease() error = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("runRelease() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunRelease_NoKeys(t *testing.T) {
	inputDir, repoDir, _ := releaseFixture(t, "content")

	err := runRelease(inputDir, repoDir, t.TempDir(), "demo", "1.0.0", "")
	if err == nil {
		t.Fatal("runRelease() without signing keys returned nil error")
	}
	if !strings.Contains(err.Error(), "signing key") {
		t.Errorf("runRelease() error = %v, want signing key hint", err)
	}
}

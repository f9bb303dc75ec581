package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/adamancini/molt/internal/keys"
	"github.com/adamancini/molt/internal/manifest"
	"github.com/adamancini/molt/internal/release"
)

// captureStdout captures stdout output during function execution.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}

	os.Stdout = w

	f()

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close pipe: %v", err)
	}
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("failed to read captured output: %v", err)
	}

	return buf.String()
}

// setGlobals points the package flags at a config file for the duration
// of the test and restores them afterwards.
func setGlobals(t *testing.T, config string) {
	t.Helper()

	oldConfig, oldFormat, oldQuiet := configPath, outputFormat, quiet
	configPath, outputFormat, quiet = config, "text", true
	t.Cleanup(func() {
		configPath, outputFormat, quiet = oldConfig, oldFormat, oldQuiet
	})
}

// buildTestRepo publishes the given versions of app for the current
// platform into a fresh repository directory.
func buildTestRepo(t *testing.T, app string, versions ...string) (string, *keys.Pair) {
	t.Helper()

	repoDir := t.TempDir()
	pair, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	builder, err := release.NewBuilder(repoDir, pair)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	p := manifest.CurrentPlatform()
	for _, ver := range versions {
		v, err := parseVersion(ver)
		if err != nil {
			t.Fatalf("parseVersion(%q) error = %v", ver, err)
		}

		inputDir := t.TempDir()
		content := []byte("binary content for " + ver)
		if err := os.WriteFile(filepath.Join(inputDir, app), content, 0o755); err != nil {
			t.Fatalf("failed to write payload: %v", err)
		}

		if _, err := builder.AddRelease(app, v, p, inputDir); err != nil {
			t.Fatalf("AddRelease(%s) error = %v", ver, err)
		}
	}

	if err := builder.Write(); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return repoDir, pair
}

// writeTestConfig writes a molt.toml wired to the given repository and
// returns its path.
func writeTestConfig(t *testing.T, app, current, repoDir, dataDir string, pair *keys.Pair) string {
	t.Helper()

	content := fmt.Sprintf(`app = %q
company = "Molt Test"
version = %q
channel = "stable"
public_key = %q
update_url = %q
data_dir = %q
`, app, current, pair.PublicString(), repoDir, dataDir)

	path := filepath.Join(t.TempDir(), "molt.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func tomlConfig(t *testing.T) string {
	t.Helper()
	return `
app = "demo"
company = "Example Co"
version = "1.2.3"
public_key = "` + testPublicKey(t) + `"
update_url = "https://updates.example.com/demo"
`
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "molt.toml", tomlConfig(t))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App != "demo" {
		t.Errorf("App = %q, want %q", cfg.App, "demo")
	}
	if cfg.Channel != "stable" {
		t.Errorf("Channel = %q, want default %q", cfg.Channel, "stable")
	}
	if cfg.Binary != "demo" {
		t.Errorf("Binary = %q, want default %q", cfg.Binary, "demo")
	}

	v, err := cfg.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if got := v.String(); got != "1.2.3.2.0" {
		t.Errorf("CurrentVersion() = %s, want 1.2.3.2.0", got)
	}

	if _, err := cfg.DecodedPublicKey(); err != nil {
		t.Errorf("DecodedPublicKey() error = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load() of missing file returned nil error")
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "molt.toml", `app = "demo"`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() of incomplete config returned nil error")
	}
	if !strings.Contains(err.Error(), "validation errors") {
		t.Errorf("Load() error = %q, want validation errors", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	os.Setenv("MOLT_CHANNEL", "beta")
	os.Setenv("MOLT_UPDATE_URL", "/srv/updates")
	defer os.Unsetenv("MOLT_CHANNEL")
	defer os.Unsetenv("MOLT_UPDATE_URL")

	path := writeConfig(t, t.TempDir(), "molt.toml", tomlConfig(t))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Channel != "beta" {
		t.Errorf("Channel = %q, want env override %q", cfg.Channel, "beta")
	}
	if cfg.UpdateURL != "/srv/updates" {
		t.Errorf("UpdateURL = %q, want env override %q", cfg.UpdateURL, "/srv/updates")
	}
}

func TestFindExplicitPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "custom.toml", "")

	got, err := Find(path)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != path {
		t.Errorf("Find() = %q, want %q", got, path)
	}
}

func TestFindExplicitPathMissing(t *testing.T) {
	if _, err := Find(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Find() of missing explicit path returned nil error")
	}
}

func TestFindEnvPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "env.toml", "")
	os.Setenv("MOLT_CONFIG", path)
	defer os.Unsetenv("MOLT_CONFIG")

	got, err := Find("")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != path {
		t.Errorf("Find() = %q, want %q", got, path)
	}
}

func TestFindWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "molt.toml", "")

	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(orig)

	got, err := Find("")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	// Compare resolved paths; macOS tempdirs involve symlinks.
	wantInfo, _ := os.Stat(path)
	gotInfo, err := os.Stat(got)
	if err != nil {
		t.Fatalf("stat %q: %v", got, err)
	}
	if !os.SameFile(wantInfo, gotInfo) {
		t.Errorf("Find() = %q, want %q", got, path)
	}
}

func TestResolveDataDirOverride(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/demo"}

	got, err := cfg.ResolveDataDir()
	if err != nil {
		t.Fatalf("ResolveDataDir() error = %v", err)
	}
	if got != "/var/lib/demo" {
		t.Errorf("ResolveDataDir() = %q, want %q", got, "/var/lib/demo")
	}
}

func TestResolveDataDirDefault(t *testing.T) {
	cfg := &Config{App: "demo", Company: "Example Co"}

	got, err := cfg.ResolveDataDir()
	if err != nil {
		t.Fatalf("ResolveDataDir() error = %v", err)
	}
	if !strings.Contains(got, "demo") {
		t.Errorf("ResolveDataDir() = %q, want path containing app name", got)
	}
}

func TestResolveUpdateURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"https passthrough", "https://updates.example.com/demo", "https://updates.example.com/demo"},
		{"http passthrough", "http://localhost:8000", "http://localhost:8000"},
		{"plain dir", "/srv/updates", "/srv/updates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{UpdateURL: tt.in}
			got, err := cfg.ResolveUpdateURL()
			if err != nil {
				t.Fatalf("ResolveUpdateURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveUpdateURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

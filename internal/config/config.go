// Package config handles molt configuration parsing and location resolution.
package config

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/adamancini/molt/internal/appdirs"
	"github.com/adamancini/molt/internal/keys"
	"github.com/adamancini/molt/internal/version"
)

// Config is the launch-time surface of the update client: everything the
// packaging step decides and the running binary consumes. It is built once
// by Load and passed into constructors; nothing mutates it afterwards.
type Config struct {
	// App is the application name, used in artifact filenames and as the
	// manifest key.
	App string `yaml:"app" toml:"app" json:"app"`

	// Company is the vendor identifier, used to place the per-user data
	// directory.
	Company string `yaml:"company" toml:"company" json:"company"`

	// Version is the currently running version, in either the external
	// ("1.2.3", "2.0.0-beta.1") or the internal five-field form.
	Version string `yaml:"version" toml:"version" json:"version"`

	// Channel selects which "latest" pointer to follow. Defaults to stable.
	Channel string `yaml:"channel,omitempty" toml:"channel,omitempty" json:"channel,omitempty"`

	// PublicKey is the base64-encoded ed25519 key that signed the version
	// manifest. Updates are rejected unless the manifest verifies against it.
	PublicKey string `yaml:"public_key" toml:"public_key" json:"public_key"`

	// UpdateURL is where manifests and artifacts live: an http(s) base URL
	// or a local directory.
	UpdateURL string `yaml:"update_url" toml:"update_url" json:"update_url"`

	// DataDir overrides the per-OS user data directory. Optional.
	DataDir string `yaml:"data_dir,omitempty" toml:"data_dir,omitempty" json:"data_dir,omitempty"`

	// Binary is the executable's path inside the update archive. Defaults
	// to the app name.
	Binary string `yaml:"binary,omitempty" toml:"binary,omitempty" json:"binary,omitempty"`
}

// envPrefix is the prefix for environment variable overrides: every Config
// field can be set via MOLT_APP, MOLT_CHANNEL, MOLT_UPDATE_URL and so on.
const envPrefix = "MOLT_"

// applyEnv overrides fields from MOLT_* environment variables.
func (c *Config) applyEnv() {
	set := func(dst *string, name string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	set(&c.App, "APP")
	set(&c.Company, "COMPANY")
	set(&c.Version, "VERSION")
	set(&c.Channel, "CHANNEL")
	set(&c.PublicKey, "PUBLIC_KEY")
	set(&c.UpdateURL, "UPDATE_URL")
	set(&c.DataDir, "DATA_DIR")
	set(&c.Binary, "BINARY")
}

// applyDefaults fills fields that have sensible defaults.
func (c *Config) applyDefaults() {
	if c.Channel == "" {
		c.Channel = "stable"
	}
	if c.Binary == "" {
		c.Binary = c.App
	}
}

// CurrentVersion parses the configured version. Validation guarantees this
// succeeds for a loaded Config.
func (c *Config) CurrentVersion() (version.Version, error) {
	if v, err := version.Parse(c.Version); err == nil {
		return v, nil
	}
	return version.ParseExternal(c.Version)
}

// ReleaseChannel parses the configured channel name.
func (c *Config) ReleaseChannel() (version.Channel, error) {
	return version.ParseChannel(c.Channel)
}

// DecodedPublicKey decodes the configured signing key.
func (c *Config) DecodedPublicKey() (ed25519.PublicKey, error) {
	return keys.DecodePublic(c.PublicKey)
}

// ResolveDataDir returns the data directory to use, expanding a leading ~
// in an explicit override or computing the per-OS default.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return homedir.Expand(c.DataDir)
	}
	return appdirs.UserDataDir(c.Company, c.App)
}

// ResolveUpdateURL returns the update location with a leading ~ expanded.
// URLs pass through untouched.
func (c *Config) ResolveUpdateURL() (string, error) {
	if strings.HasPrefix(c.UpdateURL, "http://") || strings.HasPrefix(c.UpdateURL, "https://") {
		return c.UpdateURL, nil
	}
	return homedir.Expand(c.UpdateURL)
}

// fileNames are the accepted configuration file names, in preference order.
var fileNames = []string{
	"molt.toml",
	"molt.yaml",
	"molt.yml",
	"molt.json",
}

// Find locates the configuration file. Resolution order: the explicit path
// (usually the --config flag), the MOLT_CONFIG environment variable, the
// working directory, then the user config directory (~/.config/molt or
// $XDG_CONFIG_HOME/molt).
func Find(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(envPrefix + "CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("config file from %sCONFIG not found: %s", envPrefix, envPath)
		}
		return envPath, nil
	}

	var searchDirs []string
	if cwd, err := os.Getwd(); err == nil {
		searchDirs = append(searchDirs, cwd)
	}
	if home, err := homedir.Dir(); err == nil {
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			xdgConfig = filepath.Join(home, ".config")
		}
		searchDirs = append(searchDirs, filepath.Join(xdgConfig, "molt"))
	}

	for _, dir := range searchDirs {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("no molt configuration file found")
}

// Load reads, parses and validates the configuration at path. MOLT_*
// environment variables override file values before validation.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

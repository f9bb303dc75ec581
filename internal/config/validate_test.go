package config

import (
	"strings"
	"testing"

	"github.com/adamancini/molt/internal/keys"
)

func testPublicKey(t *testing.T) string {
	t.Helper()
	pair, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return pair.PublicString()
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		App:       "demo",
		Company:   "Example Co",
		Version:   "1.2.3",
		Channel:   "stable",
		PublicKey: testPublicKey(t),
		UpdateURL: "https://updates.example.com/demo",
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidateOK(t *testing.T) {
	if err := Validate(validConfig(t)); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidateInternalVersionForm(t *testing.T) {
	cfg := validConfig(t)
	cfg.Version = "1.2.3.2.0"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing app",
			mutate:  func(c *Config) { c.App = "" },
			wantSub: "app name is required",
		},
		{
			name:    "missing company",
			mutate:  func(c *Config) { c.Company = "" },
			wantSub: "company name is required",
		},
		{
			name:    "missing version",
			mutate:  func(c *Config) { c.Version = "" },
			wantSub: "current version is required",
		},
		{
			name:    "unparseable version",
			mutate:  func(c *Config) { c.Version = "not-a-version" },
			wantSub: "version",
		},
		{
			name:    "unknown channel",
			mutate:  func(c *Config) { c.Channel = "nightly" },
			wantSub: "unknown channel",
		},
		{
			name:    "missing public key",
			mutate:  func(c *Config) { c.PublicKey = "" },
			wantSub: "public key is required",
		},
		{
			name:    "undecodable public key",
			mutate:  func(c *Config) { c.PublicKey = "!!!not-base64!!!" },
			wantSub: "public_key",
		},
		{
			name:    "missing update url",
			mutate:  func(c *Config) { c.UpdateURL = "" },
			wantSub: "update location is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{Channel: "stable"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() returned nil error")
	}

	msg := err.Error()
	for _, want := range []string{"app", "company", "version", "public_key", "update_url"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Validate() error missing %q field: %q", want, msg)
		}
	}
}

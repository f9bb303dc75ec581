package config

import (
	"fmt"
	"strings"

	"github.com/adamancini/molt/internal/keys"
	"github.com/adamancini/molt/internal/version"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the Config for required fields and valid values. All
// problems are collected and reported together rather than one at a time.
func Validate(c *Config) error {
	var errors []string

	add := func(field, message string) {
		errors = append(errors, ValidationError{Field: field, Message: message}.Error())
	}

	if c.App == "" {
		add("app", "app name is required")
	}

	if c.Company == "" {
		add("company", "company name is required")
	}

	if c.Version == "" {
		add("version", "current version is required")
	} else if _, err := c.CurrentVersion(); err != nil {
		add("version", err.Error())
	}

	if _, err := version.ParseChannel(c.Channel); err != nil {
		add("channel", err.Error())
	}

	if c.PublicKey == "" {
		add("public_key", "public key is required")
	} else if _, err := keys.DecodePublic(c.PublicKey); err != nil {
		add("public_key", err.Error())
	}

	if c.UpdateURL == "" {
		add("update_url", "update location is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

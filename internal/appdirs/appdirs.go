// Package appdirs resolves per-user application directories following
// each platform's conventions.
package appdirs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	homedir "github.com/mitchellh/go-homedir"
)

// UserDataDir returns the per-user data directory for an application:
// %LOCALAPPDATA%\<company>\<app> on Windows, ~/Library/Application
// Support/<app> on macOS and $XDG_DATA_HOME/<app> (defaulting to
// ~/.local/share/<app>) elsewhere. The directory is not created.
func UserDataDir(company, app string) (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return dataDir(runtime.GOOS, home, os.Getenv, company, app), nil
}

func dataDir(goos, home string, getenv func(string) string, company, app string) string {
	switch goos {
	case "windows":
		if base := getenv("LOCALAPPDATA"); base != "" {
			return filepath.Join(base, company, app)
		}
		return filepath.Join(home, "AppData", "Local", company, app)
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", app)
	default:
		if base := getenv("XDG_DATA_HOME"); base != "" {
			return filepath.Join(base, app)
		}
		return filepath.Join(home, ".local", "share", app)
	}
}

package manifest

import (
	"fmt"
	"runtime"

	"github.com/adamancini/molt/internal/version"
)

// Platform identifies an operating system family in release metadata and
// artifact names.
type Platform string

const (
	// Mac covers darwin builds.
	Mac Platform = "mac"
	// Win covers windows builds.
	Win Platform = "win"
	// Nix covers linux and other unix-like builds.
	Nix Platform = "nix"
)

// FromGOOS maps a GOOS value to its release platform.
func FromGOOS(goos string) Platform {
	switch goos {
	case "darwin":
		return Mac
	case "windows":
		return Win
	default:
		return Nix
	}
}

// CurrentPlatform returns the platform of the running binary.
func CurrentPlatform() Platform {
	return FromGOOS(runtime.GOOS)
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case Mac, Win, Nix:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// ArchiveExt returns the archive extension used for full releases on p.
func (p Platform) ArchiveExt() string {
	if p == Win {
		return ".zip"
	}
	return ".tar.gz"
}

// ArchiveName returns the file name of a full release archive, for
// example "myapp-mac-0.2.0.tar.gz". The version appears in its external
// form.
func ArchiveName(app string, v version.Version, p Platform) string {
	return fmt.Sprintf("%s-%s-%s%s", app, p, v.External(), p.ArchiveExt())
}

// PatchName returns the file name of the binary patch that produces the
// app's release numbered index on p, counting releases from 1 in version
// order. Patch files carry no extension.
func PatchName(app string, p Platform, index int) string {
	return fmt.Sprintf("%s-%s-%d", app, p, index)
}

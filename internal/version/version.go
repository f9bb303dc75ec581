// Package version implements the five-field version scheme used by update
// manifests: Major.Minor.Patch.Channel.Release, where the channel digit is
// 0 (alpha), 1 (beta) or 2 (stable). Versions are totally ordered by
// comparing the fields left to right.
package version

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/blang/semver"
)

// Channel is a release track. The numeric values are part of the wire
// format, so the constants must not be reordered.
type Channel int

const (
	Alpha  Channel = 0
	Beta   Channel = 1
	Stable Channel = 2
)

// ParseChannel parses a channel name as it appears in a manifest's
// "latest" section.
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "alpha":
		return Alpha, nil
	case "beta":
		return Beta, nil
	case "stable":
		return Stable, nil
	default:
		return 0, fmt.Errorf("unknown channel: %q", s)
	}
}

// String returns the channel name used in manifest keys.
func (c Channel) String() string {
	switch c {
	case Alpha:
		return "alpha"
	case Beta:
		return "beta"
	case Stable:
		return "stable"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Valid reports whether c is one of the three declared channels.
func (c Channel) Valid() bool {
	return c >= Alpha && c <= Stable
}

var internalRegex = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)\.([0-2])\.(\d+)$`)

// Version is a fully qualified release version.
type Version struct {
	Major   int
	Minor   int
	Patch   int
	Channel Channel
	Release int
}

// Parse parses the internal five-field form, e.g. "1.2.3.2.0".
func Parse(s string) (Version, error) {
	matches := internalRegex.FindStringSubmatch(s)
	if matches == nil {
		return Version{}, fmt.Errorf("invalid version format: %q", s)
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])
	patch, _ := strconv.Atoi(matches[3])
	channel, _ := strconv.Atoi(matches[4])
	release, _ := strconv.Atoi(matches[5])

	return Version{
		Major:   major,
		Minor:   minor,
		Patch:   patch,
		Channel: Channel(channel),
		Release: release,
	}, nil
}

// ParseExternal parses a human-facing version string such as "1.2.3",
// "v1.2.4" or "2.0.0-beta.1" and maps it onto the five-field form. A
// version without a prerelease tag is stable; "alpha"/"a" and "beta"/"b"
// tags select their channels, with an optional numeric release after the
// tag. Other prerelease tags are rejected rather than guessed at.
func ParseExternal(s string) (Version, error) {
	sv, err := semver.ParseTolerant(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}

	v := Version{
		Major:   int(sv.Major),
		Minor:   int(sv.Minor),
		Patch:   int(sv.Patch),
		Channel: Stable,
	}

	if len(sv.Pre) == 0 {
		return v, nil
	}

	switch sv.Pre[0].VersionStr {
	case "alpha", "a":
		v.Channel = Alpha
	case "beta", "b":
		v.Channel = Beta
	default:
		return Version{}, fmt.Errorf("unrecognized prerelease tag in %q", s)
	}

	if len(sv.Pre) > 1 {
		if !sv.Pre[1].IsNum {
			return Version{}, fmt.Errorf("prerelease number in %q is not numeric", s)
		}
		v.Release = int(sv.Pre[1].VersionNum)
	}

	return v, nil
}

// String returns the internal five-field form used as a manifest key.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d.%d", v.Major, v.Minor, v.Patch, int(v.Channel), v.Release)
}

// External returns the human-facing form: "1.2.3" for stable releases,
// "1.2.3-beta.2" otherwise. Archive filenames embed this form.
func (v Version) External() string {
	base := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	switch v.Channel {
	case Alpha:
		return fmt.Sprintf("%s-alpha.%d", base, v.Release)
	case Beta:
		return fmt.Sprintf("%s-beta.%d", base, v.Release)
	default:
		return base
	}
}

// Compare returns 1 if v > other, 0 if they are equal and -1 if v < other.
func (v Version) Compare(other Version) int {
	if c := cmpInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmpInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := cmpInt(v.Patch, other.Patch); c != 0 {
		return c
	}
	if c := cmpInt(int(v.Channel), int(other.Channel)); c != 0 {
		return c
	}
	return cmpInt(v.Release, other.Release)
}

// GreaterThan returns true if v > other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

// LessThan returns true if v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// Equal returns true if v == other.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

func cmpInt(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

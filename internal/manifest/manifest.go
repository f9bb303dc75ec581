// Package manifest defines the signed release metadata document
// ("versions.gz") that drives update decisions, along with the platform
// and artifact naming conventions shared by clients and the release
// builder.
//
// On the wire a manifest is gzip-compressed JSON. The signature covers
// the canonical serialization of the document without its signature
// field: compact JSON with lexicographically ordered keys, which is
// exactly what encoding/json produces for the types below.
package manifest

import (
	"bytes"
	"compress/gzip"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/adamancini/molt/internal/keys"
	"github.com/adamancini/molt/internal/version"
)

const (
	// VersionsName is the file name of the versions document in an
	// update repository.
	VersionsName = "versions.gz"
	// KeysName is the file name of the trust bundle in an update
	// repository.
	KeysName = "keys.gz"
)

// ReleaseEntry describes one published artifact: a full archive for a
// given app, version and platform, optionally accompanied by a binary
// patch from the immediately preceding release.
//
// Field order matters: it matches the lexicographic key order of the
// canonical serialization.
type ReleaseEntry struct {
	FileHash  string `json:"file_hash"`
	FileSize  int64  `json:"file_size"`
	Filename  string `json:"filename"`
	PatchHash string `json:"patch_hash,omitempty"`
	PatchName string `json:"patch_name,omitempty"`
	PatchSize int64  `json:"patch_size,omitempty"`
}

// HasPatch reports whether the entry carries patch metadata.
func (e ReleaseEntry) HasPatch() bool {
	return e.PatchName != "" && e.PatchHash != ""
}

// Manifest is the parsed form of a versions document.
//
// Latest maps app name -> channel name -> platform -> newest internal
// version string. Updates maps app name -> internal version string ->
// platform -> release entry.
type Manifest struct {
	Latest    map[string]map[string]map[Platform]string       `json:"latest"`
	Updates   map[string]map[string]map[Platform]ReleaseEntry `json:"updates"`
	Signature string                                          `json:"signature"`
}

// New returns an empty manifest ready for AddRelease and SetLatest.
func New() *Manifest {
	return &Manifest{
		Latest:  make(map[string]map[string]map[Platform]string),
		Updates: make(map[string]map[string]map[Platform]ReleaseEntry),
	}
}

// SigningBytes returns the canonical serialization the signature covers:
// the manifest without its signature field.
func (m *Manifest) SigningBytes() ([]byte, error) {
	body := struct {
		Latest  map[string]map[string]map[Platform]string       `json:"latest"`
		Updates map[string]map[string]map[Platform]ReleaseEntry `json:"updates"`
	}{m.Latest, m.Updates}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest body: %w", err)
	}
	return data, nil
}

// Sign computes and stores the manifest signature.
func (m *Manifest) Sign(pair *keys.Pair) error {
	body, err := m.SigningBytes()
	if err != nil {
		return err
	}
	m.Signature = pair.Sign(body)
	return nil
}

// Verify checks the manifest signature against pub. It fails closed: a
// missing, undecodable or mismatched signature all return an error
// satisfying errors.Is against keys.ErrNoSignature or
// keys.ErrInvalidSignature, and the manifest must not be used.
func (m *Manifest) Verify(pub ed25519.PublicKey) error {
	body, err := m.SigningBytes()
	if err != nil {
		return err
	}
	if err := keys.Verify(pub, body, m.Signature); err != nil {
		return fmt.Errorf("manifest rejected: %w", err)
	}
	return nil
}

// Encode serializes the manifest, signature included, to its
// gzip-compressed wire form.
func (m *Manifest) Encode() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(body); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a gzip-compressed versions document. It does not verify
// the signature; callers must Verify before trusting the result.
func Decode(data []byte) (*Manifest, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("versions document is not gzip data: %w", err)
	}
	defer gz.Close()

	body, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress versions document: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to parse versions document: %w", err)
	}
	return &m, nil
}

// LatestVersion returns the newest published version for the app on the
// given channel and platform.
func (m *Manifest) LatestVersion(app string, channel version.Channel, p Platform) (version.Version, error) {
	channels, ok := m.Latest[app]
	if !ok {
		return version.Version{}, fmt.Errorf("no releases for app %q", app)
	}
	platforms, ok := channels[channel.String()]
	if !ok {
		return version.Version{}, fmt.Errorf("no %s releases for app %q", channel, app)
	}
	raw, ok := platforms[p]
	if !ok {
		return version.Version{}, fmt.Errorf("no %s release of app %q for platform %s", channel, app, p)
	}

	v, err := version.Parse(raw)
	if err != nil {
		return version.Version{}, fmt.Errorf("latest version of app %q is malformed: %w", app, err)
	}
	return v, nil
}

// Entry returns the release entry for the app at an exact version and
// platform.
func (m *Manifest) Entry(app string, v version.Version, p Platform) (ReleaseEntry, error) {
	versions, ok := m.Updates[app]
	if !ok {
		return ReleaseEntry{}, fmt.Errorf("no releases for app %q", app)
	}
	platforms, ok := versions[v.String()]
	if !ok {
		return ReleaseEntry{}, fmt.Errorf("app %q has no release %s", app, v)
	}
	entry, ok := platforms[p]
	if !ok {
		return ReleaseEntry{}, fmt.Errorf("release %s of app %q has no %s artifact", v, app, p)
	}
	return entry, nil
}

// Versions returns every version of the app released for p, oldest
// first.
func (m *Manifest) Versions(app string, p Platform) []version.Version {
	var out []version.Version
	for raw, platforms := range m.Updates[app] {
		if _, ok := platforms[p]; !ok {
			continue
		}
		v, err := version.Parse(raw)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// ReleaseIndex returns the 1-based position of v among the app's
// releases for p, oldest first. Patch names are numbered by this index.
func (m *Manifest) ReleaseIndex(app string, v version.Version, p Platform) (int, error) {
	for i, got := range m.Versions(app, p) {
		if got.Equal(v) {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("app %q has no %s release %s", app, p, v)
}

// AddRelease records a release entry, creating intermediate maps as
// needed.
func (m *Manifest) AddRelease(app string, v version.Version, p Platform, entry ReleaseEntry) {
	if m.Updates == nil {
		m.Updates = make(map[string]map[string]map[Platform]ReleaseEntry)
	}
	versions, ok := m.Updates[app]
	if !ok {
		versions = make(map[string]map[Platform]ReleaseEntry)
		m.Updates[app] = versions
	}
	platforms, ok := versions[v.String()]
	if !ok {
		platforms = make(map[Platform]ReleaseEntry)
		versions[v.String()] = platforms
	}
	platforms[p] = entry
}

// SetLatest records v as the newest version for the app on the given
// channel and platform.
func (m *Manifest) SetLatest(app string, channel version.Channel, p Platform, v version.Version) {
	if m.Latest == nil {
		m.Latest = make(map[string]map[string]map[Platform]string)
	}
	channels, ok := m.Latest[app]
	if !ok {
		channels = make(map[string]map[Platform]string)
		m.Latest[app] = channels
	}
	platforms, ok := channels[channel.String()]
	if !ok {
		platforms = make(map[Platform]string)
		channels[channel.String()] = platforms
	}
	platforms[p] = v.String()
}

package update

import (
	"fmt"

	"github.com/adamancini/molt/internal/cache"
	"github.com/adamancini/molt/internal/manifest"
	"github.com/adamancini/molt/internal/version"
)

// PlanKind classifies how an update run reaches the target version.
type PlanKind int

const (
	// NoUpdate means the current version is already the newest.
	NoUpdate PlanKind = iota
	// PatchUpdate rebuilds the target archive from the cached current
	// archive plus a binary patch.
	PatchUpdate
	// FullUpdate downloads the complete target archive.
	FullUpdate
)

func (k PlanKind) String() string {
	switch k {
	case NoUpdate:
		return "no-update"
	case PatchUpdate:
		return "patch"
	case FullUpdate:
		return "full"
	}
	return fmt.Sprintf("PlanKind(%d)", int(k))
}

// Plan describes the cheapest safe route from the current version to
// the newest one.
type Plan struct {
	Kind   PlanKind
	Target version.Version
	Entry  manifest.ReleaseEntry

	// BaseArchive is the cached archive the patch applies to, set only
	// for PatchUpdate.
	BaseArchive string
}

// Downgrade converts a patch plan into the equivalent full plan for the
// same target.
func (p Plan) Downgrade() Plan {
	p.Kind = FullUpdate
	p.BaseArchive = ""
	return p
}

// PlanUpdate decides between no update, a patch update and a full
// download.
//
// A patch is chosen only when the target entry declares one, the
// current version is the release immediately preceding the target (the
// patch's implicit base) and the current version's archive is still in
// the local cache. Anything else forces a full download: patches are
// never chained across version gaps.
func PlanUpdate(m *manifest.Manifest, store *cache.Store, app string, p manifest.Platform, channel version.Channel, current version.Version) (Plan, error) {
	latest, err := m.LatestVersion(app, channel, p)
	if err != nil {
		// Nothing published for this app, channel or platform.
		return Plan{Kind: NoUpdate}, nil
	}
	if !latest.GreaterThan(current) {
		return Plan{Kind: NoUpdate}, nil
	}

	entry, err := m.Entry(app, latest, p)
	if err != nil {
		return Plan{}, fmt.Errorf("versions document is inconsistent: %w", err)
	}

	plan := Plan{Kind: FullUpdate, Target: latest, Entry: entry}
	if !entry.HasPatch() {
		return plan, nil
	}

	targetIndex, err := m.ReleaseIndex(app, latest, p)
	if err != nil {
		return Plan{}, fmt.Errorf("versions document is inconsistent: %w", err)
	}
	currentIndex, err := m.ReleaseIndex(app, current, p)
	if err != nil || currentIndex != targetIndex-1 {
		// The running version is unknown to the manifest or more than
		// one release behind.
		return plan, nil
	}

	base := manifest.ArchiveName(app, current, p)
	if !store.HasArtifact(base) {
		return plan, nil
	}

	plan.Kind = PatchUpdate
	plan.BaseArchive = base
	return plan, nil
}

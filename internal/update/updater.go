// Package update implements the update client pipeline: obtaining a
// trusted versions document, planning the cheapest safe route to the
// newest release, downloading and verifying artifacts, patching, and
// staging the result for restart.
//
// Every run ends in exactly one terminal Status. Failures are reported,
// not crashed: callers print the status line and exit zero so that
// wrapping automation can parse the outcome.
package update

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/adamancini/molt/internal/cache"
	"github.com/adamancini/molt/internal/fetch"
	"github.com/adamancini/molt/internal/integrity"
	"github.com/adamancini/molt/internal/keys"
	"github.com/adamancini/molt/internal/manifest"
	"github.com/adamancini/molt/internal/patch"
	"github.com/adamancini/molt/internal/version"
)

// Restarter hands control to a staged release archive.
type Restarter interface {
	Restart(archivePath string) error
}

// Options configures an Updater. The fields are fixed for the lifetime
// of the Updater; runs share no mutable state beyond the cache store.
type Options struct {
	App      string
	Current  version.Version
	Channel  version.Channel
	Platform manifest.Platform // empty selects the running platform
	Public   ed25519.PublicKey
	Source   fetch.Source
	Store    *cache.Store

	Logger    hclog.Logger // nil discards logs
	Restarter Restarter    // nil makes Restart a no-op
}

// Updater runs the update pipeline for one configured application.
type Updater struct {
	app       string
	current   version.Version
	channel   version.Channel
	platform  manifest.Platform
	public    ed25519.PublicKey
	source    fetch.Source
	store     *cache.Store
	log       hclog.Logger
	restarter Restarter
}

// New creates an Updater from opts.
func New(opts Options) *Updater {
	platform := opts.Platform
	if platform == "" {
		platform = manifest.CurrentPlatform()
	}
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Updater{
		app:       opts.App,
		current:   opts.Current,
		channel:   opts.Channel,
		platform:  platform,
		public:    opts.Public,
		source:    opts.Source,
		store:     opts.Store,
		log:       log,
		restarter: opts.Restarter,
	}
}

// Run executes one update check end to end and returns its terminal
// result.
func (u *Updater) Run() Result {
	// 1. Obtain a trusted versions document.
	m, err := u.trustedManifest()
	if err != nil {
		return u.fail(statusForManifestError(err), "", err)
	}

	// 2. Decide how to reach the newest version.
	plan, err := PlanUpdate(m, u.store, u.app, u.platform, u.channel, u.current)
	if err != nil {
		return u.fail(StatusDownloadFailed, "", err)
	}
	if plan.Kind == NoUpdate {
		u.log.Info("no update available", "app", u.app, "current", u.current)
		return Result{Status: StatusNoUpdate}
	}
	u.log.Info("update available",
		"app", u.app, "current", u.current, "target", plan.Target, "plan", plan.Kind)

	// 3. Execute the plan, falling back from patch to full at most
	// once. Disk failures are never retried: a full download would hit
	// the same disk.
	archive, err := u.execute(plan)
	if err != nil && plan.Kind == PatchUpdate && !isDiskError(err) {
		u.log.Warn("patch update failed, falling back to full download", "error", err)
		plan = plan.Downgrade()
		archive, err = u.execute(plan)
	}
	if err != nil {
		return u.fail(statusForPlanError(plan, err), plan.Target.String(), err)
	}

	// 4. Staged. The restart happens after the caller has emitted the
	// terminal status line.
	return Result{Status: StatusRestarting, Target: plan.Target.String(), Archive: archive}
}

// Check obtains a trusted versions document and reports what Run would
// do, without downloading anything.
func (u *Updater) Check() (Plan, error) {
	m, err := u.trustedManifest()
	if err != nil {
		return Plan{}, err
	}
	return PlanUpdate(m, u.store, u.app, u.platform, u.channel, u.current)
}

// Restart hands control to the staged archive via the configured
// restarter.
func (u *Updater) Restart(archive string) error {
	if u.restarter == nil {
		return nil
	}
	return u.restarter.Restart(u.store.ArtifactPath(archive))
}

// trustedManifest fetches and verifies the current versions document,
// falling back to the verified local cache when the repository is
// unreachable. A freshly verified document is written through to the
// cache.
func (u *Updater) trustedManifest() (*manifest.Manifest, error) {
	raw, err := u.source.Fetch(manifest.VersionsName)
	if err != nil {
		m, cacheErr := u.store.LoadManifest(u.public)
		if cacheErr != nil {
			if isSignatureError(cacheErr) {
				return nil, cacheErr
			}
			return nil, fmt.Errorf("no versions document available: %w", err)
		}
		u.log.Warn("repository unreachable, using cached versions document", "error", err)
		return m, nil
	}

	m, err := manifest.Decode(raw)
	if err != nil {
		// Fail closed: an unparseable document gets the same handling
		// as a bad signature.
		return nil, fmt.Errorf("%w: %v", keys.ErrInvalidSignature, err)
	}
	if err := m.Verify(u.public); err != nil {
		return nil, err
	}

	if err := u.store.SaveManifest(raw); err != nil {
		u.log.Warn("failed to cache versions document", "error", err)
	}
	return m, nil
}

func (u *Updater) execute(p Plan) (string, error) {
	if p.Kind == PatchUpdate {
		return u.applyPatch(p)
	}
	return u.downloadFull(p)
}

// applyPatch rebuilds the target archive from the cached base plus a
// downloaded patch and stages it in the cache.
func (u *Updater) applyPatch(p Plan) (string, error) {
	base, err := u.store.ReadArtifact(p.BaseArchive)
	if err != nil {
		return "", err
	}

	patchData, err := u.source.Fetch(p.Entry.PatchName)
	if err != nil {
		return "", err
	}
	if err := integrity.Check(patchData, p.Entry.PatchHash); err != nil {
		return "", fmt.Errorf("patch %s: %w", p.Entry.PatchName, err)
	}

	rebuilt, err := patch.ApplyVerified(base, patchData, p.Entry.FileHash)
	if err != nil {
		return "", err
	}

	if err := u.store.SaveArtifact(p.Entry.Filename, rebuilt); err != nil {
		return "", &diskError{err}
	}

	u.log.Info("Applied patch successfully", "target", p.Target)
	return p.Entry.Filename, nil
}

// downloadFull downloads, verifies and stages the complete target
// archive.
func (u *Updater) downloadFull(p Plan) (string, error) {
	data, err := u.source.Fetch(p.Entry.Filename)
	if err != nil {
		u.log.Info("Full download failed", "target", p.Target)
		return "", err
	}
	if err := integrity.Check(data, p.Entry.FileHash); err != nil {
		u.log.Info("Full download failed", "target", p.Target)
		return "", fmt.Errorf("archive %s: %w", p.Entry.Filename, err)
	}

	if err := u.store.SaveArtifact(p.Entry.Filename, data); err != nil {
		return "", &diskError{err}
	}

	u.log.Info("Full download successful", "target", p.Target)
	return p.Entry.Filename, nil
}

func (u *Updater) fail(status Status, target string, err error) Result {
	u.log.Error("update run failed", "status", string(status), "error", err)
	return Result{Status: status, Target: target, Err: err}
}

// diskError marks staging failures, which must not trigger the
// patch-to-full fallback.
type diskError struct {
	err error
}

func (e *diskError) Error() string {
	return e.err.Error()
}

func (e *diskError) Unwrap() error {
	return e.err
}

func isDiskError(err error) bool {
	var de *diskError
	return errors.As(err, &de)
}

func isSignatureError(err error) bool {
	return errors.Is(err, keys.ErrInvalidSignature) || errors.Is(err, keys.ErrNoSignature)
}

func statusForManifestError(err error) Status {
	if isSignatureError(err) {
		return StatusVerificationFailed
	}
	return StatusDownloadFailed
}

// statusForPlanError maps an execution failure to its terminal status.
// A disk failure while staging a patched artifact is the one patch
// failure the fallback cannot recover; every full-path failure reads as
// a failed download.
func statusForPlanError(p Plan, err error) Status {
	if p.Kind == PatchUpdate && isDiskError(err) {
		return StatusPatchFailed
	}
	return StatusDownloadFailed
}

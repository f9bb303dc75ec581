package update

// Status is the terminal outcome of an update run. Exactly one status
// is reported per run, on stdout, as "Exiting with status: <status>".
type Status string

const (
	// StatusNoUpdate means the client is already on the newest version.
	StatusNoUpdate Status = "No update available."

	// StatusRestarting means a new version was staged and the client is
	// handing control to it.
	StatusRestarting Status = "Extracting update and restarting."

	// StatusDownloadFailed means no update could be obtained: the
	// versions document or the full archive was missing or unreachable,
	// or the downloaded archive failed its hash check.
	StatusDownloadFailed Status = "Update download failed."

	// StatusPatchFailed means a patched artifact could not be staged
	// into the cache.
	StatusPatchFailed Status = "Update patch failed."

	// StatusVerificationFailed means the versions document was rejected
	// by signature verification. Nothing from it was trusted.
	StatusVerificationFailed Status = "Update verification failed."
)

// Result is the outcome of one update run.
type Result struct {
	Status Status

	// Target is the version the run tried to reach; unset when no
	// trusted versions document was obtained.
	Target string

	// Archive is the cached archive staged for restart, set only on
	// StatusRestarting.
	Archive string

	// Err is the underlying cause for failure statuses.
	Err error
}

// Ok reports whether the run ended in a non-failure status.
func (r Result) Ok() bool {
	return r.Status == StatusNoUpdate || r.Status == StatusRestarting
}

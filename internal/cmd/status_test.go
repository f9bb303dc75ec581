package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunStatus_EmptyCache(t *testing.T) {
	repoDir, pair := buildTestRepo(t, "demo", "1.2.3")
	cfgPath := writeTestConfig(t, "demo", "1.2.3", repoDir, t.TempDir(), pair)
	setGlobals(t, cfgPath)

	var err error
	out := captureStdout(t, func() {
		err = runStatus()
	})
	if err != nil {
		t.Fatalf("runStatus() error = %v", err)
	}

	if !strings.Contains(out, "demo 1.2.3 (stable channel)") {
		t.Errorf("runStatus() output = %q, want app and version line", out)
	}
	if !strings.Contains(out, "Cached manifest: none") {
		t.Errorf("runStatus() output = %q, want no cached manifest", out)
	}
	if !strings.Contains(out, "Cached artifacts: none") {
		t.Errorf("runStatus() output = %q, want no cached artifacts", out)
	}
}

func TestRunStatus_AfterUpdate(t *testing.T) {
	repoDir, pair := buildTestRepo(t, "demo", "1.2.3", "1.2.5")
	dataDir := t.TempDir()
	cfgPath := writeTestConfig(t, "demo", "1.2.3", repoDir, dataDir, pair)
	setGlobals(t, cfgPath)

	var stdout bytes.Buffer
	if err := runUpdate(&stdout, false, true, false); err != nil {
		t.Fatalf("runUpdate() error = %v", err)
	}

	var err error
	out := captureStdout(t, func() {
		err = runStatus()
	})
	if err != nil {
		t.Fatalf("runStatus() error = %v", err)
	}

	if !strings.Contains(out, "Cached manifest: verified, latest 1.2.5") {
		t.Errorf("runStatus() output = %q, want verified manifest with latest", out)
	}
	if !strings.Contains(out, "demo-") {
		t.Errorf("runStatus() output = %q, want cached artifact names", out)
	}
}

func TestRunStatus_OfflineOnly(t *testing.T) {
	// The repository pointed at by the config does not exist; status must
	// still succeed because it never touches the source.
	repoDir, pair := buildTestRepo(t, "demo", "1.2.3")
	cfgPath := writeTestConfig(t, "demo", "1.2.3", repoDir+"-missing", t.TempDir(), pair)
	setGlobals(t, cfgPath)

	var err error
	captureStdout(t, func() {
		err = runStatus()
	})
	if err != nil {
		t.Fatalf("runStatus() error = %v", err)
	}
}

// Package restart stages a downloaded release and hands control to it:
// unpacking the archive, optionally swapping the installed executable
// and spawning the new process.
package restart

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	goupdate "github.com/inconshreveable/go-update"
	"github.com/shirou/gopsutil/v4/process"
)

// Options configures a ProcessRestarter.
type Options struct {
	// Binary is the executable's path inside the release archive.
	Binary string

	// StageDir is where archives are extracted before launch.
	StageDir string

	// SelfInstall overwrites the running executable with the staged
	// binary before spawning, instead of running from the stage
	// directory.
	SelfInstall bool

	Logger hclog.Logger
}

// ProcessRestarter extracts a staged archive and launches the new
// version as a detached process.
type ProcessRestarter struct {
	binary      string
	stageDir    string
	selfInstall bool
	log         hclog.Logger
}

// New creates a ProcessRestarter from opts.
func New(opts Options) *ProcessRestarter {
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &ProcessRestarter{
		binary:      opts.Binary,
		stageDir:    opts.StageDir,
		selfInstall: opts.SelfInstall,
		log:         log,
	}
}

// Restart extracts archivePath into the stage directory and starts the
// new version. It returns once the new process is confirmed alive.
func (r *ProcessRestarter) Restart(archivePath string) error {
	dest := filepath.Join(r.stageDir, stageName(archivePath))
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to clear stage directory: %w", err)
	}
	if err := Unpack(archivePath, dest); err != nil {
		return err
	}

	binary := filepath.Join(dest, r.binary)
	if _, err := os.Stat(binary); err != nil {
		return fmt.Errorf("staged release has no %s: %w", r.binary, err)
	}

	if r.selfInstall {
		installed, err := InstallBinary(binary)
		if err != nil {
			return err
		}
		binary = installed
	}

	pid, err := Launch(binary)
	if err != nil {
		return err
	}

	r.log.Info("restarted into new version", "binary", binary, "pid", pid)
	return nil
}

// stageName derives the extraction directory name from the archive
// name.
func stageName(archivePath string) string {
	base := filepath.Base(archivePath)
	base = strings.TrimSuffix(base, ".tar.gz")
	base = strings.TrimSuffix(base, ".zip")
	return base
}

// InstallBinary replaces the running executable with the staged binary,
// rolling back on failure. It returns the path of the executable that
// was replaced.
func InstallBinary(newBinary string) (string, error) {
	f, err := os.Open(newBinary)
	if err != nil {
		return "", fmt.Errorf("failed to open staged binary: %w", err)
	}
	defer f.Close()

	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}
	execPath, err = filepath.Abs(execPath)
	if err != nil {
		return "", err
	}

	if err := goupdate.Apply(f, goupdate.Options{TargetPath: execPath}); err != nil {
		if rerr := goupdate.RollbackError(err); rerr != nil {
			return "", fmt.Errorf("install failed: %v, rollback failed: %v", err, rerr)
		}
		return "", fmt.Errorf("install failed: %w", err)
	}
	return execPath, nil
}

// Launch starts the binary as a detached process and confirms the
// process exists before returning its pid.
func Launch(binary string, args ...string) (int, error) {
	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return 0, fmt.Errorf("failed to detach from %s: %w", binary, err)
	}

	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return 0, fmt.Errorf("failed to check process %d: %w", pid, err)
	}
	if !alive {
		return 0, fmt.Errorf("process %d exited immediately", pid)
	}
	return pid, nil
}

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adamancini/molt/internal/interactive"
	"github.com/adamancini/molt/internal/restart"
	"github.com/adamancini/molt/internal/update"
	"github.com/adamancini/molt/internal/version"
)

func newUpdateCmd() *cobra.Command {
	var (
		yes       bool
		noRestart bool
		install   bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download, verify and install the newest release",
		Long: `Update runs the full pipeline: fetch and verify the signed version
manifest, plan the cheapest safe route to the newest release (binary patch
when one applies, full archive otherwise), verify every artifact hash, stage
the result, and restart into it.

The last stdout line is always "Exiting with status: <message>" with exit
code zero, for every terminal outcome; automation should parse that line.
Only failures before the pipeline starts (an unusable configuration) exit
non-zero.

When run on a terminal, the restart asks for confirmation first; --yes
skips the question, --no-restart stops after staging.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.OutOrStdout(), yes, noRestart, install)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Restart without confirmation")
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "Stage the update but do not restart")
	cmd.Flags().BoolVar(&install, "install", false, "Replace the running executable with the staged binary (for builds that ship molt as the application)")

	return cmd
}

// runUpdate executes the update pipeline and emits the status contract.
func runUpdate(stdout io.Writer, yes, noRestart, install bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return err
	}

	log := newLogger()
	restarter := restart.New(restart.Options{
		Binary:      cfg.Binary,
		StageDir:    filepath.Join(dataDir, "stage"),
		SelfInstall: install,
		Logger:      log,
	})

	up, err := newUpdater(cfg, restarter)
	if err != nil {
		return err
	}

	result := up.Run()

	// The status line is the machine-readable contract: exactly one
	// line, exit code zero, emitted before any restart happens.
	fmt.Fprintf(stdout, "Exiting with status: %s\n", result.Status)

	if result.Status != update.StatusRestarting || noRestart {
		return nil
	}

	if !yes && interactive.IsTerminal() {
		target := result.Target
		if v, err := version.Parse(target); err == nil {
			target = v.External()
		}
		if !interactive.NewPrompter().Confirm("Restart into version %s now?", target) {
			log.Info("restart declined; update staged", "archive", result.Archive)
			return nil
		}
	}

	if err := up.Restart(result.Archive); err != nil {
		// The terminal status is already on stdout; a restart problem is
		// reported but does not change the exit contract.
		log.Error("restart failed", "error", err)
	}
	return nil
}

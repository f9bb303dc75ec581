package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/molt/internal/manifest"
)

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete cached artifacts no longer needed",
		Long: `Prune deletes every cached artifact except the archive of the running
version, which future patches use as their base.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune()
		},
	}
}

type pruneResult struct {
	Deleted []string `json:"deleted" yaml:"deleted"`
	Kept    int      `json:"kept" yaml:"kept"`
}

func (r pruneResult) Text() string {
	if len(r.Deleted) == 0 {
		return fmt.Sprintf("Nothing to prune (%d artifacts kept)", r.Kept)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Deleted %d artifacts (%d kept):", len(r.Deleted), r.Kept)
	for _, name := range r.Deleted {
		b.WriteString("\n  " + name)
	}
	return b.String()
}

func runPrune() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	current, err := cfg.CurrentVersion()
	if err != nil {
		return err
	}

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	keep := manifest.ArchiveName(cfg.App, current, manifest.CurrentPlatform())
	pruned, err := store.Prune(keep)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	writer, err := newOutputWriter()
	if err != nil {
		return err
	}
	return writer.Write(pruneResult{Deleted: pruned.Deleted, Kept: pruned.Kept})
}

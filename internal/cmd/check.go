package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/molt/internal/update"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check whether an update is available",
		Long: `Check fetches and verifies the version manifest and reports what an
update run would do, without downloading any artifact.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck()
		},
	}
}

// checkResult is the molt check report.
type checkResult struct {
	App       string `json:"app" yaml:"app"`
	Current   string `json:"current" yaml:"current"`
	Channel   string `json:"channel" yaml:"channel"`
	Available bool   `json:"update_available" yaml:"update_available"`
	Latest    string `json:"latest,omitempty" yaml:"latest,omitempty"`
	Plan      string `json:"plan,omitempty" yaml:"plan,omitempty"`
}

func (r checkResult) Text() string {
	if !r.Available {
		return fmt.Sprintf("%s %s is up to date", r.App, r.Current)
	}
	return fmt.Sprintf("Update available: %s -> %s (%s)", r.Current, r.Latest, r.Plan)
}

func runCheck() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	up, err := newUpdater(cfg, nil)
	if err != nil {
		return err
	}

	plan, err := up.Check()
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	current, err := cfg.CurrentVersion()
	if err != nil {
		return err
	}

	result := checkResult{
		App:       cfg.App,
		Current:   current.External(),
		Channel:   cfg.Channel,
		Available: plan.Kind != update.NoUpdate,
	}
	if result.Available {
		result.Latest = plan.Target.External()
		result.Plan = plan.Kind.String()
	}

	writer, err := newOutputWriter()
	if err != nil {
		return err
	}
	return writer.Write(result)
}

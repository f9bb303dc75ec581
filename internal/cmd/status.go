package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/molt/internal/manifest"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local update state",
		Long: `Status reports the configured version, the data directory, the cached
manifest and the cached artifacts. It never touches the network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

// statusResult is the molt status report.
type statusResult struct {
	App            string   `json:"app" yaml:"app"`
	Current        string   `json:"current" yaml:"current"`
	Channel        string   `json:"channel" yaml:"channel"`
	DataDir        string   `json:"data_dir" yaml:"data_dir"`
	ManifestCached bool     `json:"manifest_cached" yaml:"manifest_cached"`
	Latest         string   `json:"latest,omitempty" yaml:"latest,omitempty"`
	Artifacts      []string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

func (r statusResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s channel)\n", r.App, r.Current, r.Channel)
	fmt.Fprintf(&b, "Data directory: %s\n", r.DataDir)
	if !r.ManifestCached {
		b.WriteString("Cached manifest: none\n")
	} else if r.Latest != "" {
		fmt.Fprintf(&b, "Cached manifest: verified, latest %s\n", r.Latest)
	} else {
		b.WriteString("Cached manifest: verified\n")
	}
	if len(r.Artifacts) == 0 {
		b.WriteString("Cached artifacts: none")
	} else {
		b.WriteString("Cached artifacts:")
		for _, name := range r.Artifacts {
			b.WriteString("\n  " + name)
		}
	}
	return b.String()
}

func runStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	current, err := cfg.CurrentVersion()
	if err != nil {
		return err
	}
	channel, err := cfg.ReleaseChannel()
	if err != nil {
		return err
	}
	pub, err := cfg.DecodedPublicKey()
	if err != nil {
		return err
	}

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	result := statusResult{
		App:     cfg.App,
		Current: current.External(),
		Channel: cfg.Channel,
		DataDir: store.DataDir(),
	}

	if m, err := store.LoadManifest(pub); err == nil {
		result.ManifestCached = true
		if latest, err := m.LatestVersion(cfg.App, channel, manifest.CurrentPlatform()); err == nil {
			result.Latest = latest.External()
		}
	}

	artifacts, err := store.Artifacts()
	if err != nil {
		return err
	}
	result.Artifacts = artifacts

	writer, err := newOutputWriter()
	if err != nil {
		return err
	}
	return writer.Write(result)
}

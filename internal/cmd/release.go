package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/molt/internal/keys"
	"github.com/adamancini/molt/internal/manifest"
	"github.com/adamancini/molt/internal/release"
)

func newReleaseCmd() *cobra.Command {
	var repoDir string
	var keysDir string
	var app string
	var versionStr string
	var platformStr string

	cmd := &cobra.Command{
		Use:   "release INPUT_DIR",
		Short: "Publish a release into an update repository",
		Long: `Release packs INPUT_DIR into an archive, generates a binary patch from
the previous release when one exists, and re-signs the repository's
versions document and trust bundle.

Examples:
  molt release --app demo --version 1.2.5 ./build
  molt release --app demo --version 1.3.0-beta.1 --platform win ./build`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelease(args[0], repoDir, keysDir, app, versionStr, platformStr)
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", "repo", "Repository directory to publish into")
	cmd.Flags().StringVar(&keysDir, "keys", ".", "Directory holding the signing key pair")
	cmd.Flags().StringVar(&app, "app", "", "Application name")
	cmd.Flags().StringVar(&versionStr, "version", "", "Version to publish")
	cmd.Flags().StringVar(&platformStr, "platform", "", "Target platform: mac, win or nix (default: current)")

	return cmd
}

type releaseResult struct {
	App       string `json:"app" yaml:"app"`
	Version   string `json:"version" yaml:"version"`
	Platform  string `json:"platform" yaml:"platform"`
	Repo      string `json:"repo" yaml:"repo"`
	Archive   string `json:"archive" yaml:"archive"`
	Size      int64  `json:"size" yaml:"size"`
	Patch     string `json:"patch,omitempty" yaml:"patch,omitempty"`
	PatchSize int64  `json:"patch_size,omitempty" yaml:"patch_size,omitempty"`
}

func (r releaseResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Published %s %s (%s) to %s\n", r.App, r.Version, r.Platform, r.Repo)
	fmt.Fprintf(&b, "  archive: %s (%d bytes)\n", r.Archive, r.Size)
	if r.Patch == "" {
		b.WriteString("  patch:   none")
	} else {
		fmt.Fprintf(&b, "  patch:   %s (%d bytes)", r.Patch, r.PatchSize)
	}
	return b.String()
}

func runRelease(inputDir, repoDir, keysDir, app, versionStr, platformStr string) error {
	if app == "" {
		return fmt.Errorf("missing --app")
	}
	if versionStr == "" {
		return fmt.Errorf("missing --version")
	}

	v, err := parseVersion(versionStr)
	if err != nil {
		return err
	}

	platform := manifest.CurrentPlatform()
	if platformStr != "" {
		platform = manifest.Platform(strings.ToLower(platformStr))
		if !platform.Valid() {
			return fmt.Errorf("unknown platform %q (want mac, win or nix)", platformStr)
		}
	}

	pair, err := keys.Load(keysDir)
	if err != nil {
		return fmt.Errorf("no signing key in %s (run 'molt keys generate'): %w", keysDir, err)
	}

	builder, err := release.NewBuilder(repoDir, pair)
	if err != nil {
		return err
	}
	entry, err := builder.AddRelease(app, v, platform, inputDir)
	if err != nil {
		return err
	}
	if err := builder.Write(); err != nil {
		return err
	}

	result := releaseResult{
		App:      app,
		Version:  v.External(),
		Platform: platform.String(),
		Repo:     repoDir,
		Archive:  entry.Filename,
		Size:     entry.FileSize,
	}
	if entry.HasPatch() {
		result.Patch = entry.PatchName
		result.PatchSize = entry.PatchSize
	}

	writer, err := newOutputWriter()
	if err != nil {
		return err
	}
	return writer.Write(result)
}

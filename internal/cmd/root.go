package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath   string
	outputFormat string
	verbose      bool
	quiet        bool
	debug        bool
)

// Build metadata, stamped in by the linker via Execute.
var (
	moltVersion = "dev"
	moltCommit  = "none"
	moltDate    = "unknown"
)

func Execute(version, commit, date string) error {
	moltVersion, moltCommit, moltDate = version, commit, date

	rootCmd := &cobra.Command{
		Use:   "molt",
		Short: "Signed binary-patch updates for shipped applications",
		Long: `molt keeps a shipped application up to date from a signed release
repository. It verifies the version manifest against an embedded ed25519 key,
downloads a binary patch when one applies (a full archive otherwise), checks
every artifact hash, and restarts into the staged release.

The publishing side lives here too: molt release packs, diffs and signs
releases into a repository, and molt serve exposes that repository over HTTP
for local testing.`,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to molt config file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug logging")

	// Add subcommands
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newPruneCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newKeysCmd())
	rootCmd.AddCommand(newReleaseCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd.Execute()
}

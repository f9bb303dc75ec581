package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/molt/internal/keys"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the release signing key pair",
		Long: `Keys manages the ed25519 pair that signs version manifests. The private
key stays on the release machine; only the public key ships with the
application.`,
	}

	cmd.AddCommand(newKeysGenerateCmd())
	cmd.AddCommand(newKeysShowCmd())
	return cmd
}

func newKeysGenerateCmd() *cobra.Command {
	var dir string
	var force bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new signing key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysGenerate(dir, force)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Directory for the key files")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing key pair")
	return cmd
}

func newKeysShowCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the public key of an existing pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysShow(dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Directory holding the key files")
	return cmd
}

type keysResult struct {
	Dir    string `json:"dir" yaml:"dir"`
	Public string `json:"public_key" yaml:"public_key"`
}

func (r keysResult) Text() string {
	return fmt.Sprintf("Key pair written to %s\n  private: molt.key\n  public:  molt.pub\n\npublic_key = %q", r.Dir, r.Public)
}

func runKeysGenerate(dir string, force bool) error {
	if keys.Exists(dir) && !force {
		return fmt.Errorf("a signing key already exists in %s (use --force to replace it)", dir)
	}

	pair, err := keys.Generate()
	if err != nil {
		return err
	}
	if err := pair.Save(dir); err != nil {
		return err
	}

	writer, err := newOutputWriter()
	if err != nil {
		return err
	}
	return writer.Write(keysResult{Dir: dir, Public: pair.PublicString()})
}

type publicKeyResult struct {
	Public string `json:"public_key" yaml:"public_key"`
}

func (r publicKeyResult) Text() string {
	return r.Public
}

func runKeysShow(dir string) error {
	pair, err := keys.Load(dir)
	if err != nil {
		return err
	}

	writer, err := newOutputWriter()
	if err != nil {
		return err
	}
	return writer.Write(publicKeyResult{Public: pair.PublicString()})
}

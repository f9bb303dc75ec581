package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adamancini/molt/internal/server"
)

func newServeCmd() *cobra.Command {
	var dir string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an update repository over HTTP",
		Long: `Serve exposes a repository directory as a plain file server for update
clients. Point a configuration's update_url at it:

  update_url = "http://localhost:8000"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dir, addr)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Repository directory to serve")
	cmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")

	return cmd
}

func runServe(dir, addr string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot serve %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot serve %s: not a directory", dir)
	}

	srv := server.New(server.Options{
		Dir:    dir,
		Addr:   addr,
		Logger: newLogger(),
	})
	return srv.Run()
}

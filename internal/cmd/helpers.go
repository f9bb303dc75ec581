package cmd

import (
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/adamancini/molt/internal/cache"
	"github.com/adamancini/molt/internal/config"
	"github.com/adamancini/molt/internal/fetch"
	"github.com/adamancini/molt/internal/interactive"
	"github.com/adamancini/molt/internal/output"
	"github.com/adamancini/molt/internal/update"
	"github.com/adamancini/molt/internal/version"
)

// loadConfig finds and loads the molt configuration honoring the global
// --config flag.
func loadConfig() (*config.Config, error) {
	path, err := config.Find(configPath)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// newLogger builds the logger the pipeline reports through. The level
// follows the global verbosity flags.
func newLogger() hclog.Logger {
	level := hclog.Info
	if debug || verbose {
		level = hclog.Debug
	}
	if quiet {
		level = hclog.Error
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "molt",
		Level:  level,
		Output: os.Stderr,
	})
}

// newOutputWriter builds a stdout writer for the global --output format.
func newOutputWriter() (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(os.Stdout, format), nil
}

// newStore opens the artifact cache for cfg.
func newStore(cfg *config.Config) (*cache.Store, error) {
	dir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}
	return cache.NewWithDir(dir), nil
}

// newSource builds the artifact source for cfg, attaching a progress bar
// when downloads would be watched by a person.
func newSource(cfg *config.Config) (fetch.Source, error) {
	location, err := cfg.ResolveUpdateURL()
	if err != nil {
		return nil, err
	}

	src := fetch.New(location)
	if hs, ok := src.(*fetch.HTTPSource); ok && !quiet && interactive.IsTerminal() {
		return hs.WithProgress(os.Stderr), nil
	}
	return src, nil
}

// newUpdater assembles the update pipeline from cfg.
func newUpdater(cfg *config.Config, restarter update.Restarter) (*update.Updater, error) {
	current, err := cfg.CurrentVersion()
	if err != nil {
		return nil, err
	}
	channel, err := cfg.ReleaseChannel()
	if err != nil {
		return nil, err
	}
	public, err := cfg.DecodedPublicKey()
	if err != nil {
		return nil, err
	}
	source, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	return update.New(update.Options{
		App:       cfg.App,
		Current:   current,
		Channel:   channel,
		Public:    public,
		Source:    source,
		Store:     store,
		Logger:    newLogger(),
		Restarter: restarter,
	}), nil
}

// parseVersion accepts either the internal five-field form or the
// external form.
func parseVersion(s string) (version.Version, error) {
	if v, err := version.Parse(s); err == nil {
		return v, nil
	}
	return version.ParseExternal(s)
}

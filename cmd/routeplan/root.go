package main

import (
	"github.com/spf13/cobra"

	"github.com/dpup/saferoute/server/internal/config"
)

type rootOptions struct {
	configFile  string
	camerasFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "routeplan",
		Short:         "Hazard-aware route planning from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (defaults are used when empty)")
	cmd.PersistentFlags().StringVar(&opts.camerasFile, "cameras", "", "read cameras from this results file instead of the configured source")

	cmd.AddCommand(newPlanCmd(opts), newPublishCmd(opts), newImportCmd(opts))
	return cmd
}

// load reads the config file and applies the --cameras override
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.camerasFile != "" {
		cfg.Cameras.Source = "file"
		cfg.Cameras.File = o.camerasFile
	}
	return cfg, nil
}

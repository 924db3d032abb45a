package main

import (
	"github.com/gostonefire/exthashdb/internal/config"
	"github.com/gostonefire/exthashdb/internal/logging"
	"github.com/spf13/cobra"
	"log/slog"
)

// app - State shared by the commands, set up before any command runs
type app struct {
	configPath string
	config     config.Config
	logger     *slog.Logger
}

// newRootCommand - Returns the command tree
func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "exthashdb",
		Short:         "Extendible hash index and replicated operation log",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			a.config = config.Default()
			if a.configPath != "" {
				if a.config, err = config.Load(a.configPath); err != nil {
					return
				}
			}

			loggingConfig := a.config.Logging("exthashdb")
			loggingConfig.Output = cmd.ErrOrStderr()
			a.logger = logging.New(loggingConfig)

			return
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML configuration file")

	root.AddCommand(newIndexCommand(a), newClusterCommand(a))

	return root
}

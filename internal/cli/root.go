// Package cli implements the pdbgen command line.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arloliu/pdbgen/internal/config"
	"github.com/arloliu/pdbgen/internal/logging"
)

// app carries state shared by all subcommands once the root command has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log zerolog.Logger
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.NewLoader(a.configPath).Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lc := cfg.Logging()
	lc.Output = cmd.ErrOrStderr()
	a.cfg = cfg
	a.log = logging.NewWithComponent(lc, cmd.Name())

	return nil
}

// NewRootCmd creates the pdbgen root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "pdbgen",
		Short: "Inspect and pack program database files",
		Long: `pdbgen works with the program databases written by the pdbgen library.

It dumps the structure of a program database (info stream, DBI module
directory, type and symbol directory sizes) and packs program databases
for upload to a symbol server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default $PDBGEN_CONFIG or ~/.pdbgen/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newPackCmd(a))
	root.AddCommand(newUnpackCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"flashlog/config"
	"flashlog/infra/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgPath string
	cfg     *config.Config
	logger  zerolog.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "flashlog",
		Short:         "Circular log store on NOR flash",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			if img, _ := cmd.Flags().GetString("image"); img != "" {
				cfg.Flash.Path = img
			}
			a.cfg = cfg
			a.logger = logging.New(cfg.Logging)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "YAML config file (default $"+config.PathEnvVar+")")
	root.PersistentFlags().String("image", "", "flash image path, overrides flash.path")

	root.AddCommand(
		newServeCommand(a),
		newDumpCommand(a),
		newEraseCommand(a),
		newWriteCommand(a),
		newLogCommand(a),
		newStatCommand(a),
	)
	return root
}

package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "dojo",
		Short:         "Kata execution and AI judging engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: $DOJO_CONFIG, ./config.yaml, /etc/dojo/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newExecCmd(opts),
		newProbeCmd(opts),
		newJudgeCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rhuss/dojo/pkg/api"
)

func newProbeCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check which language toolchains are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := setup(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			deps, err := c.prober.Refresh(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), deps)
			}
			return printDependencies(cmd, deps)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func printDependencies(cmd *cobra.Command, deps *api.SystemDependencies) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tAVAILABLE\tVERSION\tCOMMAND")
	for _, s := range deps.Toolchains {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, yesNo(s.Available), s.Version, s.Command)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, s := range deps.Toolchains {
		if !s.Available && s.InstallationGuide != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s: %s\n", s.Name, s.InstallationGuide)
		}
	}
	return nil
}

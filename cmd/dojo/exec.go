package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/dojo/pkg/api"
)

func newExecCmd(opts *rootOptions) *cobra.Command {
	var (
		kataPath string
		lang     string
		file     string
		hidden   bool
		timeout  time.Duration
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a submission against a kata and print the result",
		Long: `Run a submission against a kata and print the result.

The source is read from --file, or from stdin when --file is "-" or unset.
The command exits with status 1 when the submission does not pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			language, err := api.ParseLanguage(lang)
			if err != nil {
				return err
			}
			code, err := readSource(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			c, err := setup(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			res, err := c.engine.Execute(ctx, &api.ExecutionRequest{
				Language:      language,
				SourceCode:    code,
				KataPath:      kataPath,
				IncludeHidden: hidden,
				TimeoutMs:     int(timeout.Milliseconds()),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				printExecution(out, res)
			}
			if !res.Success {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&kataPath, "kata", "k", "", "kata directory (required)")
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "language: python, javascript, typescript, cpp (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "source file, - for stdin")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "include hidden tests")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "run timeout, default from the kata")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("kata")
	_ = cmd.MarkFlagRequired("lang")
	return cmd
}

func printExecution(w io.Writer, res *api.ExecutionResult) {
	for _, tr := range res.TestResults {
		mark := "PASS"
		if !tr.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s\n", mark, tr.Name)
		if tr.Message != "" {
			fmt.Fprintln(w, indent(tr.Message, "      "))
		}
	}
	if res.Diagnostic != nil {
		fmt.Fprintf(w, "\n%s: %s\n", res.Diagnostic.Kind, res.Diagnostic.Message)
	}
	if res.Stdout != "" {
		fmt.Fprintf(w, "\nstdout:\n%s\n", indent(res.Stdout, "  "))
	}
	fmt.Fprintf(w, "\n%d/%d passed, score %d, %dms\n",
		res.PassedCount(), len(res.TestResults), res.Score, res.DurationMs)
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rhuss/dojo/pkg/api"
)

func newJudgeCmd(opts *rootOptions) *cobra.Command {
	var (
		kind     string
		kataPath string
		file     string
		topic    string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "judge",
		Short: "Judge a written submission against a kata rubric",
		Long: `Judge a written submission against a kata rubric.

The rubric, kind and topic come from the kata's meta.yaml. --kind overrides
the kind. The command exits with status 1 when the submission does not pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := &api.JudgeRequest{KataPath: kataPath, Topic: topic}
			if kind != "" {
				k, err := api.ParseJudgeKind(kind)
				if err != nil {
					return err
				}
				req.Kind = k
			}
			content, err := readSource(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			req.Content = content

			c, err := setup(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			res, err := c.judge.Judge(ctx, req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				printVerdict(out, res)
			}
			if !res.Passed {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "explanation, template or codebase")
	cmd.Flags().StringVarP(&kataPath, "kata", "k", "", "kata directory with a rubric (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "submission file, - for stdin")
	cmd.Flags().StringVar(&topic, "topic", "", "topic, default from the kata")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verdict as JSON")
	_ = cmd.MarkFlagRequired("kata")
	return cmd
}

func printVerdict(w io.Writer, res *api.JudgeResult) {
	for _, cs := range res.CriteriaBreakdown {
		fmt.Fprintf(w, "%3d  %s", cs.Score, cs.Name)
		if !cs.Passed {
			fmt.Fprint(w, " (below minimum)")
		}
		fmt.Fprintln(w)
		if cs.Feedback != "" {
			fmt.Fprintln(w, indent(cs.Feedback, "     "))
		}
	}
	fmt.Fprintf(w, "\nscore %d, passed %s\n\n%s\n", res.Score, yesNo(res.Passed), res.Feedback)
}

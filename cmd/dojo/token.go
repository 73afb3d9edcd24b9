package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/dojo/pkg/auth/token"
	"github.com/rhuss/dojo/pkg/config"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		tier    string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with auth.token.secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			if cfg.Auth.Token.Secret == "" {
				return errors.New("auth.token.secret is not configured")
			}
			tok, err := token.Issue(tokenConfig(cfg.Auth.Token), subject, tier, scopes, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "desktop", "token subject")
	cmd.Flags().StringVar(&tier, "tier", "", "service tier for rate limiting")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "allowed operations, empty allows all")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

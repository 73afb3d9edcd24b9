package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	transporthttp "github.com/rhuss/dojo/pkg/transport/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := setup(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			sc, err := c.serverConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				sc.Addr = addr
			}

			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			// Warm the toolchain cache so the first execution does not pay for it.
			go func() {
				if _, err := c.prober.Probe(ctx); err != nil && ctx.Err() == nil {
					c.logger.Warn("initial toolchain probe failed", "error", err)
				}
			}()

			srv := transporthttp.NewServer(c.app,
				transporthttp.WithConfig(sc),
				transporthttp.WithLogger(c.logger),
			)
			c.logger.Info("dojo starting", "version", version, "addr", sc.Addr, "auth", c.cfg.Auth.Type)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.host and server.port")
	return cmd
}

func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

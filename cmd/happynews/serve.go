package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/FranksOps/happynews/internal/app"
	"github.com/FranksOps/happynews/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /api/news",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gin.SetMode(server.ModeFor(opts.cfg.Log.Level))

			a, err := app.New(cmd.Context(), opts.cfg, app.Deps{Logger: opts.logger})
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Server().ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}

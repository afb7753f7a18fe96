package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/FranksOps/happynews/internal/app"
	"github.com/FranksOps/happynews/internal/news"
	"github.com/FranksOps/happynews/internal/present"
)

type searchOptions struct {
	display       int
	start         int
	sort          string
	asJSON        bool
	positiveFirst bool
	expand        []int
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	so := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run one search and print the enriched articles",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := news.Query{Display: so.display, Start: so.start, Sort: so.sort}
			if len(args) == 1 {
				q.Text = args[0]
			}
			q, err := q.Normalize()
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), opts.cfg, app.Deps{Logger: opts.logger})
			if err != nil {
				return err
			}
			defer a.Close()
			if a.ConfigErr != nil {
				return a.ConfigErr
			}

			env, err := a.Pipeline.Run(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeEnvelope(cmd, env, so)
		},
	}

	f := cmd.Flags()
	f.IntVar(&so.display, "display", news.DefaultDisplay, "results per page (1-100)")
	f.IntVar(&so.start, "start", 1, "1-based result offset (1-1000)")
	f.StringVar(&so.sort, "sort", news.SortDate, "date or sim")
	f.BoolVar(&so.asJSON, "json", false, "print the raw envelope as JSON")
	f.BoolVar(&so.positiveFirst, "positive-first", false, "list positive articles first")
	f.IntSliceVar(&so.expand, "expand", nil, "positions whose article bodies are printed")
	return cmd
}

func writeEnvelope(cmd *cobra.Command, env *news.Envelope, so *searchOptions) error {
	out := cmd.OutOrStdout()
	if so.asJSON {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}

	mode := present.ModeChronological
	if so.positiveFirst {
		mode = present.ModePositiveFirst
	}
	return present.WriteText(out, env.Items, present.Options{Mode: mode, Expand: so.expand})
}

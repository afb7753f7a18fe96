package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/happynews/internal/app"
	"github.com/FranksOps/happynews/internal/config"
	"github.com/FranksOps/happynews/internal/report"
	"github.com/FranksOps/happynews/internal/storage"
)

type reportOptions struct {
	backend string
	dsn     string
	format  string
	host    string
	outcome string
	since   time.Duration
	limit   int
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	ro := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the article fetch audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auditCfg := opts.cfg.Audit
			if ro.backend != "" {
				auditCfg = config.AuditConfig{Backend: ro.backend, DSN: ro.dsn}
			}
			backend, err := app.OpenAudit(cmd.Context(), auditCfg)
			if err != nil {
				return err
			}
			if backend == nil {
				return errors.New("no audit backend configured")
			}
			defer backend.Close()

			filter := storage.Filter{Host: ro.host, Outcome: ro.outcome, Limit: ro.limit}
			if ro.since > 0 {
				since := time.Now().UTC().Add(-ro.since)
				filter.Since = &since
			}

			recs, err := backend.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), report.Summarize(recs), ro.format)
		},
	}

	f := cmd.Flags()
	f.StringVar(&ro.backend, "backend", "", "audit backend: sqlite, postgres, json, csv (default from config)")
	f.StringVar(&ro.dsn, "dsn", "", "audit backend DSN or file path")
	f.StringVar(&ro.format, "format", "text", "text, json or html")
	f.StringVar(&ro.host, "host", "", "only fetches to this host")
	f.StringVar(&ro.outcome, "outcome", "", "only fetches with this outcome")
	f.DurationVar(&ro.since, "since", 0, "only fetches newer than this, e.g. 24h")
	f.IntVar(&ro.limit, "limit", 0, "newest N fetches only")
	return cmd
}

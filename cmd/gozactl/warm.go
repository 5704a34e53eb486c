package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LJTian/GozaMadrid/internal/scheduler"
)

func newWarmCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Run a single list cache warm-up pass",
		Long:  "Fetches both aggregations and stores complete results in the list cache (shared through Redis when REDIS_ADDR is set).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			spec := a.Config.WarmCron
			if spec == "" {
				spec = "@hourly"
			}
			s, err := scheduler.New(spec, a.Lists, a.Log)
			if err != nil {
				return err
			}
			report := s.RunOnce(cmd.Context())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "properties=%d blogs=%d duration=%s\n", report.Properties, report.Blogs, report.Duration)
			renderErrors(out, report.Errors)
			return nil
		},
	}
}

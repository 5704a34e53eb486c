package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/LJTian/GozaMadrid/internal/api"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe every upstream source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			renderStatus(cmd.OutOrStdout(), a.Server().Probe(cmd.Context()))
			return nil
		},
	}
}

func renderStatus(w io.Writer, sources []api.SourceStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Configured", "OK", "Records", "Latency (ms)", "Error"})
	for _, s := range sources {
		t.AppendRow(table.Row{s.Source, s.Configured, s.OK, s.Records, s.LatencyMS, s.Error})
	}
	t.Render()
}

package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/LJTian/GozaMadrid/internal/listing"
)

const titleWidth = 48

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "list properties|blogs",
		Short:     "Fetch and merge the listings from every source",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"properties", "blogs"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			// 直接走聚合器，绕过缓存
			if args[0] == "properties" {
				res := a.Aggregator.Properties(ctx)
				renderListings(out, res.Properties)
				fmt.Fprintf(out, "total=%d mongodb=%d woocommerce=%d\n", res.Total, res.MongoDB, res.WooCommerce)
				renderErrors(out, res.Errors)
				return nil
			}
			res := a.Aggregator.Blogs(ctx)
			renderListings(out, res.Blogs)
			fmt.Fprintf(out, "total=%d mongodb=%d wordpress=%d\n", res.Total, res.MongoDB, res.WordPress)
			renderErrors(out, res.Errors)
			return nil
		},
	}
}

func renderListings(w io.Writer, items []listing.Listing) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Source", "Title", "Date"})
	for _, l := range items {
		t.AppendRow(table.Row{l.ID, l.Source, runewidth.Truncate(l.Title, titleWidth, "…"), l.Date})
	}
	t.Render()
}

func renderErrors(w io.Writer, errs []listing.SourceError) {
	if len(errs) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Source errors")
	t.AppendHeader(table.Row{"Source", "Message"})
	for _, e := range errs {
		t.AppendRow(table.Row{e.Source, e.Message})
	}
	t.Render()
}

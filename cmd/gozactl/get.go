package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/resolver"
)

func newGetCommand(opts *rootOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:       "get property|blog <id>",
		Short:     "Resolve a single record through the fallback chain",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"property", "blog"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id := args[0], args[1]
			if kind != string(listing.KindProperty) && kind != string(listing.KindBlog) {
				return fmt.Errorf("unknown kind %q (want property or blog)", kind)
			}

			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			var res resolver.Resolution
			if kind == string(listing.KindProperty) {
				res, err = a.Resolver.Property(cmd.Context(), id)
			} else {
				res, err = a.Resolver.Blog(cmd.Context(), id, listing.Source(source))
			}
			if err != nil {
				return err
			}
			return writeResolution(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source hint for blogs: mongodb or wordpress")
	return cmd
}

type resolutionOutput struct {
	Source   string             `json:"source"`
	Fallback bool               `json:"fallback"`
	Attempts []resolver.Attempt `json:"attempts"`
	Data     listing.Listing    `json:"data"`
}

func writeResolution(w io.Writer, res resolver.Resolution) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(resolutionOutput{
		Source:   res.Listing.Source,
		Fallback: res.Fallback,
		Attempts: res.Attempts,
		Data:     res.Listing,
	})
}

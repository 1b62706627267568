package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/fincontext/internal/workflow"
)

func extractCmd(configPath *string) *cobra.Command {
	var page int
	var overwrite bool
	var maxIterations int
	var contentOnly bool

	cmd := &cobra.Command{
		Use:   "extract <pdf-url>",
		Short: "Extract the context of one page and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.wf.Run(cmd.Context(), workflow.Request{
				Source:        args[0],
				PageNumber:    page,
				Overwrite:     overwrite,
				MaxIterations: maxIterations,
			})
			if err != nil {
				return err
			}

			var v any = res
			if contentOnly {
				content, images := res.PageContent()
				v = map[string]any{"page_content": content, "page_images": images}
			}
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 0, "zero-based page number")
	cmd.Flags().BoolVar(&overwrite, "overwrite-cache", false, "recompute even if the page is cached")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "inspector calls per section (default from config)")
	cmd.Flags().BoolVar(&contentOnly, "content-only", false, "print only the flattened page content and images")
	return cmd
}

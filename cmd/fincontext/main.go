package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "fincontext",
		Short:         "Extract structured page context from financial report PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables override it)")

	root.AddCommand(extractCmd(&configPath))
	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(mcpCmd(&configPath))
	root.AddCommand(evaluateCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

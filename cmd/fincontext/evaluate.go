package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/fincontext/internal/evaluate"
)

func evaluateCmd(configPath *string) *cobra.Command {
	var minAccuracy float64

	cmd := &cobra.Command{
		Use:   "evaluate <cases.yaml>",
		Short: "Score the page summarizer against labelled page images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := evaluate.LoadCases(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), *configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := evaluate.Run(cmd.Context(), a.client, cases, a.log)
			if err != nil {
				return err
			}
			acc := evaluate.Accuracy(reports)
			b, err := json.MarshalIndent(map[string]any{"accuracy": acc, "cases": reports}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			if acc < minAccuracy {
				return fmt.Errorf("accuracy %.2f below %.2f", acc, minAccuracy)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&minAccuracy, "min-accuracy", 0, "fail when accuracy is below this value")
	return cmd
}

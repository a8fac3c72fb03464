package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Print the perplexity of every validation corpus under every model",
	Long: `evaluate loads the configured corpora, reuses saved models (training any that are
missing) and writes the perplexity matrix with the accuracy of the perplexity and
naive Bayes classifiers as JSON.`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputPath, _ := cmd.Flags().GetString("output")

	newsService, err := newNewsService()
	if err != nil {
		return err
	}
	defer newsService.Close(ctx)

	if err := loadCorporaWithProgress(ctx, newsService); err != nil {
		return err
	}
	if err := newsService.Train(ctx, false); err != nil {
		return err
	}

	report, err := newsService.Evaluate(ctx)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", outputPath, err)
		}
		defer file.Close()
		out = file
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

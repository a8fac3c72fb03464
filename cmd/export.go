package main

import (
	"context"
	"fmt"
	"os"

	"newslm/internal/model/ngram"
	"newslm/internal/service"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <label>",
	Short: "Export a saved model as JSON or to the configured graph database",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "Write the model tables as JSON to this file (- for stdout)")
	exportCmd.Flags().Bool("graph", false, "Write the model to the configured graph backend")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	label := ngram.Label(args[0])
	outputPath, _ := cmd.Flags().GetString("output")
	toGraph, _ := cmd.Flags().GetBool("graph")
	if outputPath == "" && !toGraph {
		return fmt.Errorf("nothing to do: pass --output and/or --graph")
	}

	newsService, err := newNewsService()
	if err != nil {
		return err
	}
	defer newsService.Close(ctx)

	if err := newsService.LoadModels(); err != nil {
		return fmt.Errorf("run train first: %w", err)
	}
	model, err := newsService.CorpusManager().GetModel(label)
	if err != nil {
		return err
	}

	if outputPath != "" {
		out := cmd.OutOrStdout()
		if outputPath != "-" {
			file, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outputPath, err)
			}
			defer file.Close()
			out = file
		}
		if err := service.ExportJSON(model, out); err != nil {
			return fmt.Errorf("failed to export %s: %w", label, err)
		}
	}

	if toGraph {
		summary, err := newsService.ExportGraph(ctx, label)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %s: %d nodes, %d edges\n", summary.Label, summary.Nodes, summary.Edges)
	}
	return nil
}

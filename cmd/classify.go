package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"newslm/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file...]",
	Short: "Label news documents as real or fake",
	Long: `classify scores each file (or standard input when no file is given) with every
saved model and prints the label whose model has the lowest bigram perplexity.`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringP("text", "t", "", "Classify this text instead of files")
	classifyCmd.Flags().StringP("format", "f", "", "Input format: text or html (default from file extension)")
	classifyCmd.Flags().Bool("explain", false, "Print the score of every bigram position")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	text, _ := cmd.Flags().GetString("text")
	format, _ := cmd.Flags().GetString("format")
	explain, _ := cmd.Flags().GetBool("explain")

	newsService, err := newNewsService()
	if err != nil {
		return err
	}
	defer newsService.Close(ctx)

	if err := newsService.LoadModels(); err != nil {
		logger.Info("Saved models unavailable, training from corpora", zap.Error(err))
		if err := loadCorporaWithProgress(ctx, newsService); err != nil {
			return err
		}
		if err := newsService.Train(ctx, false); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if text != "" {
		return classifyOne(ctx, out, newsService, "text", []byte(text), format, explain)
	}
	if len(args) == 0 {
		source, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		return classifyOne(ctx, out, newsService, "stdin", source, format, explain)
	}

	for _, path := range args {
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		fileFormat := format
		if fileFormat == "" {
			fileFormat = formatForPath(path)
		}
		if err := classifyOne(ctx, out, newsService, path, source, fileFormat, explain); err != nil {
			return err
		}
	}
	return nil
}

func formatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return service.FormatHTML
	default:
		return service.FormatText
	}
}

func classifyOne(ctx context.Context, out io.Writer, newsService *service.NewsService, name string, source []byte, format string, explain bool) error {
	analysis, err := newsService.AnalyzeText(ctx, source, format, explain)
	if err != nil {
		return fmt.Errorf("failed to classify %s: %w", name, err)
	}

	fmt.Fprintf(out, "%s\t%s", name, analysis.Label)
	for _, score := range analysis.Scores {
		fmt.Fprintf(out, "\t%s=%.4f", score.Label, score.Bigram.Perplexity)
	}
	fmt.Fprintln(out)

	for _, detail := range analysis.Details {
		status := fmt.Sprintf("%.6f", detail.Probability)
		if detail.Skipped {
			status = "skipped"
		}
		fmt.Fprintf(out, "  %s\t%s\n", detail.NGram.String(), status)
	}
	return nil
}

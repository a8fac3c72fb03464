package main

import (
	"context"
	"fmt"

	"newslm/internal/service"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Load the configured corpora, train a model per label and save it",
	RunE:  runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().Bool("override", false, "Retrain even when a saved model exists")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	override, _ := cmd.Flags().GetBool("override")

	newsService, err := newNewsService()
	if err != nil {
		return err
	}
	defer newsService.Close(ctx)

	if err := loadCorporaWithProgress(ctx, newsService); err != nil {
		return err
	}
	if err := newsService.Train(ctx, override); err != nil {
		return err
	}

	for _, label := range newsService.CorpusManager().Labels() {
		stats, err := newsService.ModelStats(label)
		if err != nil {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s vocabulary %d/%d (cutoff %d), <UNK> count %d, %d bigrams\n",
			stats.Label, stats.VocabularySize, stats.RawVocabularySize, stats.Cutoff, stats.UnknownCount, stats.BigramCount)
	}
	return nil
}

// loadCorporaWithProgress loads every corpus file with a progress bar on stderr
func loadCorporaWithProgress(ctx context.Context, newsService *service.NewsService) error {
	files, err := newsService.CorpusFiles()
	if err != nil {
		return err
	}
	logger.Info("Loading corpora", zap.Int("files", len(files)))

	bar := progressbar.Default(int64(len(files)), "loading corpora")
	err = newsService.LoadCorpora(ctx, func(file service.CorpusFile) {
		bar.Add(1)
	})
	bar.Finish()
	if err != nil {
		return fmt.Errorf("failed to load corpora: %w", err)
	}
	return nil
}

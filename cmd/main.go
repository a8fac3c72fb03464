package main

import (
	"fmt"
	"log"
	"os"

	"newslm/internal/config"
	"newslm/internal/service"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	workDir    string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "newslm",
	Short: "Classify news as real or fake with smoothed bigram language models",
	Long: `newslm trains one add-k smoothed unigram/bigram language model per news label
(real and fake by default), reports the perplexity of every validation corpus under
every model and labels new text with the model that finds it least surprising.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&workDir, "workdir", "", "Working directory for models and logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() error {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override workdir from command line if provided
	if workDir != "" {
		cfg.SetWorkDir(workDir)
	}
	applyEnvOverrides(viper.New(), cfg)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err = newLogger(cfg.App)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	logger.Info("Configuration loaded successfully", zap.Any("config", cfg))
	return nil
}

func newLogger(app config.AppConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(app.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", app.LogLevel, err)
	}

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(level)
	cfgZap.OutputPaths = []string{"stderr"}
	if app.LogFile != "" {
		cfgZap.OutputPaths = append(cfgZap.OutputPaths, app.LogFile)
	}
	return cfgZap.Build()
}

// newNewsService creates the service and attaches the configured graph backend
func newNewsService() (*service.NewsService, error) {
	newsService, err := service.NewNewsService(cfg, logger)
	if err != nil {
		return nil, err
	}

	graph, err := service.OpenBigramGraph(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph backend: %w", err)
	}
	if graph != nil {
		newsService.SetGraph(graph)
		logger.Info("Graph export enabled", zap.String("backend", cfg.Graph.Backend))
	}
	return newsService, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"newslm/internal/controller"
	"newslm/internal/handler"
	"newslm/pkg/mcp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and MCP tools",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

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
	// z-scores in analyses need sentence statistics from an evaluation
	if _, err := newsService.Evaluate(ctx); err != nil {
		logger.Warn("Initial evaluation failed, z-scores will be unavailable", zap.Error(err))
	}

	newsController := controller.NewNewsController(newsService, logger)
	mcpServer := mcp.NewNewsServer(newsService, cfg, logger)
	router := handler.SetupRouter(newsController, mcpServer, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", zap.Int("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownDuration())
	defer cancel()

	if err := mcpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("MCP server shutdown failed", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}

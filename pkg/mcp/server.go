package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"newslm/internal/config"
	"newslm/internal/model/ngram"
	"newslm/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type NewsServer struct {
	server      *mcp.Server
	newsService *service.NewsService
	config      *config.Config
	logger      *zap.Logger
	handler     *mcp.StreamableHTTPHandler
	httpServer  *http.Server
}

type AnalyzeNewsParams struct {
	Text    string `json:"text" jsonschema:"the news text to classify"`
	Format  string `json:"format,omitempty" jsonschema:"text or html, defaults to text"`
	Explain bool   `json:"explain,omitempty" jsonschema:"include the score of every bigram position"`
}

type ModelParams struct {
	Label string `json:"label" jsonschema:"the class label of the model, e.g. real or fake"`
}

type ContinuationParams struct {
	Label string `json:"label" jsonschema:"the class label of the model"`
	Token string `json:"token" jsonschema:"the token whose most probable successors are listed"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of successors, defaults to 10"`
}

type EvaluationParams struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"recompute the report instead of returning the cached one"`
}

func NewNewsServer(newsService *service.NewsService, cfg *config.Config, logger *zap.Logger) *NewsServer {
	server := &NewsServer{
		newsService: newsService,
		config:      cfg,
		logger:      logger,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "NewsLM",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "analyzeNews",
		Description: "Classify a news text as real or fake by comparing its perplexity under each label's bigram language model",
	}, server.handleAnalyzeNews)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "getPerplexityMatrix",
		Description: "Return the unigram and bigram perplexity of every validation corpus under every model, with classifier accuracy",
	}, server.handlePerplexityMatrix)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "getModelStats",
		Description: "Return vocabulary size, cutoff, unknown count and smoothing settings of a label's model",
	}, server.handleModelStats)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "getContinuations",
		Description: "List the most probable tokens that follow a token under a label's model",
	}, server.handleContinuations)

	server.handler = mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	server.server = mcpServer
	return server
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(message string, err error) *mcp.CallToolResult {
	result := textResult(fmt.Sprintf("%s: %v", message, err))
	result.IsError = true
	return result
}

func (s *NewsServer) handleAnalyzeNews(ctx context.Context, req *mcp.CallToolRequest, args AnalyzeNewsParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling analyzeNews request", zap.Int("length", len(args.Text)), zap.String("format", args.Format))

	if strings.TrimSpace(args.Text) == "" {
		return textResult("No text provided"), nil, nil
	}

	analysis, err := s.newsService.AnalyzeText(ctx, []byte(args.Text), args.Format, args.Explain)
	if err != nil {
		s.logger.Error("Failed to analyze text", zap.Error(err))
		return errorResult("Failed to analyze text", err), nil, nil
	}

	return textResult(formatAnalysis(analysis)), nil, nil
}

func formatAnalysis(analysis *service.NewsAnalysis) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Prediction: %s\n", analysis.Label))
	result.WriteString(fmt.Sprintf("Sentences: %d, tokens: %d\n", analysis.Sentences, analysis.TokenCount))
	if analysis.NaiveBayes != "" {
		result.WriteString(fmt.Sprintf("Naive Bayes prediction: %s\n", analysis.NaiveBayes))
	}

	result.WriteString("\nPerplexity by model:\n")
	for _, score := range analysis.Scores {
		marker := " "
		if score.Label == analysis.Label {
			marker = "*"
		}
		result.WriteString(fmt.Sprintf("%s %-8s unigram %10.4f  bigram %10.4f", marker, score.Label, score.Unigram.Perplexity, score.Bigram.Perplexity))
		if score.Bigram.SkippedPositions > 0 {
			result.WriteString(fmt.Sprintf("  (%d positions skipped)", score.Bigram.SkippedPositions))
		}
		result.WriteString("\n")
	}

	if analysis.Interpretation != nil {
		result.WriteString(fmt.Sprintf("\nZ-score %.2f (%s): %s\n", analysis.ZScore, analysis.Interpretation.Level, analysis.Interpretation.Description))
	}

	if len(analysis.Details) > 0 {
		result.WriteString(fmt.Sprintf("\nBigram scores under the %s model:\n", analysis.Label))
		for _, detail := range analysis.Details {
			ngramText := detail.NGram.String()
			if len(detail.Fallback) > 0 {
				ngramText += " -> " + detail.Fallback.String()
			}
			switch {
			case detail.Skipped:
				result.WriteString(fmt.Sprintf("  %-40s skipped\n", ngramText))
			default:
				result.WriteString(fmt.Sprintf("  %-40s p=%.6f log=%.4f\n", ngramText, detail.Probability, detail.LogProb))
			}
		}
	}
	return result.String()
}

func (s *NewsServer) handlePerplexityMatrix(ctx context.Context, req *mcp.CallToolRequest, args EvaluationParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling getPerplexityMatrix request", zap.Bool("refresh", args.Refresh))

	report, ok := s.newsService.LastEvaluation()
	if !ok || args.Refresh {
		var err error
		report, err = s.newsService.Evaluate(ctx)
		if err != nil {
			s.logger.Error("Failed to evaluate models", zap.Error(err))
			return errorResult("Failed to evaluate models", err), nil, nil
		}
	}

	return textResult(formatReport(report)), nil, nil
}

func formatReport(report *service.EvaluationReport) string {
	var result strings.Builder
	if report.RunID != "" {
		result.WriteString(fmt.Sprintf("Run: %s\n", report.RunID))
	}
	result.WriteString(fmt.Sprintf("%-8s %-8s %12s %12s\n", "model", "corpus", "unigram", "bigram"))
	for _, cell := range report.Perplexities {
		result.WriteString(fmt.Sprintf("%-8s %-8s %12.4f %12.4f\n", cell.Model, cell.Corpus, cell.Unigram.Perplexity, cell.Bigram.Perplexity))
	}
	if report.PerplexityClassifier != nil {
		result.WriteString(fmt.Sprintf("\nPerplexity classifier accuracy: %.4f (%d/%d)\n",
			report.PerplexityClassifier.Accuracy, report.PerplexityClassifier.Correct, report.PerplexityClassifier.Total))
	}
	if report.NaiveBayes != nil {
		result.WriteString(fmt.Sprintf("Naive Bayes accuracy: %.4f (%d/%d)\n",
			report.NaiveBayes.Accuracy, report.NaiveBayes.Correct, report.NaiveBayes.Total))
	}
	return result.String()
}

func (s *NewsServer) handleModelStats(ctx context.Context, req *mcp.CallToolRequest, args ModelParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling getModelStats request", zap.String("label", args.Label))

	stats, err := s.newsService.ModelStats(ngram.Label(args.Label))
	if err != nil {
		if errors.Is(err, service.ErrUnknownLabel) {
			return textResult(fmt.Sprintf("Model not found: %s", args.Label)), nil, nil
		}
		return errorResult("Failed to get model stats", err), nil, nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Model: %s\n", stats.Label))
	result.WriteString(fmt.Sprintf("Training sentences: %d, tokens: %d\n", stats.TrainingSentences, stats.TotalTokens))
	result.WriteString(fmt.Sprintf("Vocabulary: %d raw, %d after reduction including %s (cutoff %d)\n", stats.RawVocabularySize, stats.VocabularySize, ngram.Unknown, stats.Cutoff))
	result.WriteString(fmt.Sprintf("Unknown count: %d\n", stats.UnknownCount))
	result.WriteString(fmt.Sprintf("Bigrams: %d\n", stats.BigramCount))
	result.WriteString(fmt.Sprintf("Smoothing: %s k=%g, key gap policy %s\n", stats.SmootherName, stats.SmoothingK, stats.KeyGapPolicy))
	return textResult(result.String()), nil, nil
}

func (s *NewsServer) handleContinuations(ctx context.Context, req *mcp.CallToolRequest, args ContinuationParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling getContinuations request", zap.String("label", args.Label), zap.String("token", args.Token))

	continuations, err := s.newsService.Continuations(ctx, ngram.Label(args.Label), args.Token, args.Limit)
	if err != nil {
		return errorResult("Failed to get continuations", err), nil, nil
	}
	if len(continuations) == 0 {
		return textResult(fmt.Sprintf("No continuations of %q in the %s model", args.Token, args.Label)), nil, nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Continuations of %q in the %s model:\n", args.Token, args.Label))
	for i, continuation := range continuations {
		result.WriteString(fmt.Sprintf("%d. %s (count %d, p=%.6f)\n", i+1, continuation.Token, continuation.Count, continuation.Probability))
	}
	return textResult(result.String()), nil, nil
}

// SetupHTTPRoutes starts the MCP streamable HTTP transport on its own address
func (s *NewsServer) SetupHTTPRoutes(router *gin.Engine) {
	address := s.config.Mcp.GetAddress()
	s.httpServer = &http.Server{Addr: address, Handler: s.handler}

	go func() {
		s.logger.Info("MCP Server going to listen", zap.String("address", address))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatal("MCP Server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the MCP listener started by SetupHTTPRoutes
func (s *NewsServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

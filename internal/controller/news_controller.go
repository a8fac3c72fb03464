package controller

import (
	"errors"
	"net/http"

	"newslm/internal/model"
	"newslm/internal/model/ngram"
	"newslm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NewsController struct {
	newsService *service.NewsService
	logger      *zap.Logger
}

func NewNewsController(newsService *service.NewsService, logger *zap.Logger) *NewsController {
	return &NewsController{
		newsService: newsService,
		logger:      logger,
	}
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownLabel):
		return http.StatusNotFound
	case errors.Is(err, service.ErrKeyGap):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrDomain), errors.Is(err, service.ErrConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (nc *NewsController) fail(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		nc.logger.Error(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
	} else {
		nc.logger.Warn(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func (nc *NewsController) Analyze(c *gin.Context) {
	var request model.AnalyzeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		nc.logger.Error("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	analysis, err := nc.newsService.AnalyzeText(c.Request.Context(), []byte(request.Text), request.Format, request.Explain)
	if err != nil {
		nc.fail(c, "Failed to analyze text", err)
		return
	}

	nc.logger.Info("Analyzed text",
		zap.String("label", string(analysis.Label)),
		zap.Int("sentences", analysis.Sentences),
		zap.Int("tokens", analysis.TokenCount))
	c.JSON(http.StatusOK, analysis)
}

func (nc *NewsController) Classify(c *gin.Context) {
	var request model.ClassifyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		nc.logger.Error("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	classifications, err := nc.newsService.ClassifyTexts(c.Request.Context(), request.Texts)
	if err != nil {
		nc.fail(c, "Failed to classify texts", err)
		return
	}

	response := model.ClassifyResponse{Results: make([]model.ClassifyResult, 0, len(classifications))}
	for i, classification := range classifications {
		result := model.ClassifyResult{Index: i, Label: string(classification.Label)}
		for _, score := range classification.Scores {
			if score.Label == classification.Label {
				result.BigramPerplexity = score.Bigram.Perplexity
				result.UnigramPerplexity = score.Unigram.Perplexity
			}
		}
		response.Results = append(response.Results, result)
	}

	nc.logger.Info("Classified texts", zap.Int("count", len(response.Results)))
	c.JSON(http.StatusOK, response)
}

// Evaluation returns the last evaluation report, computing one on first use
func (nc *NewsController) Evaluation(c *gin.Context) {
	report, ok := nc.newsService.LastEvaluation()
	if !ok || c.Query("refresh") == "true" {
		var err error
		report, err = nc.newsService.Evaluate(c.Request.Context())
		if err != nil {
			nc.fail(c, "Failed to evaluate models", err)
			return
		}
	}
	c.JSON(http.StatusOK, report)
}

func (nc *NewsController) ModelStats(c *gin.Context) {
	label := ngram.Label(c.Param("label"))
	stats, err := nc.newsService.ModelStats(label)
	if err != nil {
		nc.fail(c, "Failed to get model stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (nc *NewsController) Continuations(c *gin.Context) {
	var request model.ContinuationsRequest
	if err := c.ShouldBindQuery(&request); err != nil {
		nc.logger.Error("Invalid request parameters", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request parameters",
			"details": err.Error(),
		})
		return
	}

	label := ngram.Label(c.Param("label"))
	continuations, err := nc.newsService.Continuations(c.Request.Context(), label, request.Token, request.Limit)
	if err != nil {
		nc.fail(c, "Failed to get continuations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"label":         label,
		"token":         request.Token,
		"continuations": continuations,
	})
}

func (nc *NewsController) ExportGraph(c *gin.Context) {
	label := ngram.Label(c.Param("label"))
	summary, err := nc.newsService.ExportGraph(c.Request.Context(), label)
	if err != nil {
		nc.fail(c, "Failed to export graph", err)
		return
	}

	nc.logger.Info("Exported graph",
		zap.String("label", string(label)),
		zap.Int("nodes", summary.Nodes),
		zap.Int("edges", summary.Edges))
	c.JSON(http.StatusOK, summary)
}

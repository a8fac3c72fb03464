package model

// AnalyzeRequest asks for a single document to be scored against every label's model
type AnalyzeRequest struct {
	Text    string `json:"text" binding:"required"`
	Format  string `json:"format"`
	Explain bool   `json:"explain"`
}

// ClassifyRequest asks for a batch of plain text documents to be labelled
type ClassifyRequest struct {
	Texts []string `json:"texts" binding:"required,min=1"`
}

// ClassifyResult is the label assigned to one document of a ClassifyRequest
type ClassifyResult struct {
	Index             int     `json:"index"`
	Label             string  `json:"label"`
	BigramPerplexity  float64 `json:"bigram_perplexity"`
	UnigramPerplexity float64 `json:"unigram_perplexity"`
}

// ClassifyResponse is returned by the classify endpoint
type ClassifyResponse struct {
	Results []ClassifyResult `json:"results"`
}

// ContinuationsRequest selects the token whose successors are listed
type ContinuationsRequest struct {
	Token string `form:"token" binding:"required"`
	Limit int    `form:"limit"`
}

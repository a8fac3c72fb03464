package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"newslm/internal/config"
	"newslm/internal/model/ngram"
)

// BigramGraph stores language models in a graph database as Token nodes joined by
// FOLLOWS edges, one subgraph per label
type BigramGraph struct {
	db     GraphDatabase
	logger *zap.Logger
}

// GraphExportSummary reports what Export wrote
type GraphExportSummary struct {
	Label ngram.Label `json:"label"`
	Nodes int         `json:"nodes"`
	Edges int         `json:"edges"`
}

// NewBigramGraph wraps db after checking it is reachable
func NewBigramGraph(db GraphDatabase, logger *zap.Logger) (*BigramGraph, error) {
	if err := db.VerifyConnectivity(context.Background()); err != nil {
		db.Close(context.Background())
		return nil, fmt.Errorf("failed to verify database connectivity: %w", err)
	}
	return &BigramGraph{db: db, logger: logger}, nil
}

// OpenBigramGraph connects to the graph backend named in cfg. It returns nil when graph
// export is disabled.
func OpenBigramGraph(cfg *config.Config, logger *zap.Logger) (*BigramGraph, error) {
	var db GraphDatabase
	var err error

	switch cfg.Graph.Backend {
	case config.GraphBackendKuzu:
		databasePath := cfg.Kuzu.Path
		if databasePath == "" {
			databasePath = ":memory:"
			logger.Info("No Kuzu database path configured, using in-memory database")
		}
		db, err = NewKuzuDatabase(databasePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kuzu database: %w", err)
		}
	case config.GraphBackendNeo4j:
		db, err = NewNeo4jDatabase(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Neo4j database: %w", err)
		}
	default:
		return nil, nil
	}

	return NewBigramGraph(db, logger)
}

// Close closes the underlying database
func (g *BigramGraph) Close(ctx context.Context) error {
	return g.db.Close(ctx)
}

func tokenNodeID(label ngram.Label, token string) string {
	return string(label) + "|" + token
}

// Export replaces the label's subgraph with the reduced tables of model
func (g *BigramGraph) Export(ctx context.Context, model *LanguageModel) (GraphExportSummary, error) {
	label := model.Label()
	summary := GraphExportSummary{Label: label}

	if err := g.DeleteLabel(ctx, label); err != nil {
		return summary, err
	}

	for _, record := range model.UnigramTable() {
		params := map[string]any{
			"id":          tokenNodeID(label, record.Token),
			"model":       string(label),
			"text":        record.Token,
			"occurrences": record.Count,
			"probability": record.Probability,
		}
		query := `CREATE (t:Token {id: $id, model: $model, text: $text, occurrences: $occurrences, probability: $probability})`
		if _, err := g.db.ExecuteWrite(ctx, query, params); err != nil {
			g.logger.Error("Failed to write token node", zap.String("label", string(label)), zap.String("token", record.Token), zap.Error(err))
			return summary, fmt.Errorf("failed to write token %q: %w", record.Token, err)
		}
		summary.Nodes++
	}

	for _, record := range model.BigramTable() {
		params := map[string]any{
			"src":         tokenNodeID(label, record.First),
			"dst":         tokenNodeID(label, record.Second),
			"occurrences": record.Count,
			"probability": record.Probability,
		}
		query := `
			MATCH (a:Token), (b:Token)
			WHERE a.id = $src AND b.id = $dst
			CREATE (a)-[:FOLLOWS {occurrences: $occurrences, probability: $probability}]->(b)
		`
		if _, err := g.db.ExecuteWrite(ctx, query, params); err != nil {
			g.logger.Error("Failed to write bigram edge",
				zap.String("label", string(label)),
				zap.String("first", record.First),
				zap.String("second", record.Second),
				zap.Error(err))
			return summary, fmt.Errorf("failed to write bigram (%s, %s): %w", record.First, record.Second, err)
		}
		summary.Edges++
	}

	g.logger.Info("Exported bigram graph",
		zap.String("label", string(label)),
		zap.Int("nodes", summary.Nodes),
		zap.Int("edges", summary.Edges))
	return summary, nil
}

// DeleteLabel removes every node and edge of a label
func (g *BigramGraph) DeleteLabel(ctx context.Context, label ngram.Label) error {
	query := `MATCH (t:Token) WHERE t.model = $model DETACH DELETE t`
	if _, err := g.db.ExecuteWrite(ctx, query, map[string]any{"model": string(label)}); err != nil {
		return fmt.Errorf("failed to delete %s graph: %w", label, err)
	}
	return nil
}

// CountNodes returns the number of Token nodes stored for a label
func (g *BigramGraph) CountNodes(ctx context.Context, label ngram.Label) (int64, error) {
	query := `MATCH (t:Token) WHERE t.model = $model RETURN count(t) AS nodes`
	record, err := executeSingle(g.db.ExecuteRead(ctx, query, map[string]any{"model": string(label)}))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s nodes: %w", label, err)
	}
	return toInt64(record["nodes"]), nil
}

// Continuations returns up to limit stored successors of token, most probable first
func (g *BigramGraph) Continuations(ctx context.Context, label ngram.Label, token string, limit int) ([]Continuation, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`
		MATCH (a:Token)-[f:FOLLOWS]->(b:Token)
		WHERE a.id = $id
		RETURN b.text AS token, f.occurrences AS occurrences, f.probability AS probability
		ORDER BY probability DESC, token
		LIMIT %d
	`, limit)

	records, err := g.db.ExecuteRead(ctx, query, map[string]any{"id": tokenNodeID(label, token)})
	if err != nil {
		return nil, fmt.Errorf("failed to read continuations of %q: %w", token, err)
	}

	continuations := make([]Continuation, 0, len(records))
	for _, record := range records {
		text, _ := record["token"].(string)
		continuations = append(continuations, Continuation{
			Token:       text,
			Count:       toInt64(record["occurrences"]),
			Probability: toFloat64(record["probability"]),
		})
	}
	return continuations, nil
}

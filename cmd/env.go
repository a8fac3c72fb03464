package main

import (
	"newslm/internal/config"

	"github.com/spf13/viper"
)

// applyEnvOverrides lets NEWSLM_* environment variables replace values read from the
// configuration file
func applyEnvOverrides(v *viper.Viper, cfg *config.Config) {
	// Values from the file act as defaults
	v.SetDefault("app.port", cfg.App.Port)
	v.SetDefault("app.work_dir", cfg.App.WorkDir)
	v.SetDefault("app.model_dir", cfg.App.ModelDir)
	v.SetDefault("app.log_level", cfg.App.LogLevel)
	v.SetDefault("app.log_file", cfg.App.LogFile)
	v.SetDefault("app.shutdown_timeout", cfg.App.ShutdownTimeout)
	v.SetDefault("model.smoothing_k", cfg.Model.SmoothingK)
	v.SetDefault("model.key_gap_policy", cfg.Model.KeyGapPolicy)
	v.SetDefault("graph.backend", cfg.Graph.Backend)
	v.SetDefault("kuzu.path", cfg.Kuzu.Path)
	v.SetDefault("neo4j.uri", cfg.Neo4j.URI)
	v.SetDefault("neo4j.username", cfg.Neo4j.Username)
	v.SetDefault("neo4j.password", cfg.Neo4j.Password)
	v.SetDefault("neo4j.database", cfg.Neo4j.Database)
	v.SetDefault("mcp.host", cfg.Mcp.Host)
	v.SetDefault("mcp.port", cfg.Mcp.Port)

	// Map environment variables to Viper keys
	v.BindEnv("app.port", "NEWSLM_PORT")
	v.BindEnv("app.work_dir", "NEWSLM_WORK_DIR")
	v.BindEnv("app.model_dir", "NEWSLM_MODEL_DIR")
	v.BindEnv("app.log_level", "NEWSLM_LOG_LEVEL")
	v.BindEnv("app.log_file", "NEWSLM_LOG_FILE")
	v.BindEnv("app.shutdown_timeout", "NEWSLM_SHUTDOWN_TIMEOUT")
	v.BindEnv("model.smoothing_k", "NEWSLM_SMOOTHING_K")
	v.BindEnv("model.key_gap_policy", "NEWSLM_KEY_GAP_POLICY")
	v.BindEnv("graph.backend", "NEWSLM_GRAPH_BACKEND")
	v.BindEnv("kuzu.path", "NEWSLM_KUZU_PATH")
	v.BindEnv("neo4j.uri", "NEO4J_URI")
	v.BindEnv("neo4j.username", "NEO4J_USERNAME")
	v.BindEnv("neo4j.password", "NEO4J_PASSWORD")
	v.BindEnv("neo4j.database", "NEO4J_DATABASE")
	v.BindEnv("mcp.host", "NEWSLM_MCP_HOST")
	v.BindEnv("mcp.port", "NEWSLM_MCP_PORT")

	cfg.App.Port = v.GetInt("app.port")
	cfg.App.WorkDir = v.GetString("app.work_dir")
	cfg.App.ModelDir = v.GetString("app.model_dir")
	cfg.App.LogLevel = v.GetString("app.log_level")
	cfg.App.LogFile = v.GetString("app.log_file")
	cfg.App.ShutdownTimeout = v.GetString("app.shutdown_timeout")
	cfg.Model.SmoothingK = v.GetFloat64("model.smoothing_k")
	cfg.Model.KeyGapPolicy = v.GetString("model.key_gap_policy")
	cfg.Graph.Backend = v.GetString("graph.backend")
	cfg.Kuzu.Path = v.GetString("kuzu.path")
	cfg.Neo4j.URI = v.GetString("neo4j.uri")
	cfg.Neo4j.Username = v.GetString("neo4j.username")
	cfg.Neo4j.Password = v.GetString("neo4j.password")
	cfg.Neo4j.Database = v.GetString("neo4j.database")
	cfg.Mcp.Host = v.GetString("mcp.host")
	cfg.Mcp.Port = v.GetInt("mcp.port")
}

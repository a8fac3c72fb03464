package main

import (
	"testing"

	"newslm/internal/config"

	"github.com/spf13/viper"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("NEWSLM_PORT", "9090")
	t.Setenv("NEWSLM_SMOOTHING_K", "0.5")
	t.Setenv("NEWSLM_GRAPH_BACKEND", "kuzu")
	t.Setenv("NEO4J_PASSWORD", "secret")

	cfg := &config.Config{
		App:   config.AppConfig{Port: 8080, LogLevel: "debug"},
		Model: config.ModelConfig{SmoothingK: 0.1, KeyGapPolicy: "backfill"},
		Mcp:   config.McpConfig{Port: 8081},
	}
	applyEnvOverrides(viper.New(), cfg)

	if cfg.App.Port != 9090 {
		t.Fatalf("Expected port 9090, got %d", cfg.App.Port)
	}
	if cfg.Model.SmoothingK != 0.5 {
		t.Fatalf("Expected k 0.5, got %v", cfg.Model.SmoothingK)
	}
	if cfg.Graph.Backend != "kuzu" || cfg.Neo4j.Password != "secret" {
		t.Fatalf("Expected graph overrides, got %+v %+v", cfg.Graph, cfg.Neo4j)
	}
	if cfg.App.LogLevel != "debug" || cfg.Model.KeyGapPolicy != "backfill" || cfg.Mcp.Port != 8081 {
		t.Fatalf("Expected file values to be kept, got %+v", cfg)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(config.AppConfig{LogLevel: "loud"}); err == nil {
		t.Fatalf("Expected an error for an unknown log level")
	}
	logger, err := newLogger(config.AppConfig{LogLevel: "warn"})
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("Expected debug logging to be disabled at warn level")
	}
}

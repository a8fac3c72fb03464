package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKuzuConfig_Parsing(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
graph:
  backend: kuzu
kuzu:
  path: /path/to/kuzu.db
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.Kuzu.Path != "/path/to/kuzu.db" {
		t.Fatalf("Expected path '/path/to/kuzu.db', got '%s'", cfg.Kuzu.Path)
	}
	if cfg.Graph.Backend != GraphBackendKuzu {
		t.Fatalf("Expected kuzu backend, got '%s'", cfg.Graph.Backend)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
corpora:
  - label: fake
    train: [fake/train.txt]
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.App.Port != 8080 || cfg.Mcp.Port != 8081 {
		t.Fatalf("Expected default ports, got app %d mcp %d", cfg.App.Port, cfg.Mcp.Port)
	}
	if cfg.Model.SmoothingK != 0.1 || cfg.Model.KeyGapPolicy != "skip" || cfg.Model.SplitOnPeriod {
		t.Fatalf("Unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Graph.Backend != GraphBackendNone {
		t.Fatalf("Expected graph export disabled, got '%s'", cfg.Graph.Backend)
	}
	if cfg.Corpora[0].Format != "text" {
		t.Fatalf("Expected text format, got '%s'", cfg.Corpora[0].Format)
	}
	if cfg.ShutdownDuration() != 5*time.Second {
		t.Fatalf("Expected 5s shutdown timeout, got %v", cfg.ShutdownDuration())
	}
	if cfg.Mcp.GetAddress() != "localhost:8081" {
		t.Fatalf("Expected localhost:8081, got %s", cfg.Mcp.GetAddress())
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"negative k", "model:\n  smoothing_k: -1\n"},
		{"unknown policy", "model:\n  key_gap_policy: zero\n"},
		{"unknown backend", "graph:\n  backend: sqlite\n"},
		{"neo4j without uri", "graph:\n  backend: neo4j\n"},
		{"bad timeout", "app:\n  shutdown_timeout: soon\n"},
		{"duplicate label", "corpora:\n  - label: real\n  - label: real\n"},
		{"missing label", "corpora:\n  - train: [a.txt]\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tc.yaml)); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfig_ResolvesCorpusPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	content := `
corpora:
  - label: real
    train: [real/train.txt, /abs/real.txt]
    validation: [real/valid.txt]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	corpus, err := cfg.GetCorpus("real")
	if err != nil {
		t.Fatalf("GetCorpus failed: %v", err)
	}
	if corpus.Train[0] != filepath.Join(dir, "real/train.txt") || corpus.Train[1] != "/abs/real.txt" {
		t.Fatalf("Unexpected train paths: %v", corpus.Train)
	}
	if corpus.Validation[0] != filepath.Join(dir, "real/valid.txt") {
		t.Fatalf("Unexpected validation paths: %v", corpus.Validation)
	}

	if _, err := cfg.GetCorpus("satire"); err == nil {
		t.Fatalf("Expected error for unknown corpus")
	}
}

func TestConfig_SetWorkDir(t *testing.T) {
	testCases := []struct {
		name     string
		workDir  string
		modelDir string
		want     string
	}{
		{"default dir with dot prefix", ".", "./models", filepath.Join("/srv/newslm", "models")},
		{"default dir", "/var/lib/newslm", "/var/lib/newslm/models/", filepath.Join("/srv/newslm", "models")},
		{"custom dir", ".", "/data/models", "/data/models"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{App: AppConfig{WorkDir: tc.workDir, ModelDir: tc.modelDir}}
			cfg.SetWorkDir("/srv/newslm")
			if cfg.App.WorkDir != "/srv/newslm" {
				t.Fatalf("Expected work dir /srv/newslm, got %s", cfg.App.WorkDir)
			}
			if cfg.App.ModelDir != tc.want {
				t.Fatalf("Expected model dir %s, got %s", tc.want, cfg.App.ModelDir)
			}
		})
	}
}

func TestLoadConfig_ShippedConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Model.SmoothingK != 0.1 {
		t.Fatalf("Expected smoothing k 0.1, got %v", cfg.Model.SmoothingK)
	}
	if len(cfg.Corpora) != 2 {
		t.Fatalf("Expected fake and real corpora, got %d", len(cfg.Corpora))
	}

	cfg.SetWorkDir("/srv/newslm")
	if cfg.App.ModelDir != filepath.Join("/srv/newslm", "models") {
		t.Fatalf("Expected model dir to follow work dir, got %s", cfg.App.ModelDir)
	}
}

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig is returned when a configuration file parses but describes an unusable setup
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	App     AppConfig      `yaml:"app"`
	Model   ModelConfig    `yaml:"model"`
	Corpora []CorpusConfig `yaml:"corpora"`
	Graph   GraphConfig    `yaml:"graph"`
	Kuzu    KuzuConfig     `yaml:"kuzu"`
	Neo4j   Neo4jConfig    `yaml:"neo4j"`
	Mcp     McpConfig      `yaml:"mcp"`
}

type AppConfig struct {
	Port            int    `yaml:"port"`
	WorkDir         string `yaml:"work_dir"`
	ModelDir        string `yaml:"model_dir"`
	LogLevel        string `yaml:"log_level"`
	LogFile         string `yaml:"log_file"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ModelConfig controls how language models are trained and scored
type ModelConfig struct {
	SmoothingK    float64 `yaml:"smoothing_k"`
	SplitOnPeriod bool    `yaml:"split_on_period"`
	KeyGapPolicy  string  `yaml:"key_gap_policy"`
	BayesAlpha    float64 `yaml:"bayes_alpha"`
	OverlapRate   float64 `yaml:"overlap_false_positive_rate"`
}

// CorpusConfig lists the documents of one label. Entries are files, directories or glob patterns.
type CorpusConfig struct {
	Label      string   `yaml:"label"`
	Train      []string `yaml:"train"`
	Validation []string `yaml:"validation"`
	Format     string   `yaml:"format,omitempty"`
}

type GraphConfig struct {
	Backend string `yaml:"backend"` // none, kuzu or neo4j
}

type KuzuConfig struct {
	Path string `yaml:"path"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database,omitempty"`
}

type McpConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (m *McpConfig) GetAddress() string {
	host := m.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, m.Port)
}

const (
	GraphBackendNone  = "none"
	GraphBackendKuzu  = "kuzu"
	GraphBackendNeo4j = "neo4j"
)

// LoadConfig reads and validates the YAML file at path, filling defaults for missing values
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	// relative corpus paths are resolved against the config file
	baseDir := filepath.Dir(path)
	for i := range cfg.Corpora {
		cfg.Corpora[i].Train = resolvePaths(baseDir, cfg.Corpora[i].Train)
		cfg.Corpora[i].Validation = resolvePaths(baseDir, cfg.Corpora[i].Validation)
	}

	return cfg, nil
}

// ParseConfig decodes YAML data, applies defaults and validates the result
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolvePaths(baseDir string, paths []string) []string {
	resolved := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			resolved[i] = p
		} else {
			resolved[i] = filepath.Join(baseDir, p)
		}
	}
	return resolved
}

// SetDefaults fills every unset value with its default
func (c *Config) SetDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.App.WorkDir == "" {
		c.App.WorkDir = "."
	}
	if c.App.ModelDir == "" {
		c.App.ModelDir = filepath.Join(c.App.WorkDir, "models")
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.ShutdownTimeout == "" {
		c.App.ShutdownTimeout = "5s"
	}
	if c.Model.SmoothingK == 0 {
		c.Model.SmoothingK = 0.1
	}
	if c.Model.KeyGapPolicy == "" {
		c.Model.KeyGapPolicy = "skip"
	}
	if c.Model.BayesAlpha == 0 {
		c.Model.BayesAlpha = 1.0
	}
	if c.Model.OverlapRate == 0 {
		c.Model.OverlapRate = 0.001
	}
	if c.Graph.Backend == "" {
		c.Graph.Backend = GraphBackendNone
	}
	if c.Mcp.Port == 0 {
		c.Mcp.Port = 8081
	}
	for i := range c.Corpora {
		if c.Corpora[i].Format == "" {
			c.Corpora[i].Format = "text"
		}
	}
}

// Validate checks the values the rest of the program relies on
func (c *Config) Validate() error {
	k := c.Model.SmoothingK
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return fmt.Errorf("%w: model.smoothing_k must be positive, got %v", ErrInvalidConfig, k)
	}
	switch c.Model.KeyGapPolicy {
	case "skip", "backfill", "error":
	default:
		return fmt.Errorf("%w: model.key_gap_policy must be skip, backfill or error, got %q", ErrInvalidConfig, c.Model.KeyGapPolicy)
	}
	if c.Model.BayesAlpha <= 0 {
		return fmt.Errorf("%w: model.bayes_alpha must be positive, got %v", ErrInvalidConfig, c.Model.BayesAlpha)
	}
	if c.Model.OverlapRate <= 0 || c.Model.OverlapRate >= 1 {
		return fmt.Errorf("%w: model.overlap_false_positive_rate must be in (0, 1), got %v", ErrInvalidConfig, c.Model.OverlapRate)
	}
	if _, err := time.ParseDuration(c.App.ShutdownTimeout); err != nil {
		return fmt.Errorf("%w: app.shutdown_timeout: %v", ErrInvalidConfig, err)
	}

	switch c.Graph.Backend {
	case GraphBackendNone, GraphBackendKuzu:
	case GraphBackendNeo4j:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("%w: graph backend neo4j needs neo4j.uri", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown graph backend %q", ErrInvalidConfig, c.Graph.Backend)
	}

	seen := make(map[string]struct{}, len(c.Corpora))
	for _, corpus := range c.Corpora {
		if corpus.Label == "" {
			return fmt.Errorf("%w: corpus without a label", ErrInvalidConfig)
		}
		if _, dup := seen[corpus.Label]; dup {
			return fmt.Errorf("%w: duplicate corpus label %q", ErrInvalidConfig, corpus.Label)
		}
		seen[corpus.Label] = struct{}{}
	}
	return nil
}

// GetCorpus returns the corpus configuration of a label
func (c *Config) GetCorpus(label string) (*CorpusConfig, error) {
	for i := range c.Corpora {
		if c.Corpora[i].Label == label {
			return &c.Corpora[i], nil
		}
	}
	return nil, fmt.Errorf("corpus %s not found", label)
}

// SetWorkDir moves the working directory. A model directory left at its default
// location under the old working directory moves with it.
func (c *Config) SetWorkDir(dir string) {
	if c.App.ModelDir != "" && filepath.Clean(c.App.ModelDir) == filepath.Join(c.App.WorkDir, "models") {
		c.App.ModelDir = filepath.Join(dir, "models")
	}
	c.App.WorkDir = dir
}

// ShutdownDuration returns the parsed app.shutdown_timeout
func (c *Config) ShutdownDuration() time.Duration {
	d, err := time.ParseDuration(c.App.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// Package config loads the injected configuration record that the
// workflow engine is constructed with. Nothing here is a package-level
// singleton; Load builds a fresh Config on every call.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"nlsql/internal/adapter"
)

// EmbeddingConfig configures the external embedding provider used by C3/C4.
type EmbeddingConfig struct {
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
}

// PlannerConfig configures the external LM used by C6.
type PlannerConfig struct {
	ModelName string `json:"model_name"`
	BaseURL   string `json:"base_url"`
	Token     string `json:"token"`
}

// Config is the full injected configuration record threaded through
// workflow construction. No module-level mutable singleton holds the
// fields below; callers build one Config per process (or per test) and
// pass it down explicitly.
type Config struct {
	DB        adapter.DBConfig `json:"db"`
	Planner   PlannerConfig    `json:"planner"`
	Embedding EmbeddingConfig  `json:"embedding"`

	// FKConfidenceThreshold gates automatic FK inference (C4 step 4).
	// No code in this module reads it; fkinfer.Infer is configured
	// through its own fkinfer.Config argument.
	FKConfidenceThreshold float64 `json:"fk_confidence_threshold"`
	// FKAmbiguityThreshold gates auto-select vs. human adjudication (C10 step 5).
	FKAmbiguityThreshold float64 `json:"fk_ambiguity_threshold"`

	MaxRetries      int `json:"max_retries"`
	MaxRefinements  int `json:"max_refinements"`

	// TestDatabaseMode disables the Domain Overlay merge (spec.md C5).
	// No code in this module reads it: schema.ApplyOverlay takes the
	// flag as an argument, and the workflow engine does not call it.
	TestDatabaseMode bool `json:"test_database_mode"`

	// CuratedMetadataFile / CuratedForeignKeysFile are the optional
	// domain-overlay input files (spec.md C5); empty means "absent".
	// No code in this module reads them: schema.ApplyOverlay takes both
	// paths as arguments, and the workflow engine does not call it.
	CuratedMetadataFile    string `json:"curated_metadata_file"`
	CuratedForeignKeysFile string `json:"curated_foreign_keys_file"`

	// AuditFilePath is the C10 resumable audit log location.
	AuditFilePath string `json:"audit_file_path"`
}

// Default returns a Config with the spec's default budgets filled in.
func Default() *Config {
	return &Config{
		FKConfidenceThreshold: 0.6,
		FKAmbiguityThreshold:  0.15,
		MaxRetries:            3,
		MaxRefinements:        3,
		AuditFilePath:         "fk_audit.csv",
	}
}

// searchPaths mirrors the teacher's llm.loadConfig short search list.
var searchPaths = []string{
	"nlsql_config.json",
	"../nlsql_config.json",
	"../../nlsql_config.json",
}

// Load reads a JSON config file from the first candidate path that
// exists, overlaying it onto Default(). If path is non-empty it is
// tried first and exclusively.
func Load(path string) (*Config, error) {
	cfg := Default()

	paths := searchPaths
	if path != "" {
		paths = []string{path}
	}

	var lastErr error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", p, err)
		}
		return cfg, nil
	}

	if path != "" {
		return nil, fmt.Errorf("loading config %s: %w", path, lastErr)
	}
	// No config file found anywhere on the search path: defaults only.
	return cfg, nil
}

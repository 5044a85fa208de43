// Package config loads the pipeline's YAML configuration and the
// committee's agents/secrets documents, with environment variable
// overrides and optional hot-reload. Grounded on the teacher's
// config/config.go load-and-validate shape, replacing its JSON Schema/UI
// settings payload with the options enumerated in spec.md §6.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/logweave/logweave/internal/pipeline"
)

// BufferConfig mirrors spec.md §6's first_pass.buffer.* options.
type BufferConfig struct {
	SizeThreshold    int `yaml:"size_threshold"`
	MaxPerMicroBatch int `yaml:"max_per_micro_batch"`
}

// CommitteeConfig mirrors spec.md §6's first_pass.committee.* options.
// Backend selects which Backend implementation the binary constructs;
// "stub" needs no further fields, "langchain"/"langgraph" both resolve to
// committee.HTTPBackend per SPEC_FULL.md §4.10.
type CommitteeConfig struct {
	Backend         string  `yaml:"backend"` // stub | langchain | langgraph
	AdversaryPolicy string  `yaml:"adversary_policy"`
	MaxItemsPerCall int     `yaml:"max_items_per_call"`
	MaxCharsPerCall int     `yaml:"max_chars_per_call"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps"`
}

// FirstPassConfig mirrors spec.md §6's first_pass.* options.
type FirstPassConfig struct {
	ReadChunkLines       int             `yaml:"read_chunk_lines"`
	MicroBatchSize       int             `yaml:"micro_batch_size"`
	MatchWorkersPerBatch int             `yaml:"match_workers_per_batch"`
	Buffer               BufferConfig    `yaml:"buffer"`
	Committee            CommitteeConfig `yaml:"committee"`
	Archive              ArchiveConfig   `yaml:"archive"`

	// PeriodicFlushSeconds, when positive, enables the out-of-band
	// gocron-driven buffer check described in SPEC_FULL.md §5. 0 disables it.
	PeriodicFlushSeconds int `yaml:"periodic_flush_seconds"`
}

// ArchiveConfig is the expansion's optional S3 sink for the three per-file
// outputs, per SPEC_FULL.md §4.11.
type ArchiveConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
}

// Config is the top-level document read from the path named by --config.
type Config struct {
	FirstPass FirstPassConfig `yaml:"first_pass"`

	// DBPath, AgentsPath, and SecretsPath default from the document but are
	// always overridable by LOG_ANALYZER_DB, LOG_ANALYZER_AGENTS_PATH, and
	// LOG_ANALYZER_SECRETS_PATH per spec.md §6.
	DBPath      string `yaml:"db_path"`
	AgentsPath  string `yaml:"agents_path"`
	SecretsPath string `yaml:"secrets_path"`
}

// Default returns a Config with every numeric option at the pipeline
// driver's own default, backend "stub", and sqlite3 paths under ./var.
func Default() Config {
	return Config{
		FirstPass: FirstPassConfig{
			ReadChunkLines:       4096,
			MicroBatchSize:       2000,
			MatchWorkersPerBatch: 4,
			Buffer:               BufferConfig{SizeThreshold: 500, MaxPerMicroBatch: 50},
			Committee:            CommitteeConfig{Backend: "stub", MaxItemsPerCall: 120, MaxCharsPerCall: 32000},
		},
		DBPath:      "./var/logweave.db",
		AgentsPath:  "./config/agents.yaml",
		SecretsPath: "./config/secrets.yaml",
	}
}

// Load reads and parses path over the defaults, then applies the three
// environment variable overrides. A missing file is not an error: Default()
// is returned with only env overrides applied, so the binary can run from
// pure environment configuration.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_ANALYZER_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LOG_ANALYZER_AGENTS_PATH"); v != "" {
		cfg.AgentsPath = v
	}
	if v := os.Getenv("LOG_ANALYZER_SECRETS_PATH"); v != "" {
		cfg.SecretsPath = v
	}
}

// PipelineConfig converts the loaded first_pass options into a
// pipeline.Config for the driver.
func (c Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		ReadChunkLines:         c.FirstPass.ReadChunkLines,
		MicroBatchSize:         c.FirstPass.MicroBatchSize,
		MatchWorkersPerBatch:   c.FirstPass.MatchWorkersPerBatch,
		BufferSizeThreshold:    c.FirstPass.Buffer.SizeThreshold,
		BufferMaxPerMicroBatch: c.FirstPass.Buffer.MaxPerMicroBatch,
		PeriodicFlushInterval:  time.Duration(c.FirstPass.PeriodicFlushSeconds) * time.Second,
	}
}

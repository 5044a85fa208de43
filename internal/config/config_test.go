package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FirstPass.MicroBatchSize != 2000 {
		t.Fatalf("MicroBatchSize = %d, want default 2000", cfg.FirstPass.MicroBatchSize)
	}
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
first_pass:
  micro_batch_size: 99
  buffer:
    size_threshold: 10
  committee:
    backend: langchain
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FirstPass.MicroBatchSize != 99 {
		t.Fatalf("MicroBatchSize = %d, want 99", cfg.FirstPass.MicroBatchSize)
	}
	if cfg.FirstPass.Buffer.SizeThreshold != 10 {
		t.Fatalf("SizeThreshold = %d, want 10", cfg.FirstPass.Buffer.SizeThreshold)
	}
	if cfg.FirstPass.Committee.Backend != "langchain" {
		t.Fatalf("Backend = %q, want langchain", cfg.FirstPass.Committee.Backend)
	}
	// ReadChunkLines was not set in the document, so the default survives.
	if cfg.FirstPass.ReadChunkLines != 4096 {
		t.Fatalf("ReadChunkLines = %d, want default 4096", cfg.FirstPass.ReadChunkLines)
	}
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("db_path: /tmp/from-file.db\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("LOG_ANALYZER_DB", "/tmp/override.db")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("DBPath = %q, want /tmp/override.db", cfg.DBPath)
	}
}

func TestSecretsLookupDotPath(t *testing.T) {
	doc := SecretsDocument{
		"openai": map[string]any{"api_key": "sk-test"},
	}
	if got := doc.Lookup("openai.api_key"); got != "sk-test" {
		t.Fatalf("Lookup = %q, want sk-test", got)
	}
	if got := doc.Lookup("openai.missing"); got != "" {
		t.Fatalf("Lookup = %q, want empty", got)
	}
	if got := doc.Lookup("nope.nope"); got != "" {
		t.Fatalf("Lookup = %q, want empty", got)
	}
}

func TestResolveFieldPriorityChain(t *testing.T) {
	secrets := SecretsDocument{"providers": map[string]any{"key": "from-secrets"}}

	if got := ResolveField("direct-value", "providers.key", secrets, "SOME_ENV", "fallback"); got != "direct-value" {
		t.Fatalf("direct priority failed: got %q", got)
	}
	if got := ResolveField("", "providers.key", secrets, "SOME_ENV", "fallback"); got != "from-secrets" {
		t.Fatalf("secrets priority failed: got %q", got)
	}
	t.Setenv("LOGWEAVE_TEST_ENV", "from-env")
	if got := ResolveField("", "providers.missing", secrets, "LOGWEAVE_TEST_ENV", "fallback"); got != "from-env" {
		t.Fatalf("env priority failed: got %q", got)
	}
	if got := ResolveField("", "", SecretsDocument{}, "", "fallback"); got != "fallback" {
		t.Fatalf("default fallback failed: got %q", got)
	}
}

func TestLoadAgentsMissingFileReturnsZeroValue(t *testing.T) {
	ac, err := LoadAgents(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadAgents: %v", err)
	}
	if ac.Drafter.Model != "" {
		t.Fatalf("expected zero-value AgentsConfig, got %+v", ac)
	}
}

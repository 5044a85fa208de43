package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AgentSpec configures one committee role (clusterer, drafter, adversary,
// regressor, arbiter). Grounded on _build_llms_for_agents
// (core/committee.py, original_source): each role may name its own model,
// endpoint, and credentials independently.
type AgentSpec struct {
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`

	// AuthScheme selects how HTTPBackend authenticates: "oauth2" resolves
	// ClientIDRef/ClientSecretRef/TokenURL through an OAuth2
	// client-credentials exchange; "jwt" mints a short-lived bearer
	// assertion from SigningKeyRef; empty means no auth header is sent.
	AuthScheme string `yaml:"auth_scheme"`

	ClientIDRef     string `yaml:"client_id_ref"`
	ClientSecretRef string `yaml:"client_secret_ref"`
	TokenURL        string `yaml:"token_url"`
	SigningKeyRef   string `yaml:"signing_key_ref"`

	// BearerTokenRef, when set, is resolved directly as the Authorization
	// bearer value (no exchange), for gateways that issue long-lived keys.
	BearerTokenRef string `yaml:"bearer_token_ref"`
}

// AgentsConfig is the document read from agents.yaml: one AgentSpec per
// committee role.
type AgentsConfig struct {
	Clusterer AgentSpec `yaml:"clusterer"`
	Drafter   AgentSpec `yaml:"drafter"`
	Adversary AgentSpec `yaml:"adversary"`
	Regressor AgentSpec `yaml:"regressor"`
	Arbiter   AgentSpec `yaml:"arbiter"`
}

// LoadAgents reads and parses an agents.yaml document. A missing file
// returns a zero-value AgentsConfig, not an error: every role then has an
// empty model, endpoint, and set of credential refs.
func LoadAgents(path string) (AgentsConfig, error) {
	var ac AgentsConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ac, nil
		}
		return ac, fmt.Errorf("reading agents config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &ac); err != nil {
		return ac, fmt.Errorf("parsing agents config %s: %w", path, err)
	}
	return ac, nil
}

// SecretsDocument is an arbitrarily nested YAML document of provider
// credentials, addressed by dot-path (e.g. "openai.api_key").
type SecretsDocument map[string]any

// LoadSecrets reads a secrets.yaml document. A missing file returns an
// empty document, not an error; every Lookup on it then returns "".
func LoadSecrets(path string) (SecretsDocument, error) {
	doc := SecretsDocument{}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("reading secrets %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parsing secrets %s: %w", path, err)
	}
	return doc, nil
}

// Lookup resolves a dot-separated path ("openai.api_key") into nested maps,
// returning "" if any segment is missing or not a string/map.
func (d SecretsDocument) Lookup(dotPath string) string {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(dotPath, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}

// ResolveField implements the model-config resolution priority from
// _resolve_model_field (core/committee.py): a direct value on the agent
// spec wins; otherwise a "*_ref" dot-path is looked up in secrets; otherwise
// an environment variable fallback; otherwise def.
func ResolveField(direct, ref string, secrets SecretsDocument, envVar, def string) string {
	if direct != "" {
		return direct
	}
	if ref != "" {
		if v := secrets.Lookup(ref); v != "" {
			return v
		}
	}
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}
	return def
}

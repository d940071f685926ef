// Package config loads the gateway's YAML configuration document, applies
// environment-variable substitution and documented defaults, and
// validates the result before the process starts serving traffic.
// Grounded on the host project's AIDebateConfigLoader: read file, parse
// YAML, substitute ${VAR} tokens, apply defaults, validate.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelRoleConfig names the model used for one role in the pipeline.
type ModelRoleConfig struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ModelsConfig assigns a model to each role the pipeline calls.
type ModelsConfig struct {
	Main           ModelRoleConfig `yaml:"main"`
	Fusion         ModelRoleConfig `yaml:"fusion"`
	Summary        ModelRoleConfig `yaml:"summary"`
	Counterexample ModelRoleConfig `yaml:"counterexample"`
	Vote           ModelRoleConfig `yaml:"vote"`
}

// ThinkingConfig configures the ThinkingThread step loop.
type ThinkingConfig struct {
	Threads           int    `yaml:"threads"`
	MaxSteps          int    `yaml:"max_steps"`
	TerminationMarker string `yaml:"termination_marker"`
}

// VoteKeywords configures how raw vote text is parsed into ballots.
type VoteKeywords struct {
	Main    []string `yaml:"main"`
	Counter []string `yaml:"counter"`
}

// ValidationConfig configures the Validator.
type ValidationConfig struct {
	Enabled         bool         `yaml:"enabled"`
	Counterexamples int          `yaml:"counterexamples"`
	Votes           int          `yaml:"votes"`
	VoteKeywords    VoteKeywords `yaml:"vote_keywords"`
}

// FusionConfig configures the Fusion stage.
type FusionConfig struct {
	Strategy        string `yaml:"strategy"`
	ConcatDelimiter string `yaml:"concat_delimiter"`
}

// ConcurrencyConfig configures the process-wide call limiter.
type ConcurrencyConfig struct {
	MaxInFlight int `yaml:"max_in_flight"`
}

// RetryConfig configures the ModelClient retry decorator.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// CircuitBreakerConfig configures the per-model circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP ingress.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	RequestDeadline time.Duration `yaml:"request_deadline"`
}

// Config is the full, validated configuration document.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Models         ModelsConfig         `yaml:"models"`
	Thinking       ThinkingConfig       `yaml:"thinking"`
	Validation     ValidationConfig     `yaml:"validation"`
	Fusion         FusionConfig         `yaml:"fusion"`
	Concurrency    ConcurrencyConfig    `yaml:"concurrency"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			RequestDeadline: 5 * time.Minute,
		},
		Models: ModelsConfig{
			Main:           ModelRoleConfig{Name: "main"},
			Fusion:         ModelRoleConfig{Name: "fusion"},
			Summary:        ModelRoleConfig{Name: "summary"},
			Counterexample: ModelRoleConfig{Name: "counterexample"},
			Vote:           ModelRoleConfig{Name: "vote"},
		},
		Thinking: ThinkingConfig{
			Threads:           3,
			MaxSteps:          15,
			TerminationMarker: "<END>",
		},
		Validation: ValidationConfig{
			Enabled:         true,
			Counterexamples: 3,
			Votes:           3,
			VoteKeywords: VoteKeywords{
				Main:    []string{"main", "correct", "valid"},
				Counter: []string{"counter", "incorrect", "invalid", "flawed"},
			},
		},
		Fusion: FusionConfig{
			Strategy:        "intelligent",
			ConcatDelimiter: "\n\n---\n\n",
		},
		Concurrency: ConcurrencyConfig{
			MaxInFlight: 32,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    8 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Loader loads a Config from a YAML file, substituting ${VAR} tokens from
// the process environment and applying defaults for anything left unset.
type Loader struct {
	path string
}

// NewLoader builds a Loader for the given file path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

var envToken = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, substitutes, defaults and validates the configuration file.
func (l *Loader) Load() (*Config, error) {
	if l.path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", l.path, err)
	}

	return l.LoadFromBytes(raw)
}

// LoadFromBytes loads a Config from an in-memory YAML document; exposed
// for tests and for embedding a default config at build time.
func (l *Loader) LoadFromBytes(raw []byte) (*Config, error) {
	substituted := envToken.ReplaceAllStringFunc(string(raw), func(token string) string {
		name := envToken.FindStringSubmatch(token)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return token
	})

	if err := rejectUnknownKeys([]byte(substituted)); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(substituted), cfg); err != nil {
		return nil, fmt.Errorf("config: parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// knownTopLevelKeys lists every recognized top-level key; anything else in
// the document is rejected at load time.
var knownTopLevelKeys = map[string]bool{
	"server": true, "models": true, "thinking": true, "validation": true,
	"fusion": true, "concurrency": true, "retry": true, "circuit_breaker": true,
	"logging": true,
}

func rejectUnknownKeys(raw []byte) error {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return fmt.Errorf("parse YAML for key validation: %w", err)
	}
	if len(node.Content) == 0 {
		return nil
	}
	doc := node.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		if !knownTopLevelKeys[key] {
			return fmt.Errorf("unrecognized configuration key %q", key)
		}
	}
	return nil
}

// Validate checks cross-field invariants the YAML schema cannot express on
// its own.
func (c *Config) Validate() error {
	if c.Thinking.Threads < 1 || c.Thinking.Threads > 8 {
		return fmt.Errorf("thinking.threads must be in [1,8], got %d", c.Thinking.Threads)
	}
	if c.Thinking.MaxSteps < 1 || c.Thinking.MaxSteps > 50 {
		return fmt.Errorf("thinking.max_steps must be in [1,50], got %d", c.Thinking.MaxSteps)
	}
	if c.Fusion.Strategy != "intelligent" && c.Fusion.Strategy != "concat" {
		return fmt.Errorf("fusion.strategy must be intelligent or concat, got %q", c.Fusion.Strategy)
	}
	if c.Validation.Counterexamples < 1 {
		return fmt.Errorf("validation.counterexamples must be >= 1")
	}
	if c.Validation.Votes < 1 {
		return fmt.Errorf("validation.votes must be >= 1")
	}
	if c.Concurrency.MaxInFlight < 1 {
		return fmt.Errorf("concurrency.max_in_flight must be >= 1")
	}
	return nil
}

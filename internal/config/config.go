package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel      = "gpt-4o"
	DefaultMaxTokens  = 4096
	DefaultProvider   = "openai"
	DefaultPattern    = "*.rs"
	DefaultLabel      = "Rust Example"
	DefaultRoot       = "."
	DefaultQuestion   = "Which Rust code example would be best suited to only start a container in a cloud environment? Provide reasoning - show the part of the code or function that is most relevant"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

type Config struct {
	Agent    AgentConfig    `json:"agent" yaml:"agent"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Examples ExamplesConfig `json:"examples" yaml:"examples"`
}

type AgentConfig struct {
	Model       string   `json:"model" yaml:"model"`
	MaxTokens   int      `json:"maxTokens" yaml:"maxTokens"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Preamble    string   `json:"preamble,omitempty" yaml:"preamble,omitempty"`
}

type ProviderConfig struct {
	Type       string `json:"type,omitempty" yaml:"type,omitempty"` // "openai" (default) or "anthropic"
	APIKey     string `json:"apiKey" yaml:"apiKey"`
	BaseURL    string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	MaxRetries int    `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
}

// ExamplesConfig selects the files attached to the prompt and how each one is labeled.
type ExamplesConfig struct {
	Root     string `json:"root" yaml:"root"`
	Pattern  string `json:"pattern" yaml:"pattern"`
	Label    string `json:"label" yaml:"label"`
	Question string `json:"question,omitempty" yaml:"question,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Provider: ProviderConfig{},
		Examples: ExamplesConfig{
			Root:     DefaultRoot,
			Pattern:  DefaultPattern,
			Label:    DefaultLabel,
			Question: DefaultQuestion,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".exampleqa")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// YAMLConfigPath is consulted before ConfigPath.
func YAMLConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ActivePath is the file LoadConfig reads: the YAML file when present, else the JSON one.
func ActivePath() string {
	if _, err := os.Stat(YAMLConfigPath()); err == nil {
		return YAMLConfigPath()
	}
	return ConfigPath()
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFile(cfg); err != nil {
		return nil, err
	}

	// Environment variable overrides
	cfg.Provider.Type = strings.ToLower(strings.TrimSpace(
		lo.CoalesceOrEmpty(os.Getenv("EXAMPLEQA_PROVIDER"), cfg.Provider.Type),
	))
	cfg.Provider.APIKey = lo.CoalesceOrEmpty(os.Getenv("EXAMPLEQA_API_KEY"), cfg.Provider.APIKey)
	cfg.Provider.BaseURL = lo.CoalesceOrEmpty(os.Getenv("EXAMPLEQA_BASE_URL"), cfg.Provider.BaseURL)
	if cfg.Provider.Type == "" && cfg.Provider.APIKey == "" &&
		os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("ANTHROPIC_API_KEY") != "" {
		cfg.Provider.Type = ProviderAnthropic
	}

	// Vendor variables only fill what is still empty, and only for their own provider.
	switch cfg.ProviderType() {
	case ProviderAnthropic:
		cfg.Provider.APIKey = lo.CoalesceOrEmpty(cfg.Provider.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		cfg.Provider.BaseURL = lo.CoalesceOrEmpty(cfg.Provider.BaseURL, os.Getenv("ANTHROPIC_BASE_URL"))
	case ProviderOpenAI:
		cfg.Provider.APIKey = lo.CoalesceOrEmpty(cfg.Provider.APIKey, os.Getenv("OPENAI_API_KEY"))
		cfg.Provider.BaseURL = lo.CoalesceOrEmpty(cfg.Provider.BaseURL, os.Getenv("OPENAI_BASE_URL"))
	}

	cfg.Agent.Model = lo.CoalesceOrEmpty(os.Getenv("EXAMPLEQA_MODEL"), cfg.Agent.Model)
	cfg.Examples.Pattern = lo.CoalesceOrEmpty(os.Getenv("EXAMPLEQA_PATTERN"), cfg.Examples.Pattern)
	if retries := os.Getenv("EXAMPLEQA_MAX_RETRIES"); retries != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(retries))
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid EXAMPLEQA_MAX_RETRIES %q: must be a non-negative integer", retries)
		}
		cfg.Provider.MaxRetries = parsed
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize fills empty fields with defaults so an incomplete file still yields a usable config.
func (c *Config) Normalize() {
	def := DefaultConfig()
	c.Agent.Model = lo.CoalesceOrEmpty(strings.TrimSpace(c.Agent.Model), def.Agent.Model)
	if c.Agent.MaxTokens <= 0 {
		c.Agent.MaxTokens = def.Agent.MaxTokens
	}
	c.Provider.Type = strings.ToLower(strings.TrimSpace(c.Provider.Type))
	c.Examples.Root = lo.CoalesceOrEmpty(c.Examples.Root, def.Examples.Root)
	c.Examples.Pattern = lo.CoalesceOrEmpty(c.Examples.Pattern, def.Examples.Pattern)
	c.Examples.Label = lo.CoalesceOrEmpty(c.Examples.Label, def.Examples.Label)
	c.Examples.Question = lo.CoalesceOrEmpty(strings.TrimSpace(c.Examples.Question), def.Examples.Question)
}

// ProviderType reports the effective provider, defaulting to OpenAI.
func (c *Config) ProviderType() string {
	if c.Provider.Type == "" {
		return DefaultProvider
	}
	return c.Provider.Type
}

func loadFile(cfg *Config) error {
	data, err := os.ReadFile(YAMLConfigPath())
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	data, err = os.ReadFile(ConfigPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}

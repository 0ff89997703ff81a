package config

import (
	"fmt"
	"time"
)

// Config is the main configuration structure for MovieBot.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Tools    ToolsConfig    `yaml:"tools"`
	Cache    CacheConfig    `yaml:"cache"`
	UX       UXConfig       `yaml:"ux"`
	Services ServicesConfig `yaml:"services"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LLMConfig holds model selection and per-role iteration caps.
type LLMConfig struct {
	// Models maps a role (chat, smart, worker, quick, summarizer) to a model id.
	Models map[string]string `yaml:"models"`

	// AgentMaxIters caps tool iterations for the main agent loop.
	AgentMaxIters int `yaml:"agentMaxIters"`

	// WorkerMaxIters caps tool iterations for sub-agents.
	WorkerMaxIters int `yaml:"workerMaxIters"`

	// MaxIters is the fallback cap when a role-specific one is unset.
	MaxIters int `yaml:"maxIters"`
}

// IterLimit resolves the iteration cap for a role.
func (c LLMConfig) IterLimit(role string) int {
	switch role {
	case "worker":
		if c.WorkerMaxIters > 0 {
			return c.WorkerMaxIters
		}
	default:
		if c.AgentMaxIters > 0 {
			return c.AgentMaxIters
		}
	}
	if c.MaxIters > 0 {
		return c.MaxIters
	}
	return 6
}

// ToolTuning holds the executor knobs that can be set globally, per family,
// or per tool. Zero values mean "inherit"; RetryMax is a pointer so an
// explicit zero (no retries) survives defaulting.
type ToolTuning struct {
	TimeoutMs     int  `yaml:"timeoutMs"`
	RetryMax      *int `yaml:"retryMax"`
	BackoffBaseMs int  `yaml:"backoffBaseMs"`
}

// CircuitConfig configures the per-tool circuit breaker.
type CircuitConfig struct {
	OpenAfterFailures int `yaml:"openAfterFailures"`
	OpenForMs         int `yaml:"openForMs"`
}

// ToolsConfig configures tool execution: timeouts, retries, parallelism,
// hedging, summarization, and the breaker.
type ToolsConfig struct {
	TimeoutMs     int  `yaml:"timeoutMs"`
	RetryMax      *int `yaml:"retryMax"`
	BackoffBaseMs int  `yaml:"backoffBaseMs"`

	// Parallelism bounds concurrent batch executions per turn.
	Parallelism int `yaml:"parallelism"`

	// ListMaxItems caps list lengths in summarized tool results.
	ListMaxItems int `yaml:"listMaxItems"`

	// MaxToolMessagesInContext prunes old tool messages beyond this count.
	MaxToolMessagesInContext int `yaml:"maxToolMessagesInContext"`

	PerTool   map[string]ToolTuning `yaml:"perTool"`
	PerFamily map[string]ToolTuning `yaml:"perFamily"`

	// FamilyParallelism caps in-flight calls per backing service.
	FamilyParallelism map[string]int `yaml:"familyParallelism"`

	// HedgeDelayMsByFamily enables hedged reads for a family when > 0.
	HedgeDelayMsByFamily map[string]int `yaml:"hedgeDelayMsByFamily"`

	Circuit CircuitConfig `yaml:"circuit"`
}

// CacheConfig holds cross-run result cache lifetimes.
type CacheConfig struct {
	TTLShortSec  int `yaml:"ttlShortSec"`
	TTLMediumSec int `yaml:"ttlMediumSec"`
}

// UXConfig throttles user-visible progress.
type UXConfig struct {
	ProgressUpdateIntervalMs int `yaml:"progressUpdateIntervalMs"`
	HeartbeatIntervalMs      int `yaml:"heartbeatIntervalMs"`
	TypingPulseMs            int `yaml:"typingPulseMs"`
	ProgressThresholdMs      int `yaml:"progressThresholdMs"`
	ProgressUpdateFrequency  int `yaml:"progressUpdateFrequency"`
}

// ServiceConfig is the connection info for one external service.
type ServiceConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Token   string `yaml:"token"`
}

// ServicesConfig holds connection info for the external media services.
type ServicesConfig struct {
	TMDb   ServiceConfig `yaml:"tmdb"`
	Plex   ServiceConfig `yaml:"plex"`
	Radarr ServiceConfig `yaml:"radarr"`
	Sonarr ServiceConfig `yaml:"sonarr"`

	// PreferencesPath is the JSON household-preferences file.
	PreferencesPath string `yaml:"preferencesPath"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LLM.MaxIters <= 0 {
		c.LLM.MaxIters = 6
	}
	if c.LLM.AgentMaxIters <= 0 {
		c.LLM.AgentMaxIters = 8
	}
	if c.LLM.WorkerMaxIters <= 0 {
		c.LLM.WorkerMaxIters = 1
	}
	if c.Tools.TimeoutMs <= 0 {
		c.Tools.TimeoutMs = 8000
	}
	if c.Tools.RetryMax == nil {
		two := 2
		c.Tools.RetryMax = &two
	}
	if c.Tools.BackoffBaseMs <= 0 {
		c.Tools.BackoffBaseMs = 250
	}
	if c.Tools.Parallelism <= 0 {
		c.Tools.Parallelism = 4
	}
	if c.Tools.ListMaxItems <= 0 {
		c.Tools.ListMaxItems = 5
	}
	if c.Tools.MaxToolMessagesInContext <= 0 {
		c.Tools.MaxToolMessagesInContext = 12
	}
	if c.Tools.Circuit.OpenAfterFailures <= 0 {
		c.Tools.Circuit.OpenAfterFailures = 3
	}
	if c.Tools.Circuit.OpenForMs <= 0 {
		c.Tools.Circuit.OpenForMs = 3000
	}
	if c.Tools.FamilyParallelism == nil {
		c.Tools.FamilyParallelism = map[string]int{}
	}
	if _, ok := c.Tools.FamilyParallelism["tmdb"]; !ok {
		c.Tools.FamilyParallelism["tmdb"] = 16
	}
	if _, ok := c.Tools.FamilyParallelism["plex"]; !ok {
		c.Tools.FamilyParallelism["plex"] = 8
	}
	if _, ok := c.Tools.FamilyParallelism["radarr"]; !ok {
		c.Tools.FamilyParallelism["radarr"] = 4
	}
	if _, ok := c.Tools.FamilyParallelism["sonarr"]; !ok {
		c.Tools.FamilyParallelism["sonarr"] = 4
	}
	if c.Cache.TTLShortSec <= 0 {
		c.Cache.TTLShortSec = 60
	}
	if c.Cache.TTLMediumSec <= 0 {
		c.Cache.TTLMediumSec = 300
	}
	if c.UX.ProgressUpdateIntervalMs <= 0 {
		c.UX.ProgressUpdateIntervalMs = 900
	}
	if c.UX.HeartbeatIntervalMs <= 0 {
		c.UX.HeartbeatIntervalMs = 5000
	}
	if c.UX.TypingPulseMs <= 0 {
		c.UX.TypingPulseMs = 6000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the configuration for hard errors.
func (c *Config) Validate() error {
	if c.Tools.Parallelism < 1 {
		return fmt.Errorf("tools.parallelism must be >= 1")
	}
	for family, n := range c.Tools.FamilyParallelism {
		if n < 1 {
			return fmt.Errorf("tools.familyParallelism.%s must be >= 1", family)
		}
	}
	for family, ms := range c.Tools.HedgeDelayMsByFamily {
		if ms < 0 {
			return fmt.Errorf("tools.hedgeDelayMsByFamily.%s must be >= 0", family)
		}
	}
	return nil
}

// ResolvedTuning is the effective executor tuning for one tool.
type ResolvedTuning struct {
	TimeoutMs     int
	RetryMax      int
	BackoffBaseMs int
}

// TuningFor resolves the effective executor tuning for a tool, applying
// per-tool over per-family over global defaults.
func (c *Config) TuningFor(tool, family string) ResolvedTuning {
	t := ResolvedTuning{
		TimeoutMs:     c.Tools.TimeoutMs,
		BackoffBaseMs: c.Tools.BackoffBaseMs,
	}
	if c.Tools.RetryMax != nil {
		t.RetryMax = *c.Tools.RetryMax
	}
	if fam, ok := c.Tools.PerFamily[family]; ok {
		t.merge(fam)
	}
	if pt, ok := c.Tools.PerTool[tool]; ok {
		t.merge(pt)
	}
	return t
}

func (t *ResolvedTuning) merge(over ToolTuning) {
	if over.TimeoutMs > 0 {
		t.TimeoutMs = over.TimeoutMs
	}
	if over.RetryMax != nil {
		t.RetryMax = *over.RetryMax
	}
	if over.BackoffBaseMs > 0 {
		t.BackoffBaseMs = over.BackoffBaseMs
	}
}

// HedgeDelay returns the hedge threshold for a family, zero when disabled.
func (c *Config) HedgeDelay(family string) time.Duration {
	return time.Duration(c.Tools.HedgeDelayMsByFamily[family]) * time.Millisecond
}

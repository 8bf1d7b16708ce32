// Package config loads the bot's settings from YAML or TOML, overlays
// secrets from the environment and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/docqa-go/internal/domain/prompts"
)

const (
	DefaultDocsDir        = "../aim/docs/source"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultChunkSize      = 1000
	DefaultEmbedBatchSize = 64
	DefaultK              = 4
	DefaultTemperature    = 0.2
	DefaultTimeout        = 60 * time.Second
	DefaultMaxConcurrency = 4
	DefaultTrackerPath    = "docqa-tracking.db"
	DefaultExperiment     = "Aim Documents Bot"
	DefaultFlushSchedule  = "@every 5m"
	DefaultCommandPrefix  = "/question"
	DefaultAck            = "searching..."
	DefaultFailure        = "Sorry, I could not answer that question right now."
	DefaultMaxInFlight    = 4
	DefaultHTTPAddr       = ":8080"
)

// Duration decodes "60s"-style strings from both YAML and TOML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// LogConfig selects the logger level and output format.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `yaml:"format" toml:"format" validate:"oneof=console json"`
}

// ChunkingConfig controls how documents are split before embedding.
type ChunkingConfig struct {
	Size           int `yaml:"size" toml:"size" validate:"gt=0"`
	Overlap        int `yaml:"overlap" toml:"overlap" validate:"gte=0,ltfield=Size"`
	EmbedBatchSize int `yaml:"embed_batch_size" toml:"embed_batch_size" validate:"gt=0"`
}

type RetrievalConfig struct {
	K int `yaml:"k" toml:"k" validate:"gt=0"`
}

// EmbedderConfig selects the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider" toml:"provider" validate:"oneof=tfidf openai gemini ollama"`
	Model    string `yaml:"model" toml:"model"`
	BaseURL  string `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
}

// RetryConfig bounds retries of transient model failures.
type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts" toml:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoff Duration `yaml:"initial_backoff" toml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff" toml:"max_backoff"`
	Multiplier     float64  `yaml:"multiplier" toml:"multiplier" validate:"gte=1"`
}

// LLMConfig selects the language model provider and the call limits.
type LLMConfig struct {
	Provider          string      `yaml:"provider" toml:"provider" validate:"oneof=openai anthropic gemini ollama"`
	Model             string      `yaml:"model" toml:"model"`
	BaseURL           string      `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
	Temperature       float32     `yaml:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int         `yaml:"max_tokens" toml:"max_tokens" validate:"gte=0"`
	Timeout           Duration    `yaml:"timeout" toml:"timeout"`
	MaxConcurrency    int         `yaml:"max_concurrency" toml:"max_concurrency" validate:"gt=0"`
	RequestsPerSecond float64     `yaml:"requests_per_second" toml:"requests_per_second" validate:"gte=0"`
	MapFailurePolicy  string      `yaml:"map_failure_policy" toml:"map_failure_policy" validate:"oneof=fail skip"`
	Retry             RetryConfig `yaml:"retry" toml:"retry"`
}

// PromptsConfig overrides the built-in templates. Empty keeps the default.
type PromptsConfig struct {
	Question string `yaml:"question" toml:"question"`
	Combine  string `yaml:"combine" toml:"combine"`
}

// TrackerConfig enables the sqlite experiment tracker.
type TrackerConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	Path          string `yaml:"path" toml:"path"`
	Experiment    string `yaml:"experiment" toml:"experiment"`
	FlushSchedule string `yaml:"flush_schedule" toml:"flush_schedule"`
}

// APIKeys are normally supplied through the environment.
type APIKeys struct {
	OpenAI    string `yaml:"openai" toml:"openai"`
	Anthropic string `yaml:"anthropic" toml:"anthropic"`
	Gemini    string `yaml:"gemini" toml:"gemini"`
}

type DiscordConfig struct {
	Token         string `yaml:"token" toml:"token"`
	CommandPrefix string `yaml:"command_prefix" toml:"command_prefix" validate:"required"`
	Ack           string `yaml:"ack" toml:"ack" validate:"required"`
	Failure       string `yaml:"failure" toml:"failure" validate:"required"`
	MaxInFlight   int    `yaml:"max_in_flight" toml:"max_in_flight" validate:"gt=0"`
	LockFile      string `yaml:"lock_file" toml:"lock_file"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" toml:"addr" validate:"required"`
}

// Config is the root configuration.
type Config struct {
	DocsDir   string          `yaml:"docs_dir" toml:"docs_dir" validate:"required"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Chunking  ChunkingConfig  `yaml:"chunking" toml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
	Embedder  EmbedderConfig  `yaml:"embedder" toml:"embedder"`
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Prompts   PromptsConfig   `yaml:"prompts" toml:"prompts"`
	Tracker   TrackerConfig   `yaml:"tracker" toml:"tracker"`
	APIKeys   APIKeys         `yaml:"api_keys" toml:"api_keys"`
	Discord   DiscordConfig   `yaml:"discord" toml:"discord"`
	HTTP      HTTPConfig      `yaml:"http" toml:"http"`
	Watch     bool            `yaml:"watch" toml:"watch"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path (YAML or TOML by extension) over the defaults and overlays
// the environment. Keys absent from the file keep their default, so an
// explicit zero such as temperature 0 survives. An empty path means defaults
// only. The result is not yet validated; flags may still override it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		case ".toml":
			err = toml.Unmarshal(data, cfg)
		default:
			return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	applyEnv(cfg, os.LookupEnv)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.Discord.Token, "DISCORD_TOKEN")
	set(&cfg.APIKeys.OpenAI, "OPENAI_API_KEY")
	set(&cfg.APIKeys.Anthropic, "ANTHROPIC_API_KEY")
	set(&cfg.APIKeys.Gemini, "GEMINI_API_KEY")
	set(&cfg.DocsDir, "DOCQA_DOCS_DIR")
	set(&cfg.Log.Level, "DOCQA_LOG_LEVEL")
}

func applyDefaults(cfg *Config) {
	if cfg.DocsDir == "" {
		cfg.DocsDir = DefaultDocsDir
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = DefaultChunkSize
	}
	if cfg.Chunking.EmbedBatchSize == 0 {
		cfg.Chunking.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = DefaultK
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = "tfidf"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = DefaultTemperature
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(DefaultTimeout)
	}
	if cfg.LLM.MaxConcurrency == 0 {
		cfg.LLM.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.LLM.MapFailurePolicy == "" {
		cfg.LLM.MapFailurePolicy = "fail"
	}
	if cfg.LLM.Retry.MaxAttempts == 0 {
		cfg.LLM.Retry.MaxAttempts = 3
	}
	if cfg.LLM.Retry.InitialBackoff == 0 {
		cfg.LLM.Retry.InitialBackoff = Duration(500 * time.Millisecond)
	}
	if cfg.LLM.Retry.MaxBackoff == 0 {
		cfg.LLM.Retry.MaxBackoff = Duration(10 * time.Second)
	}
	if cfg.LLM.Retry.Multiplier == 0 {
		cfg.LLM.Retry.Multiplier = 2
	}
	if cfg.Tracker.Path == "" {
		cfg.Tracker.Path = DefaultTrackerPath
	}
	if cfg.Tracker.Experiment == "" {
		cfg.Tracker.Experiment = DefaultExperiment
	}
	if cfg.Tracker.FlushSchedule == "" {
		cfg.Tracker.FlushSchedule = DefaultFlushSchedule
	}
	if cfg.Discord.CommandPrefix == "" {
		cfg.Discord.CommandPrefix = DefaultCommandPrefix
	}
	if cfg.Discord.Ack == "" {
		cfg.Discord.Ack = DefaultAck
	}
	if cfg.Discord.Failure == "" {
		cfg.Discord.Failure = DefaultFailure
	}
	if cfg.Discord.MaxInFlight == 0 {
		cfg.Discord.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.Discord.LockFile == "" {
		cfg.Discord.LockFile = filepath.Join(os.TempDir(), "docqa-discord.lock")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
}

var validate = validator.New()

// Validate checks field ranges, prompt placeholders and that the selected
// providers have credentials.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var problems []error
	if c.LLM.Retry.InitialBackoff <= 0 || c.LLM.Retry.MaxBackoff < c.LLM.Retry.InitialBackoff {
		problems = append(problems, errors.New("llm.retry: need 0 < initial_backoff <= max_backoff"))
	}
	if c.LLM.Timeout < 0 {
		problems = append(problems, errors.New("llm.timeout must not be negative"))
	}
	if c.Prompts.Question != "" {
		if _, err := prompts.NewQuestionTemplate(c.Prompts.Question); err != nil {
			problems = append(problems, fmt.Errorf("prompts.question: %w", err))
		}
	}
	if c.Prompts.Combine != "" {
		if _, err := prompts.NewCombineTemplate(c.Prompts.Combine); err != nil {
			problems = append(problems, fmt.Errorf("prompts.combine: %w", err))
		}
	}
	if key := c.LLMAPIKey(); key == "" && c.LLM.Provider != "ollama" {
		problems = append(problems, fmt.Errorf("llm provider %s needs an API key (%s)", c.LLM.Provider, envFor(c.LLM.Provider)))
	}
	if key := c.EmbedderAPIKey(); key == "" && (c.Embedder.Provider == "openai" || c.Embedder.Provider == "gemini") {
		problems = append(problems, fmt.Errorf("embedder provider %s needs an API key (%s)", c.Embedder.Provider, envFor(c.Embedder.Provider)))
	}
	return errors.Join(problems...)
}

// ValidateDiscord additionally requires a bot token.
func (c *Config) ValidateDiscord() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Discord.Token == "" {
		return errors.New("discord token is required (DISCORD_TOKEN)")
	}
	return nil
}

// LLMAPIKey returns the key for the selected language model provider.
func (c *Config) LLMAPIKey() string { return c.APIKeys.forProvider(c.LLM.Provider) }

// EmbedderAPIKey returns the key for the selected embedding provider.
func (c *Config) EmbedderAPIKey() string { return c.APIKeys.forProvider(c.Embedder.Provider) }

func (k APIKeys) forProvider(provider string) string {
	switch provider {
	case "openai":
		return k.OpenAI
	case "anthropic":
		return k.Anthropic
	case "gemini":
		return k.Gemini
	}
	return ""
}

func envFor(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

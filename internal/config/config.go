package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/identity"
)

// Default configuration values
const (
	DefaultConfigPath = "config.yaml"
	DefaultEnvPath    = ".env"
	DefaultTimezone   = "Asia/Seoul"
)

// LLM providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderLangChain = "langchain"
	ProviderOllama    = "ollama"
)

// LLMConfig selects and tunes the text-generation service.
type LLMConfig struct {
	Provider       string        `yaml:"provider"` // openai, anthropic, gemini, langchain, ollama
	Model          string        `yaml:"model"`
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"` // From YAML or Env
	Timeout        time.Duration `yaml:"timeout"`
	RatePerSecond  float64       `yaml:"rate_per_second"` // 0 disables rate limiting
	Burst          int           `yaml:"burst"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// StorefrontConfig tunes the MCP connections to storefront automation servers.
type StorefrontConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retry   struct {
		Attempts   int           `yaml:"attempts"`
		Backoff    time.Duration `yaml:"backoff"`
		MaxBackoff time.Duration `yaml:"max_backoff"`
	} `yaml:"retry"`
	CircuitBreaker struct {
		FailureThreshold int           `yaml:"failure_threshold"`
		OpenDuration     time.Duration `yaml:"open_duration"`
	} `yaml:"circuit_breaker"`
	ResponseFilter struct {
		MaxStringLen int      `yaml:"max_string_len"` // Max string length in tool output (default: 2000)
		DropFields   []string `yaml:"drop_fields"`    // Fields removed from tool output
	} `yaml:"response_filter"`
}

// ToolNames maps the adapter contract onto an automation server's tools.
type ToolNames struct {
	ListPending   string `yaml:"list_pending"`
	SubmitReply   string `yaml:"submit_reply"`
	ExtractFields string `yaml:"extract_fields"`
}

// PlatformConfig describes one delivery platform.
type PlatformConfig struct {
	Name           string          `yaml:"name"`
	Endpoint       string          `yaml:"endpoint"`    // stdio://cmd args or http(s)://
	AuthHeader     string          `yaml:"auth_header"` // Header name for the store token
	Tools          ToolNames       `yaml:"tools"`
	IdentityFields identity.Fields `yaml:"identity_fields"`
	DelayDays      int             `yaml:"delay_days"`       // T1
	HumanDelayDays int             `yaml:"human_delay_days"` // T2
}

// StoreConfig is one store account served by a platform.
type StoreConfig struct {
	Code     string             `yaml:"code"`
	Name     string             `yaml:"name"`
	Platform string             `yaml:"platform"`
	Timezone string             `yaml:"timezone"`
	TokenEnv string             `yaml:"token_env"` // Env var holding the automation token
	Token    string             `yaml:"-"`         // From Env
	Disabled bool               `yaml:"disabled"`
	Policy   domain.StorePolicy `yaml:"policy"`
}

// ReplyConfig tunes generation, scoring and submission.
type ReplyConfig struct {
	MaxAttempts       int    `yaml:"max_attempts"`
	MitigationRetries int    `yaml:"mitigation_retries"`
	Language          string `yaml:"language"`
	Scoring           struct {
		Threshold int  `yaml:"threshold"`
		FailOpen  bool `yaml:"fail_open"`
	} `yaml:"scoring"`
	ReanswerOnIntegrityMismatch bool     `yaml:"reanswer_on_integrity_mismatch"`
	DisallowedScripts           []string `yaml:"disallowed_scripts"` // unicode script names
	SlangPatterns               []string `yaml:"slang_patterns"`     // extra regexps
}

// StorageConfig holds configuration for record persistence
type StorageConfig struct {
	Driver   string        `yaml:"driver"`  // sqlite, postgres
	DSN      string        `yaml:"dsn"`     // Connection string
	Timeout  time.Duration `yaml:"timeout"` // Timeout for storage operations (default: 5s)
	MaxConns int32         `yaml:"max_conns"`
	MinConns int32         `yaml:"min_conns"`
}

// ScheduleConfig controls recurring runs in serve mode.
type ScheduleConfig struct {
	Cron           string        `yaml:"cron"` // robfig/cron spec, seconds optional
	ParallelStores int           `yaml:"parallel_stores"`
	QueueSize      int           `yaml:"queue_size"`
	RunTimeout     time.Duration `yaml:"run_timeout"` // Per store session
}

// PromptsConfig holds configuration for prompt loading
type PromptsConfig struct {
	Dir string `yaml:"dir"` // Root directory for prompt files
}

// Config holds the configuration for the review reply automation tool
type Config struct {
	Log struct {
		Level    string `yaml:"level"`  // DEBUG, INFO, WARN, ERROR
		Format   string `yaml:"format"` // text, json
		Output   string `yaml:"output"` // stdout, stderr, /path/to/file
		Rotation struct {
			MaxSize    int  `yaml:"max_size"`    // Megabytes
			MaxBackups int  `yaml:"max_backups"` // Number of old files to keep
			MaxAge     int  `yaml:"max_age"`     // Days to keep
			Compress   bool `yaml:"compress"`
		} `yaml:"rotation"`
	} `yaml:"log"`

	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	LLM        LLMConfig                 `yaml:"llm"`
	Storefront StorefrontConfig          `yaml:"storefront"`
	Platforms  map[string]PlatformConfig `yaml:"platforms"`
	Stores     []StoreConfig             `yaml:"stores"`
	Reply      ReplyConfig               `yaml:"reply"`
	Storage    StorageConfig             `yaml:"storage"`
	Schedule   ScheduleConfig            `yaml:"schedule"`
	Prompts    PromptsConfig             `yaml:"prompts"`
}

// GetLogLevel returns the slog.Level based on Log.Level string
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	cfg := &Config{}

	cfg.Log.Level = "INFO"
	cfg.Log.Format = "text"
	cfg.Log.Output = "stdout"
	cfg.Log.Rotation.MaxSize = 100
	cfg.Log.Rotation.MaxBackups = 10
	cfg.Log.Rotation.MaxAge = 7
	cfg.Log.Rotation.Compress = true

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second

	cfg.LLM.Provider = ProviderOpenAI
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.Timeout = 60 * time.Second
	cfg.LLM.MaxConcurrency = 5

	cfg.Storefront.Timeout = 2 * time.Minute
	cfg.Storefront.Retry.Attempts = 2
	cfg.Storefront.Retry.Backoff = 1 * time.Second
	cfg.Storefront.Retry.MaxBackoff = 30 * time.Second
	cfg.Storefront.CircuitBreaker.FailureThreshold = 3
	cfg.Storefront.CircuitBreaker.OpenDuration = 1 * time.Minute
	cfg.Storefront.ResponseFilter.MaxStringLen = 2000
	cfg.Storefront.ResponseFilter.DropFields = []string{"html", "screenshot", "raw_html"}

	cfg.Reply.MaxAttempts = 3
	cfg.Reply.MitigationRetries = 2
	cfg.Reply.Language = "Korean"
	cfg.Reply.Scoring.Threshold = 80
	cfg.Reply.Scoring.FailOpen = true

	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = "replies.db"
	cfg.Storage.Timeout = 5 * time.Second

	cfg.Schedule.Cron = "0 */2 * * *"
	cfg.Schedule.ParallelStores = 2
	cfg.Schedule.QueueSize = 32
	cfg.Schedule.RunTimeout = 30 * time.Minute

	cfg.Prompts.Dir = "prompts"
	return cfg
}

// LoadConfig loads configuration from an optional .env file, the YAML file
// and environment variables, in that order of precedence (env wins).
func LoadConfig() (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(getEnv("ENV_PATH", DefaultEnvPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	configPath := getEnv("CONFIG_PATH", DefaultConfigPath)
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", configPath, err)
		}
		slog.Debug("config loaded", "path", configPath)
	} else {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		slog.Debug("config not found, using defaults", "path", configPath)
	}

	cfg.applyEnv()
	cfg.applyPlatformDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.Endpoint = getEnv("LLM_ENDPOINT", c.LLM.Endpoint)
	c.Storage.DSN = getEnv("DATABASE_DSN", c.Storage.DSN)

	for i := range c.Stores {
		s := &c.Stores[i]
		envName := s.TokenEnv
		if envName == "" {
			envName = strings.ToUpper(s.Code) + "_STOREFRONT_TOKEN"
		}
		s.Token = getEnv(envName, s.Token)
	}

	if envPort := getEnvInt("PORT", 0); envPort != 0 {
		c.Server.Port = envPort
	}
	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		c.Log.Level = envLogLevel
	}
	if envLogFormat := os.Getenv("LOG_FORMAT"); envLogFormat != "" {
		c.Log.Format = envLogFormat
	}
	if envLogOutput := getEnv("LOG_OUTPUT", ""); envLogOutput != "" {
		c.Log.Output = envLogOutput
	}
	if envLogMaxSize := getEnvInt("LOG_MAX_SIZE", 0); envLogMaxSize != 0 {
		c.Log.Rotation.MaxSize = envLogMaxSize
	}
	if envLogMaxBackups := getEnvInt("LOG_MAX_BACKUPS", 0); envLogMaxBackups != 0 {
		c.Log.Rotation.MaxBackups = envLogMaxBackups
	}
	if envLogMaxAge := getEnvInt("LOG_MAX_AGE", 0); envLogMaxAge != 0 {
		c.Log.Rotation.MaxAge = envLogMaxAge
	}
}

func (c *Config) applyPlatformDefaults() {
	for code, p := range c.Platforms {
		if p.Name == "" {
			p.Name = code
		}
		if p.DelayDays == 0 {
			p.DelayDays = 1
		}
		if p.HumanDelayDays == 0 {
			p.HumanDelayDays = 2
		}
		if p.Tools.ListPending == "" {
			p.Tools.ListPending = "list_pending_reviews"
		}
		if p.Tools.SubmitReply == "" {
			p.Tools.SubmitReply = "submit_reply"
		}
		if p.Tools.ExtractFields == "" {
			p.Tools.ExtractFields = "extract_fields"
		}
		c.Platforms[code] = p
	}
	for i := range c.Stores {
		if c.Stores[i].Timezone == "" {
			c.Stores[i].Timezone = DefaultTimezone
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderLangChain:
		if c.LLM.APIKey == "" {
			errs = append(errs, "LLM_API_KEY is required")
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Sprintf("unknown llm provider: %s", c.LLM.Provider))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid server port: %d", c.Server.Port))
	}

	if c.Reply.MaxAttempts < 1 {
		errs = append(errs, "reply.max_attempts must be at least 1")
	}
	if c.Reply.MitigationRetries < 0 {
		errs = append(errs, "reply.mitigation_retries must not be negative")
	}
	if c.Reply.Scoring.Threshold < 0 || c.Reply.Scoring.Threshold > 100 {
		errs = append(errs, fmt.Sprintf("reply.scoring.threshold out of range: %d", c.Reply.Scoring.Threshold))
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unknown storage driver: %s", c.Storage.Driver))
	}

	if len(c.Stores) == 0 {
		errs = append(errs, "at least one store must be configured")
	}
	seen := make(map[string]bool)
	for _, s := range c.Stores {
		errs = append(errs, c.validateStore(s, seen)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore(s StoreConfig, seen map[string]bool) []string {
	var errs []string
	if s.Code == "" {
		return []string{"store code is required"}
	}
	if seen[s.Code] {
		errs = append(errs, fmt.Sprintf("duplicate store code: %s", s.Code))
	}
	seen[s.Code] = true

	p, ok := c.Platforms[s.Platform]
	if !ok {
		errs = append(errs, fmt.Sprintf("store %s: unknown platform %q", s.Code, s.Platform))
	} else if p.Endpoint == "" {
		errs = append(errs, fmt.Sprintf("platform %s: endpoint is required", s.Platform))
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("store %s: invalid timezone %q", s.Code, s.Timezone))
	}
	if rc := s.Policy.RetryCeiling; rc < 0 || rc > 100 {
		errs = append(errs, fmt.Sprintf("store %s: retry_ceiling out of range: %d", s.Code, rc))
	}
	if s.Policy.MaxLength < 0 {
		errs = append(errs, fmt.Sprintf("store %s: max_length must not be negative", s.Code))
	}
	if st := s.Policy.StoreType; st != "" && st != domain.StoreTypeDeliveryOnly && st != domain.StoreTypeHallAndDelivery {
		errs = append(errs, fmt.Sprintf("store %s: unknown store_type %q", s.Code, st))
	}
	return errs
}

// Store returns the store with the given code.
func (c *Config) Store(code string) (StoreConfig, bool) {
	for _, s := range c.Stores {
		if s.Code == code {
			return s, true
		}
	}
	return StoreConfig{}, false
}

// ActiveStores returns the enabled stores, optionally restricted to codes.
func (c *Config) ActiveStores(codes ...string) []StoreConfig {
	want := make(map[string]bool, len(codes))
	for _, code := range codes {
		want[code] = true
	}
	var out []StoreConfig
	for _, s := range c.Stores {
		if s.Disabled {
			continue
		}
		if len(want) > 0 && !want[s.Code] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Helper functions for reading environment variables

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

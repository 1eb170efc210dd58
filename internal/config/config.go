package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all VC Minutes environment variables.
const EnvPrefix = "VC_MINUTES_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// Rolling audio window.
	Window          string `yaml:"window"`
	MaxSessionBytes int64  `yaml:"max_session_bytes"`
	MaxChunkBytes   int64  `yaml:"max_chunk_bytes"`
	SweepInterval   string `yaml:"sweep_interval"`

	// Session lifecycle.
	IdleTimeout      string `yaml:"idle_timeout"`
	WatchdogInterval string `yaml:"watchdog_interval"`

	// Transcription backend.
	TranscribeProvider string `yaml:"transcribe_provider"`
	TranscribeBaseURL  string `yaml:"transcribe_base_url"`
	TranscribeModel    string `yaml:"transcribe_model"`
	TranscribeLanguage string `yaml:"transcribe_language"`
	TranscribeTimeout  string `yaml:"transcribe_timeout"`
	TranscribeAttempts int    `yaml:"transcribe_attempts"`

	// Summarization backend. SummaryModel is a "provider/model" string,
	// e.g. "openai/gpt-4o-mini" or "anthropic/claude-sonnet-4-20250514".
	SummaryModel          string `yaml:"summary_model"`
	SummaryTimeout        string `yaml:"summary_timeout"`
	SummaryAttempts       int    `yaml:"summary_attempts"`
	SummaryChunkThreshold int    `yaml:"summary_chunk_threshold"`

	// Artifact archive.
	DBPath     string `yaml:"db_path"`
	MinutesDir string `yaml:"minutes_dir"`

	// Secrets, env vars only, never serialized to YAML.
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":8090",
		Window:                "2h",
		MaxSessionBytes:       256 << 20,
		MaxChunkBytes:         10 << 20,
		SweepInterval:         "1m",
		IdleTimeout:           "10m",
		WatchdogInterval:      "1m",
		TranscribeProvider:    "deepgram",
		TranscribeModel:       "nova-2",
		TranscribeLanguage:    "en",
		TranscribeTimeout:     "30s",
		TranscribeAttempts:    3,
		SummaryModel:          "openai/gpt-4o-mini",
		SummaryTimeout:        "60s",
		SummaryAttempts:       3,
		SummaryChunkThreshold: 12000,
		DBPath:                "data/vc-minutes.db",
		MinutesDir:            "data/minutes",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedWindow returns Window as a time.Duration, falling back to 2h.
func (c *Config) ParsedWindow() time.Duration {
	return parseDuration(c.Window, 2*time.Hour)
}

// ParsedSweepInterval returns SweepInterval as a time.Duration, falling back to 1m.
func (c *Config) ParsedSweepInterval() time.Duration {
	return parseDuration(c.SweepInterval, time.Minute)
}

// ParsedIdleTimeout returns IdleTimeout as a time.Duration, falling back to 10m.
func (c *Config) ParsedIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 10*time.Minute)
}

// ParsedWatchdogInterval returns WatchdogInterval as a time.Duration, falling back to 1m.
func (c *Config) ParsedWatchdogInterval() time.Duration {
	return parseDuration(c.WatchdogInterval, time.Minute)
}

// ParsedTranscribeTimeout returns TranscribeTimeout as a time.Duration, falling back to 30s.
func (c *Config) ParsedTranscribeTimeout() time.Duration {
	return parseDuration(c.TranscribeTimeout, 30*time.Second)
}

// ParsedSummaryTimeout returns SummaryTimeout as a time.Duration, falling back to 60s.
func (c *Config) ParsedSummaryTimeout() time.Duration {
	return parseDuration(c.SummaryTimeout, 60*time.Second)
}

// TranscribeAPIKey returns the secret matching the configured transcription
// provider. The bespoke HTTP backend needs no key.
func (c *Config) TranscribeAPIKey() string {
	switch c.TranscribeProvider {
	case "deepgram":
		return c.DeepgramAPIKey
	default:
		return ""
	}
}

// SummaryAPIKey returns the secret matching the provider half of SummaryModel.
func (c *Config) SummaryAPIKey() string {
	provider, _, _ := strings.Cut(c.SummaryModel, "/")
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "WINDOW"); v != "" {
		cfg.Window = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_SESSION_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			cfg.MaxSessionBytes = n
		}
	}
	if v := os.Getenv(EnvPrefix + "MAX_CHUNK_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			cfg.MaxChunkBytes = n
		}
	}
	if v := os.Getenv(EnvPrefix + "SWEEP_INTERVAL"); v != "" {
		cfg.SweepInterval = v
	}
	if v := os.Getenv(EnvPrefix + "IDLE_TIMEOUT"); v != "" {
		cfg.IdleTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "WATCHDOG_INTERVAL"); v != "" {
		cfg.WatchdogInterval = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBE_PROVIDER"); v != "" {
		cfg.TranscribeProvider = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBE_BASE_URL"); v != "" {
		cfg.TranscribeBaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBE_MODEL"); v != "" {
		cfg.TranscribeModel = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBE_LANGUAGE"); v != "" {
		cfg.TranscribeLanguage = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBE_TIMEOUT"); v != "" {
		cfg.TranscribeTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBE_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.TranscribeAttempts = n
		}
	}
	if v := os.Getenv(EnvPrefix + "SUMMARY_MODEL"); v != "" {
		cfg.SummaryModel = v
	}
	if v := os.Getenv(EnvPrefix + "SUMMARY_TIMEOUT"); v != "" {
		cfg.SummaryTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "SUMMARY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.SummaryAttempts = n
		}
	}
	if v := os.Getenv(EnvPrefix + "SUMMARY_CHUNK_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.SummaryChunkThreshold = n
		}
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "MINUTES_DIR"); v != "" {
		cfg.MinutesDir = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	switch cfg.TranscribeProvider {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			warnings = append(warnings, "Deepgram API key not configured. Transcription will fail. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
		}
	case "http":
		if cfg.TranscribeBaseURL == "" {
			warnings = append(warnings, "HTTP transcription backend selected without a base URL. Set "+EnvPrefix+"TRANSCRIBE_BASE_URL or transcribe_base_url.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown transcription provider %q. Expected deepgram or http.", cfg.TranscribeProvider))
	}

	if cfg.SummaryAPIKey() == "" {
		provider, _, _ := strings.Cut(cfg.SummaryModel, "/")
		warnings = append(warnings, fmt.Sprintf("No API key configured for summarization provider %q. Minutes generation will fail.", provider))
	}

	for _, d := range []struct{ name, value string }{
		{"window", cfg.Window},
		{"sweep_interval", cfg.SweepInterval},
		{"idle_timeout", cfg.IdleTimeout},
		{"watchdog_interval", cfg.WatchdogInterval},
		{"transcribe_timeout", cfg.TranscribeTimeout},
		{"summary_timeout", cfg.SummaryTimeout},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q. Using the default.", d.name, d.value))
		}
	}

	if cfg.MaxChunkBytes > cfg.MaxSessionBytes {
		warnings = append(warnings, "max_chunk_bytes exceeds max_session_bytes. No chunk of that size can ever be stored.")
	}

	return warnings
}

package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
)

// envPrefix namespaces the bot's environment overrides.
const envPrefix = "INSIGHTBOT"

// Loader loads configuration in three layers: defaults, an optional JSON
// file, then environment overrides.
type Loader struct {
	path       string
	validation bool
}

// NewLoader creates a Loader. An empty path skips the file layer.
func NewLoader(path string) *Loader {
	return &Loader{path: path, validation: true}
}

// EnableValidation toggles validation of the merged result.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// Load produces the merged configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Loader", "Load", "read "+l.path)
		}
		// File values overwrite defaults field by field; absent fields keep
		// their defaults.
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "parse "+l.path)
		}
	}

	applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func envString(key string, target *string) {
	if val := os.Getenv(envPrefix + "_" + key); val != "" {
		*target = val
	}
}

func envInt(key string, target *int) {
	if val := os.Getenv(envPrefix + "_" + key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*target = n
		}
	}
}

func envBool(key string, target *bool) {
	if val := os.Getenv(envPrefix + "_" + key); val != "" {
		*target = strings.EqualFold(val, "true") || val == "1"
	}
}

func envList(key string, target *[]string) {
	if val := os.Getenv(envPrefix + "_" + key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*target = out
	}
}

func envDuration(key string, target *Duration) {
	if val := os.Getenv(envPrefix + "_" + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*target = Duration(d)
		}
	}
}

// applyEnvOverrides layers INSIGHTBOT_* variables over the config. Secrets
// are expected to arrive this way rather than through the file.
func applyEnvOverrides(cfg *Config) {
	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)

	envString("NEWS_ADDRESS", &cfg.Bus.NewsAddress)
	envString("MARKET_ADDRESS", &cfg.Bus.MarketAddress)
	envInt("BUS_QUEUE_SIZE", &cfg.Bus.QueueSize)

	envBool("CHAT_ENABLED", &cfg.Chat.Enabled)
	envList("CHAT_CHANNELS", &cfg.Chat.Channels)
	envList("CHAT_GROUPS", &cfg.Chat.Groups)

	envBool("MARKET_ENABLED", &cfg.Market.Enabled)
	envString("MARKET_ENDPOINT", &cfg.Market.Endpoint)
	envList("MARKET_SYMBOLS", &cfg.Market.Symbols)
	envList("MARKET_CHANNELS", &cfg.Market.Channels)

	envDuration("INGEST_BASE_DELAY", &cfg.Ingest.BaseDelay)
	envDuration("INGEST_MAX_DELAY", &cfg.Ingest.MaxDelay)
	envInt("INGEST_MAX_ATTEMPTS", &cfg.Ingest.MaxAttempts)
	envDuration("INGEST_STABLE_RESET", &cfg.Ingest.StableReset)
	envDuration("INGEST_STOP_GRACE", &cfg.Ingest.StopGrace)

	envInt("ANALYZER_BUFFER_SIZE", &cfg.Analyzer.BufferSize)
	envInt("ANALYZER_ANALYSIS_INTERVAL", &cfg.Analyzer.AnalysisInterval)
	envInt("ANALYZER_SUMMARY_INTERVAL_CHANNEL", &cfg.Analyzer.SummaryIntervalChannel)
	envInt("ANALYZER_SUMMARY_INTERVAL_GROUP", &cfg.Analyzer.SummaryIntervalGroup)
	envInt("ANALYZER_SUMMARY_SAMPLE_SIZE", &cfg.Analyzer.SummarySampleSize)
	envInt("ANALYZER_ASSESSMENT_SAMPLE_SIZE", &cfg.Analyzer.AssessmentSampleSize)

	envString("LLM_API_KEY", &cfg.LLM.APIKey)
	envString("LLM_BASE_URL", &cfg.LLM.BaseURL)
	envString("LLM_MODEL", &cfg.LLM.Model)
	envDuration("LLM_TIMEOUT", &cfg.LLM.Timeout)

	envBool("EMAIL_ENABLED", &cfg.Email.Enabled)
	envString("EMAIL_HOST", &cfg.Email.Host)
	envInt("EMAIL_PORT", &cfg.Email.Port)
	envString("EMAIL_SENDER", &cfg.Email.Sender)
	envString("EMAIL_PASSWORD", &cfg.Email.Password)
	envList("EMAIL_RECIPIENTS", &cfg.Email.Recipients)
	envBool("EMAIL_USE_TLS", &cfg.Email.UseTLS)

	envDuration("CACHE_TTL", &cfg.Cache.TTL)
	envInt("CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries)
	envDuration("CACHE_SWEEP", &cfg.Cache.Sweep)

	envBool("METRICS_ENABLED", &cfg.Metrics.Enabled)
	envInt("METRICS_PORT", &cfg.Metrics.Port)
}

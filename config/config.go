// Package config loads and validates the bot's configuration from JSON
// files layered with environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
)

// Duration is a time.Duration that unmarshals from JSON strings like "30s".
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(val))
	default:
		return fmt.Errorf("invalid duration value %v", v)
	}
	return nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete application configuration.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Bus      BusConfig      `json:"bus"`
	Chat     ChatConfig     `json:"chat"`
	Market   MarketConfig   `json:"market"`
	Ingest   IngestConfig   `json:"ingest"`
	Analyzer AnalyzerConfig `json:"analyzer"`
	LLM      LLMConfig      `json:"llm"`
	Email    EmailConfig    `json:"email"`
	Cache    CacheConfig    `json:"cache"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or text
}

// BusConfig names the in-process transport's addresses and topic bases.
type BusConfig struct {
	NewsAddress   string `json:"news_address"`
	MarketAddress string `json:"market_address"`
	NewsTopic     string `json:"news_topic"`
	TradeTopic    string `json:"trade_topic"`
	DepthTopic    string `json:"depth_topic"`
	QueueSize     int    `json:"queue_size"`
}

// ChatConfig is the chat-platform ingestion boundary.
type ChatConfig struct {
	Enabled  bool     `json:"enabled"`
	Channels []string `json:"channels"` // broadcast channels to follow
	Groups   []string `json:"groups"`   // community groups to follow
}

// MarketConfig is the exchange websocket boundary.
type MarketConfig struct {
	Enabled  bool     `json:"enabled"`
	Endpoint string   `json:"endpoint"`
	Symbols  []string `json:"symbols"`
	Channels []string `json:"channels"`
}

// IngestConfig controls stream reconnection behavior.
type IngestConfig struct {
	BaseDelay   Duration `json:"base_delay"`
	MaxDelay    Duration `json:"max_delay"`
	MaxAttempts int      `json:"max_attempts"`
	StableReset Duration `json:"stable_reset"`
	StopGrace   Duration `json:"stop_grace"`
}

// AnalyzerConfig holds the trigger cadences and sample sizes.
type AnalyzerConfig struct {
	BufferSize             int `json:"buffer_size"`
	AnalysisInterval       int `json:"analysis_interval"`
	SummaryIntervalChannel int `json:"summary_interval_channel"`
	SummaryIntervalGroup   int `json:"summary_interval_group"`
	SummarySampleSize      int `json:"summary_sample_size"`
	AssessmentSampleSize   int `json:"assessment_sample_size"`
}

// LLMConfig is the model API binding.
type LLMConfig struct {
	APIKey  string   `json:"api_key"`
	BaseURL string   `json:"base_url"`
	Model   string   `json:"model"`
	Timeout Duration `json:"timeout"`
}

// EmailConfig is the SMTP alert binding.
type EmailConfig struct {
	Enabled    bool     `json:"enabled"`
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	Sender     string   `json:"sender"`
	Password   string   `json:"password"`
	Recipients []string `json:"recipients"`
	UseTLS     bool     `json:"use_tls"`
}

// CacheConfig bounds the market-data store.
type CacheConfig struct {
	TTL        Duration `json:"ttl"`
	MaxEntries int      `json:"max_entries"`
	Sweep      Duration `json:"sweep"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Default returns the production defaults; a config file and environment
// overrides layer on top.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Bus: BusConfig{
			NewsAddress:   "inproc://news",
			MarketAddress: "inproc://market",
			NewsTopic:     "raw_news",
			TradeTopic:    "binance_usdm_trade",
			DepthTopic:    "binance_usdm_depth",
			QueueSize:     1024,
		},
		Chat: ChatConfig{Enabled: true},
		Market: MarketConfig{
			Enabled:  true,
			Symbols:  []string{"btcusdt", "ethusdt"},
			Channels: []string{"aggTrade", "depth20"},
		},
		Ingest: IngestConfig{
			BaseDelay:   Duration(time.Second),
			MaxDelay:    Duration(time.Minute),
			MaxAttempts: 10,
			StableReset: Duration(30 * time.Second),
			StopGrace:   Duration(5 * time.Second),
		},
		Analyzer: AnalyzerConfig{
			BufferSize:             1000,
			AnalysisInterval:       1000,
			SummaryIntervalChannel: 50,
			SummaryIntervalGroup:   1000,
			SummarySampleSize:      100,
			AssessmentSampleSize:   500,
		},
		LLM: LLMConfig{
			Model:   "qwen-plus-latest",
			Timeout: Duration(2 * time.Minute),
		},
		Email: EmailConfig{
			Enabled: true,
			Port:    587,
			UseTLS:  true,
		},
		Cache: CacheConfig{
			TTL:        Duration(time.Minute),
			MaxEntries: 1000,
			Sweep:      Duration(time.Second),
		},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
	}
}

// Validate checks the configuration for contradictions and missing required
// fields. Collaborator credentials are validated only when the feature that
// needs them is enabled.
func (c *Config) Validate() error {
	var problems []string

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level: unknown level %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		problems = append(problems, fmt.Sprintf("logging.format: must be json or text, got %q", c.Logging.Format))
	}

	if !strings.HasPrefix(c.Bus.NewsAddress, "inproc://") {
		problems = append(problems, "bus.news_address: must use the inproc:// scheme")
	}
	if !strings.HasPrefix(c.Bus.MarketAddress, "inproc://") {
		problems = append(problems, "bus.market_address: must use the inproc:// scheme")
	}
	if c.Bus.NewsTopic == "" || c.Bus.TradeTopic == "" || c.Bus.DepthTopic == "" {
		problems = append(problems, "bus: topic bases cannot be empty")
	}
	if c.Bus.QueueSize <= 0 {
		problems = append(problems, "bus.queue_size: must be positive")
	}

	if c.Ingest.BaseDelay <= 0 {
		problems = append(problems, "ingest.base_delay: must be positive")
	}
	if c.Ingest.MaxDelay < c.Ingest.BaseDelay {
		problems = append(problems, "ingest.max_delay: must be >= base_delay")
	}
	if c.Ingest.MaxAttempts < 0 {
		problems = append(problems, "ingest.max_attempts: cannot be negative")
	}

	if c.Analyzer.BufferSize <= 0 {
		problems = append(problems, "analyzer.buffer_size: must be positive")
	}
	for name, v := range map[string]int{
		"analysis_interval":        c.Analyzer.AnalysisInterval,
		"summary_interval_channel": c.Analyzer.SummaryIntervalChannel,
		"summary_interval_group":   c.Analyzer.SummaryIntervalGroup,
		"summary_sample_size":      c.Analyzer.SummarySampleSize,
		"assessment_sample_size":   c.Analyzer.AssessmentSampleSize,
	} {
		if v <= 0 {
			problems = append(problems, fmt.Sprintf("analyzer.%s: must be positive", name))
		}
	}

	if c.LLM.APIKey == "" {
		problems = append(problems, "llm.api_key: required")
	}

	if c.Email.Enabled {
		if c.Email.Host == "" {
			problems = append(problems, "email.host: required when email is enabled")
		}
		if c.Email.Sender == "" {
			problems = append(problems, "email.sender: required when email is enabled")
		}
		if len(c.Email.Recipients) == 0 {
			problems = append(problems, "email.recipients: required when email is enabled")
		}
	}

	if c.Market.Enabled && len(c.Market.Symbols) == 0 {
		problems = append(problems, "market.symbols: required when market ingestion is enabled")
	}

	if len(problems) > 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%s", strings.Join(problems, "; ")),
			"Config", "Validate", "check fields")
	}
	return nil
}

package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ZhuYizhou2333/Market-insight-bot/config"
)

// logLevels maps the config's logging.level names onto slog levels.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// configureLogging builds the process logger from the config's logging
// section with CLI overrides applied, and installs it as the slog default.
// Unknown values fall back to info/json, matching config.Default.
func configureLogging(cliCfg *CLIConfig, cfg *config.Config) *slog.Logger {
	level := cfg.Logging.Level
	if cliCfg.LogLevel != "" {
		level = cliCfg.LogLevel
	}
	format := cfg.Logging.Format
	if cliCfg.LogFormat != "" {
		format = cliCfg.LogFormat
	}

	lvl, ok := logLevels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
	slog.SetDefault(logger)

	slog.Info("Starting Market Insight Bot",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)
	return logger
}

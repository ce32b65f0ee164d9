package logging

import "log/slog"

// SetupMCPMode configures logging for running as an MCP server: file only,
// JSON-formatted, debug level, with stderr writes disabled outright. The MCP
// stdio transport uses stdout exclusively for the JSON-RPC stream, so any
// stray write to stdout or stderr would corrupt it.
func SetupMCPMode() (func(), error) {
	return SetupMCPModeWithLevel("debug")
}

// SetupMCPModeWithLevel is SetupMCPMode with an overridable level, for a
// caller that wants MCP-safe output without forcing debug verbosity.
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("mcp mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}

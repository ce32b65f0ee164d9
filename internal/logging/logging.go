package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where and how structured logs are written.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn, or error.
	Level string
	// FilePath is where logs are written. Empty disables file logging.
	FilePath string
	// MaxSizeMB is the size a log file reaches before it's rotated.
	MaxSizeMB int
	// MaxFiles caps how many rotated files are kept alongside the active one.
	MaxFiles int
	// WriteToStderr additionally echoes every log line to stderr.
	WriteToStderr bool
}

// DefaultConfig logs at info level to DefaultLogPath(), rotating at 10MB
// and keeping 5 generations, echoed to stderr.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig with the level raised to debug.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup builds a JSON-structured logger against cfg and returns it alongside
// a cleanup function that flushes and closes the underlying file; call
// cleanup when the logger is no longer needed.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if err := EnsureLogDir(); err != nil {
		return nil, nil, err
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	logger := slog.New(handler)

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return logger, cleanup, nil
}

// SetupDefault installs a DebugConfig logger as slog's package-level
// default and returns its cleanup function.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DebugConfig())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts a level name to its slog.Level, for callers
// (the log viewer, say) that need the same parsing Setup uses internally.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}

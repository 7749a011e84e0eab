package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for MCP server mode.
// The MCP stdio transport uses stdout exclusively for JSON-RPC, so any
// stray writes to stdout or stderr corrupt the protocol stream. In this
// mode logs go ONLY to the file.
func SetupMCPMode(logPath string) (func(), error) {
	return SetupMCPModeWithLevel(logPath, "debug")
}

// SetupMCPModeWithLevel initializes MCP-safe logging with a specific level.
func SetupMCPModeWithLevel(logPath, level string) (func(), error) {
	if logPath == "" {
		logPath = DefaultLogPath()
	}

	cfg := Config{
		Level:         level,
		FilePath:      logPath,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // never touch stderr in MCP mode
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("mcp_logging_initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}

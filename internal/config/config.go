package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultListenAddr = ":8080"
	defaultDBFile     = "haymaker.db"
	defaultDataSubdir = ".haymaker"

	envListenAddr = "HAYMAKER_LISTEN_ADDR"
	envDBPath     = "HAYMAKER_DB_PATH"
	envDataDir    = "HAYMAKER_DATA_DIR"
	envLogLevel   = "HAYMAKER_LOG_LEVEL"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	DataDir    string
	LogLevel   slog.Level
}

// Load reads configuration from environment variables with sensible
// defaults. The data directory defaults to ~/.haymaker and holds the record
// database, the installed-workload catalog, and per-workload state.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		DataDir:    defaultDataDir(),
		LogLevel:   slog.LevelInfo,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, defaultDBFile)
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	return cfg
}

// CatalogPath is the location of the installed-workload catalog file.
func (c Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "workloads.json")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataSubdir
	}
	return filepath.Join(home, defaultDataSubdir)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

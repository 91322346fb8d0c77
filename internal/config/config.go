// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Storage    StorageConfig
	Server     ServerConfig
	Conversion ConversionConfig
	Hub        HubConfig
	Watcher    WatcherConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig locates the database and the picture directories.
type StorageConfig struct {
	BasePath    string // Root for everything below (default: ./data)
	UploadDir   string // Converted pictures served at /uploads/ (default: {base}/uploads)
	OriginalDir string // Raw uploads awaiting conversion (default: {uploads}/original)
	DBPath      string // SQLite database file (default: {base}/picsapp.db)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS and WebSocket origins (default: *)
	StaticDir      string        // Optional web root served at /
	MaxUploadBytes int64         // Upload size limit (default: 10 MiB)
}

// ConversionConfig holds conversion worker configuration.
type ConversionConfig struct {
	// Workers is the number of concurrent conversion goroutines (default: 2)
	Workers int
	// MaxDimension bounds the longer side of converted pictures (default: 1600)
	MaxDimension int
	// Quality is the WebP quality, 1-100 (default: 82)
	Quality int
	// IdleInterval is the poll interval when the queue is empty (default: 400ms)
	IdleInterval time.Duration
	// ErrorBackoff is the wait after a store error (default: 1s)
	ErrorBackoff time.Duration
}

// HubConfig holds live viewer configuration.
type HubConfig struct {
	SendBuffer   int           // Per-viewer SSE buffer in snapshots (default: 16)
	WriteTimeout time.Duration // Per-send WebSocket deadline (default: 10s)
}

// WatcherConfig holds drop-folder watcher configuration.
type WatcherConfig struct {
	Enabled     bool          // Watch the raw upload directory (default: true)
	SettleDelay time.Duration // Quiet period before a new file is enqueued (default: 1s)
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("picsapp", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	// Storage flags
	basePath := fs.String("data-path", "", "Base path for pictures and database")
	uploadDir := fs.String("upload-dir", "", "Directory for converted pictures")
	originalDir := fs.String("original-dir", "", "Directory for raw uploads")
	dbPath := fs.String("db-path", "", "SQLite database file")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma separated CORS origins (default: *)")
	staticDir := fs.String("static-dir", "", "Optional directory served at /")
	maxUpload := fs.String("max-upload-bytes", "", "Upload size limit in bytes (default: 10485760)")

	// Conversion flags
	workers := fs.String("workers", "", "Concurrent conversion workers (default: 2)")
	maxDimension := fs.String("max-dimension", "", "Longest side of converted pictures (default: 1600)")
	quality := fs.String("quality", "", "WebP quality 1-100 (default: 82)")
	idleInterval := fs.String("idle-interval", "", "Worker poll interval when idle (default: 400ms)")
	errorBackoff := fs.String("error-backoff", "", "Worker wait after store errors (default: 1s)")

	// Viewer flags
	sendBuffer := fs.String("hub-send-buffer", "", "Buffered snapshots per SSE viewer (default: 16)")
	hubWriteTimeout := fs.String("hub-write-timeout", "", "WebSocket write deadline (default: 10s)")

	// Watcher flags
	watchEnabled := fs.String("watch", "", "Watch the raw upload directory (default: true)")
	settleDelay := fs.String("watch-settle-delay", "", "Quiet period before enqueueing dropped files (default: 1s)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			BasePath:    getConfigValue(*basePath, "DATA_PATH", ""),
			UploadDir:   getConfigValue(*uploadDir, "UPLOAD_DIR", ""),
			OriginalDir: getConfigValue(*originalDir, "ORIGINAL_DIR", ""),
			DBPath:      getConfigValue(*dbPath, "DB_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "*")),
			StaticDir:      getConfigValue(*staticDir, "STATIC_DIR", ""),
			MaxUploadBytes: int64(getIntConfigValue(*maxUpload, "MAX_UPLOAD_BYTES", 10<<20)),
		},
		Conversion: ConversionConfig{
			Workers:      getIntConfigValue(*workers, "CONVERSION_WORKERS", 2),
			MaxDimension: getIntConfigValue(*maxDimension, "CONVERSION_MAX_DIMENSION", 1600),
			Quality:      getIntConfigValue(*quality, "CONVERSION_QUALITY", 82),
		},
		Hub: HubConfig{
			SendBuffer: getIntConfigValue(*sendBuffer, "HUB_SEND_BUFFER", 16),
		},
		Watcher: WatcherConfig{
			Enabled: getBoolConfigValue(*watchEnabled, "WATCH_ENABLED", true),
		},
	}

	durations := []struct {
		flagValue, envKey, defaultValue string
		target                          *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*idleInterval, "CONVERSION_IDLE_INTERVAL", "400ms", &cfg.Conversion.IdleInterval},
		{*errorBackoff, "CONVERSION_ERROR_BACKOFF", "1s", &cfg.Conversion.ErrorBackoff},
		{*hubWriteTimeout, "HUB_WRITE_TIMEOUT", "10s", &cfg.Hub.WriteTimeout},
		{*settleDelay, "WATCH_SETTLE_DELAY", "1s", &cfg.Watcher.SettleDelay},
	}
	for _, d := range durations {
		value, err := getDurationConfigValue(d.flagValue, d.envKey, d.defaultValue)
		if err != nil {
			return nil, err
		}
		*d.target = value
	}

	if err := cfg.expandStoragePaths(); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}

	if err := cfg.expandStaticDir(); err != nil {
		return nil, fmt.Errorf("invalid static dir: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.UploadDir == "" || c.Storage.OriginalDir == "" || c.Storage.DBPath == "" {
		return errors.New("storage paths cannot be empty after expansion")
	}

	if c.Storage.UploadDir == c.Storage.OriginalDir {
		return errors.New("upload dir and original dir must differ")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid max upload bytes: %d", c.Server.MaxUploadBytes)
	}

	if c.Conversion.Workers < 1 {
		return fmt.Errorf("invalid conversion workers: %d (must be at least 1)", c.Conversion.Workers)
	}

	if c.Conversion.MaxDimension < 1 {
		return fmt.Errorf("invalid max dimension: %d", c.Conversion.MaxDimension)
	}

	if c.Conversion.Quality < 1 || c.Conversion.Quality > 100 {
		return fmt.Errorf("invalid quality: %d (must be 1-100)", c.Conversion.Quality)
	}

	if c.Conversion.IdleInterval <= 0 || c.Conversion.ErrorBackoff <= 0 {
		return errors.New("conversion intervals must be positive")
	}

	if c.Hub.SendBuffer < 1 {
		return fmt.Errorf("invalid hub send buffer: %d", c.Hub.SendBuffer)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandStoragePaths resolves the base path and derives unset directories from it.
func (c *Config) expandStoragePaths() error {
	base := c.Storage.BasePath
	if base == "" {
		base = "data"
	}
	expanded, err := expandPath(base, "")
	if err != nil {
		return err
	}
	c.Storage.BasePath = expanded

	if c.Storage.UploadDir, err = expandPath(c.Storage.UploadDir, filepath.Join(expanded, "uploads")); err != nil {
		return err
	}
	if c.Storage.OriginalDir, err = expandPath(c.Storage.OriginalDir, filepath.Join(c.Storage.UploadDir, "original")); err != nil {
		return err
	}
	if c.Storage.DBPath, err = expandPath(c.Storage.DBPath, filepath.Join(expanded, "picsapp.db")); err != nil {
		return err
	}
	return nil
}

// expandStaticDir leaves an empty static dir empty (no web root).
func (c *Config) expandStaticDir() error {
	if c.Server.StaticDir == "" {
		return nil
	}
	expanded, err := expandPath(c.Server.StaticDir, "")
	if err != nil {
		return err
	}
	c.Server.StaticDir = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

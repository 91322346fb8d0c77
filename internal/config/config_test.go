package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Storage: StorageConfig{
			BasePath:    "/data",
			UploadDir:   "/data/uploads",
			OriginalDir: "/data/uploads/original",
			DBPath:      "/data/picsapp.db",
		},
		Server: ServerConfig{Port: "8080", MaxUploadBytes: 10 << 20},
		Conversion: ConversionConfig{
			Workers:      2,
			MaxDimension: 1600,
			Quality:      82,
			IdleInterval: 400 * time.Millisecond,
			ErrorBackoff: time.Second,
		},
		Hub: HubConfig{SendBuffer: 16, WriteTimeout: 10 * time.Second},
	}
}

// loadIsolated runs Load with a missing .env file so the working directory cannot leak in.
func loadIsolated(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	args = append([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	return Load(args)
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Logger.Level = "verbose" }, "invalid log level"},
		{"empty db path", func(c *Config) { c.Storage.DBPath = "" }, "storage paths cannot be empty"},
		{"same dirs", func(c *Config) { c.Storage.OriginalDir = c.Storage.UploadDir }, "must differ"},
		{"zero workers", func(c *Config) { c.Conversion.Workers = 0 }, "invalid conversion workers"},
		{"quality too high", func(c *Config) { c.Conversion.Quality = 101 }, "invalid quality"},
		{"zero dimension", func(c *Config) { c.Conversion.MaxDimension = 0 }, "invalid max dimension"},
		{"zero backoff", func(c *Config) { c.Conversion.ErrorBackoff = 0 }, "intervals must be positive"},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadBytes = 0 }, "invalid max upload bytes"},
		{"zero send buffer", func(c *Config) { c.Hub.SendBuffer = 0 }, "invalid hub send buffer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	base := t.TempDir()

	cfg, err := loadIsolated(t, "-data-path", base)
	require.NoError(t, err)

	assert.Equal(t, base, cfg.Storage.BasePath)
	assert.Equal(t, filepath.Join(base, "uploads"), cfg.Storage.UploadDir)
	assert.Equal(t, filepath.Join(base, "uploads", "original"), cfg.Storage.OriginalDir)
	assert.Equal(t, filepath.Join(base, "picsapp.db"), cfg.Storage.DBPath)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 2, cfg.Conversion.Workers)
	assert.Equal(t, 1600, cfg.Conversion.MaxDimension)
	assert.Equal(t, 82, cfg.Conversion.Quality)
	assert.Equal(t, 400*time.Millisecond, cfg.Conversion.IdleInterval)
	assert.Equal(t, time.Second, cfg.Conversion.ErrorBackoff)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Empty(t, cfg.Server.StaticDir)
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("CONVERSION_WORKERS", "6")
	t.Setenv("CONVERSION_QUALITY", "70")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")

	cfg, err := loadIsolated(t, "-data-path", t.TempDir(), "-workers", "3", "-idle-interval", "2s")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Conversion.Workers, "flag beats env")
	assert.Equal(t, 70, cfg.Conversion.Quality, "env beats default")
	assert.Equal(t, 2*time.Second, cfg.Conversion.IdleInterval)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := loadIsolated(t, "-data-path", t.TempDir(), "-error-backoff", "soon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversion_error_backoff")
}

func TestLoad_UnknownFlag(t *testing.T) {
	_, err := loadIsolated(t, "-no-such-flag")
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/pics", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, "pics"), got)

	got, err = expandPath("", "/fallback")
	require.NoError(t, err)
	assert.Equal(t, "/fallback", got)

	got, err = expandPath("relative/path", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Contains(t, got, "relative/path")
}

func TestGetConfigValue_Precedence(t *testing.T) {
	assert.Equal(t, "flag-value", getConfigValue("flag-value", "TEST_ENV_KEY", "default-value"))

	t.Setenv("TEST_ENV_KEY", "env-value")
	assert.Equal(t, "env-value", getConfigValue("", "TEST_ENV_KEY", "default-value"))

	assert.Equal(t, "default-value", getConfigValue("", "NONEXISTENT_KEY", "default-value"))
}

func TestGetIntConfigValue_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_INT_KEY", "many")
	assert.Equal(t, 4, getIntConfigValue("", "TEST_INT_KEY", 4))
	assert.Equal(t, 9, getIntConfigValue("9", "TEST_INT_KEY", 4))
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	content := `# Test env file
ENV=staging
LOG_LEVEL=debug
# Comment line
QUOTED_VALUE="some value"
SINGLE_QUOTED='another value'
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	for _, key := range []string{"ENV", "LOG_LEVEL", "QUOTED_VALUE", "SINGLE_QUOTED"} {
		t.Setenv(key, "")
	}

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "staging", os.Getenv("ENV"))
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, "some value", os.Getenv("QUOTED_VALUE"))
	assert.Equal(t, "another value", os.Getenv("SINGLE_QUOTED"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	err := loadEnvFile(envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	t.Setenv("TEST_VAR", "original-value")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`TEST_VAR=new-value`), 0o644))

	require.NoError(t, loadEnvFile(envFile))
	assert.Equal(t, "original-value", os.Getenv("TEST_VAR"))
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	assert.Error(t, loadEnvFile("/nonexistent/file/.env"))
}

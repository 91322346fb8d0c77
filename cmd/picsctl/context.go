package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/picsapp/picsapp-server/internal/config"
	"github.com/picsapp/picsapp-server/internal/logger"
	"github.com/picsapp/picsapp-server/internal/store/sqlite"
)

type rootOptions struct {
	dataPath string
	dbPath   string
	envFile  string
	json     bool
}

type commandContext struct {
	opts *rootOptions

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(opts *rootOptions) *commandContext {
	return &commandContext{opts: opts}
}

// ensureConfig resolves the server configuration, so env vars and .env files
// point picsctl at the same data directory the server uses.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		args := []string{"-env-file", c.opts.envFile}
		if c.opts.dataPath != "" {
			args = append(args, "-data-path", c.opts.dataPath)
		}
		if c.opts.dbPath != "" {
			args = append(args, "-db-path", c.opts.dbPath)
		}
		c.config, c.configErr = config.Load(args)
	})
	return c.config, c.configErr
}

// logger writes warnings and errors to stderr so tables stay clean on stdout.
func (c *commandContext) logger(w io.Writer) *slog.Logger {
	return logger.New(logger.Config{
		Writer: w,
		Level:  slog.LevelWarn,
		Format: "pretty",
	}).Logger
}

func (c *commandContext) withStore(ctx context.Context, stderr io.Writer, fn func(context.Context, *sqlite.Store, *config.Config) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	st, err := sqlite.Open(cfg.Storage.DBPath, c.logger(stderr))
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Storage.DBPath, err)
	}
	defer st.Close()

	return fn(ctx, st, cfg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

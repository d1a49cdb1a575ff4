package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"treegift/internal/config"
	"treegift/internal/ingest"
	"treegift/internal/journal"
	"treegift/internal/logging"
	"treegift/internal/notifications"
	"treegift/internal/objectstore"
	"treegift/internal/remote"
)

type commandContext struct {
	configFlag  *string
	envFileFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, envFileFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		envFileFlag: envFileFlag,
	}
}

// loadEnvFile applies a dotenv file before configuration is read. Variables
// already present in the environment win.
func (c *commandContext) loadEnvFile() error {
	path := ""
	if c.envFileFlag != nil {
		path = strings.TrimSpace(*c.envFileFlag)
	}
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) remoteClient() (*remote.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireRemote(); err != nil {
		return nil, err
	}
	return remote.NewClient(remote.Config{
		BaseURL:        cfg.Remote.BaseURL,
		APIToken:       cfg.Remote.APIToken,
		TimeoutSeconds: cfg.Remote.TimeoutSeconds,
	}), nil
}

// storageClient builds the object storage client. It shares the data
// service's bearer token.
func (c *commandContext) storageClient() (*objectstore.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return objectstore.NewClient(objectstore.Config{
		BaseURL:        cfg.Storage.BaseURL,
		PublicBaseURL:  cfg.Storage.PublicBaseURL,
		APIToken:       cfg.Remote.APIToken,
		TimeoutSeconds: cfg.Storage.TimeoutSeconds,
	}), nil
}

func (c *commandContext) csvImporter() (*ingest.CSVImporter, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	storage, err := c.storageClient()
	if err != nil {
		return nil, err
	}
	return ingest.NewCSVImporter(storage, cfg.Storage.ImageNamespace, cfg.Recipients.DefaultEmailDomain, cfg.Recipients.TemplateURL, c.loggerValue()), nil
}

func (c *commandContext) notifier() notifications.Service {
	return notifications.NewService(c.configValue())
}

func (c *commandContext) openJournal() (*journal.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return journal.Open(cfg)
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// lockRequest takes an exclusive per-request file lock so two processes do
// not scrape into or submit the same request at once.
func (c *commandContext) lockRequest(requestID string) (func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(cfg.Paths.DataDir, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, lockName(requestID)+".lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("request %s is in use by another treegift process (lock %s)", requestID, path)
	}
	return func() { _ = lock.Unlock() }, nil
}

func lockName(requestID string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(requestID) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverlay lists the environment variables that override file values.
// Empty variables leave the file (or default) value in place.
type envOverlay struct {
	DataDir        string  `env:"TREEGIFT_DATA_DIR"`
	LogDir         string  `env:"TREEGIFT_LOG_DIR"`
	APIURL         string  `env:"TREEGIFT_API_URL"`
	APIToken       string  `env:"TREEGIFT_API_TOKEN"`
	StorageURL     string  `env:"TREEGIFT_STORAGE_URL"`
	StoragePublic  string  `env:"TREEGIFT_STORAGE_PUBLIC_URL"`
	NtfyTopic      string  `env:"TREEGIFT_NTFY_TOPIC"`
	LogLevel       string  `env:"TREEGIFT_LOG_LEVEL"`
	LogFormat      string  `env:"TREEGIFT_LOG_FORMAT"`
	MatchThreshold float64 `env:"TREEGIFT_MATCH_THRESHOLD"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var overlay envOverlay
	if err := ParseEnv(&overlay); err != nil {
		return err
	}
	setIfPresent(&c.Paths.DataDir, overlay.DataDir)
	setIfPresent(&c.Paths.LogDir, overlay.LogDir)
	setIfPresent(&c.Remote.BaseURL, overlay.APIURL)
	setIfPresent(&c.Remote.APIToken, overlay.APIToken)
	setIfPresent(&c.Storage.BaseURL, overlay.StorageURL)
	setIfPresent(&c.Storage.PublicBaseURL, overlay.StoragePublic)
	setIfPresent(&c.Notifications.NtfyTopic, overlay.NtfyTopic)
	setIfPresent(&c.Logging.Level, overlay.LogLevel)
	setIfPresent(&c.Logging.Format, overlay.LogFormat)
	if overlay.MatchThreshold > 0 {
		c.Matching.Threshold = overlay.MatchThreshold
	}
	return nil
}

func setIfPresent(target *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*target = value
	}
}

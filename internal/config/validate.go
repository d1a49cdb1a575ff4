package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.BaseURL == "" {
		return nil
	}
	if err := validateURL("remote.base_url", c.Remote.BaseURL); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.BaseURL != "" {
		if err := validateURL("storage.base_url", c.Storage.BaseURL); err != nil {
			return err
		}
	}
	if c.Storage.PublicBaseURL != "" {
		if err := validateURL("storage.public_base_url", c.Storage.PublicBaseURL); err != nil {
			return err
		}
	}
	if strings.Contains(c.Storage.ImageNamespace, "..") || strings.Contains(c.Storage.LogoNamespace, "..") {
		return errors.New("storage namespaces must not contain '..'")
	}
	return nil
}

func (c *Config) validatePricing() error {
	categories := make([]string, 0, len(c.Pricing))
	for category := range c.Pricing {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		for requestType, price := range c.Pricing[category] {
			if price < 0 {
				return fmt.Errorf("pricing.%s.%q must not be negative", category, requestType)
			}
		}
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.Threshold < 0 || c.Matching.Threshold >= 1 {
		return errors.New("matching.threshold must be in [0, 1)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// RequireRemote reports a configuration error when the remote API is unset.
func (c *Config) RequireRemote() error {
	if c.Remote.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("remote.base_url is required. Set TREEGIFT_API_URL or edit %s (create with 'treegift config init')", defaultPath)
	}
	return nil
}

// RequireStorage reports a configuration error when object storage is unset.
func (c *Config) RequireStorage() error {
	if c.Storage.BaseURL == "" {
		return errors.New("storage.base_url is required. Set TREEGIFT_STORAGE_URL or edit the config file")
	}
	return nil
}

func validateURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}

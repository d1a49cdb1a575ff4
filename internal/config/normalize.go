package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeStorage()
	c.normalizePricing()
	c.normalizeRecipients()
	c.normalizeLookup()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() {
	c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(c.Remote.BaseURL), "/")
	c.Remote.APIToken = strings.TrimSpace(c.Remote.APIToken)
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = defaultRemoteTimeoutSeconds
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.BaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.BaseURL), "/")
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	if c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = c.Storage.BaseURL
	}
	c.Storage.ImageNamespace = strings.Trim(strings.TrimSpace(c.Storage.ImageNamespace), "/")
	if c.Storage.ImageNamespace == "" {
		c.Storage.ImageNamespace = defaultImageNamespace
	}
	c.Storage.LogoNamespace = strings.Trim(strings.TrimSpace(c.Storage.LogoNamespace), "/")
	if c.Storage.LogoNamespace == "" {
		c.Storage.LogoNamespace = defaultLogoNamespace
	}
	if c.Storage.TimeoutSeconds <= 0 {
		c.Storage.TimeoutSeconds = defaultStorageTimeoutSeconds
	}
	if c.Storage.MaxImageDimension < 0 {
		c.Storage.MaxImageDimension = 0
	}
}

// normalizePricing fills any category or request type missing from the file
// with the built-in price so partial tables stay usable.
func (c *Config) normalizePricing() {
	if c.Pricing == nil {
		c.Pricing = DefaultPricing()
		return
	}
	for category, defaults := range DefaultPricing() {
		byType, ok := c.Pricing[category]
		if !ok {
			c.Pricing[category] = defaults
			continue
		}
		for requestType, price := range defaults {
			if _, ok := byType[requestType]; !ok {
				byType[requestType] = price
			}
		}
	}
}

func (c *Config) normalizeRecipients() {
	domain := strings.ToLower(strings.TrimSpace(c.Recipients.DefaultEmailDomain))
	domain = strings.TrimPrefix(domain, "@")
	if domain == "" {
		domain = defaultEmailDomain
	}
	c.Recipients.DefaultEmailDomain = domain
	if c.Recipients.MinAgeYears <= 0 {
		c.Recipients.MinAgeYears = defaultMinAgeYears
	}
	c.Recipients.TemplateURL = strings.TrimSpace(c.Recipients.TemplateURL)
	if c.Recipients.TemplateURL == "" {
		c.Recipients.TemplateURL = defaultTemplateURL
	}
}

func (c *Config) normalizeLookup() {
	if c.Lookup.DebounceMillis <= 0 {
		c.Lookup.DebounceMillis = defaultDebounceMillis
	}
	if c.Lookup.MinQueryLength <= 0 {
		c.Lookup.MinQueryLength = defaultMinQueryLength
	}
	if c.Lookup.PageSize <= 0 {
		c.Lookup.PageSize = defaultLookupPageSize
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

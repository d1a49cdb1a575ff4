package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Remote contains configuration for the remote data service API.
type Remote struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Storage contains configuration for the object storage service.
type Storage struct {
	BaseURL        string `toml:"base_url"`
	PublicBaseURL  string `toml:"public_base_url"`
	ImageNamespace string `toml:"image_namespace"`
	LogoNamespace  string `toml:"logo_namespace"`
	TimeoutSeconds int    `toml:"timeout_seconds"`

	// MaxImageDimension bounds the longest edge of uploaded photos; larger
	// images are downscaled before upload. Zero disables resizing.
	MaxImageDimension int `toml:"max_image_dimension"`
}

// Pricing maps category -> request type -> unit price per tree.
type Pricing map[string]map[string]int

// Matching contains the image-to-recipient matcher knobs.
type Matching struct {
	// Threshold is the fraction of name tokens that must appear in a URL.
	// A candidate matches only when the ratio is strictly greater.
	Threshold float64 `toml:"threshold"`
	// RequireUnique assigns only when exactly one candidate matches.
	RequireUnique bool `toml:"require_unique"`
}

// Recipients contains recipient ingestion defaults.
type Recipients struct {
	DefaultEmailDomain string `toml:"default_email_domain"`
	MinAgeYears        int    `toml:"min_age_years"`
	TemplateURL        string `toml:"template_url"`
}

// Lookup contains search-as-you-type tuning.
type Lookup struct {
	DebounceMillis int `toml:"debounce_ms"`
	MinQueryLength int `toml:"min_query_length"`
	PageSize       int `toml:"page_size"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Submissions    bool   `toml:"submissions"`
	Ingestion      bool   `toml:"ingestion"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for treegift.
//
// Configuration sections by subsystem:
//   - Paths: local data (journal, locks) and log directories
//   - Remote: remote data service endpoint and credentials
//   - Storage: object storage endpoints and namespaces
//   - Pricing: unit price per tree by category and request type
//   - Matching: image-to-recipient matcher thresholds
//   - Recipients: email synthesis domain, age gate, CSV template link
//   - Lookup: debounced search settings
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Remote        Remote        `toml:"remote"`
	Storage       Storage       `toml:"storage"`
	Pricing       Pricing       `toml:"pricing"`
	Matching      Matching      `toml:"matching"`
	Recipients    Recipients    `toml:"recipients"`
	Lookup        Lookup        `toml:"lookup"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("treegift.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// UnitPrice returns the configured price per tree for a category and request
// type. Unknown combinations price at zero.
func (c *Config) UnitPrice(category, requestType string) int {
	if c == nil || c.Pricing == nil {
		return 0
	}
	byType, ok := c.Pricing[category]
	if !ok {
		return 0
	}
	return byType[requestType]
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

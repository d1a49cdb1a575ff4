package config

const (
	defaultConfigPath            = "~/.config/treegift/config.toml"
	defaultDataDir               = "~/.local/share/treegift"
	defaultLogDir                = "~/.local/share/treegift/logs"
	defaultRemoteTimeoutSeconds  = 15
	defaultStorageTimeoutSeconds = 60
	defaultImageNamespace        = "gift-card-images"
	defaultLogoNamespace         = "logos"
	defaultMaxImageDimension     = 1600
	defaultMatchThreshold        = 0.5
	defaultEmailDomain           = "treegift.org"
	defaultMinAgeYears           = 15
	defaultTemplateURL           = "https://docs.google.com/spreadsheets/d/e/treegift-recipients-template/pub?output=csv"
	defaultDebounceMillis        = 300
	defaultMinQueryLength        = 3
	defaultLookupPageSize        = 20
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Request type and category names as they appear in the price table.
const (
	RequestTypeGiftCards        = "Gift Cards"
	RequestTypeDonation         = "Donation"
	RequestTypeNormalAssignment = "Normal Assignment"
	RequestTypeVisit            = "Visit"

	CategoryPublic     = "Public"
	CategoryFoundation = "Foundation"
)

// DefaultPricing returns the built-in unit price table.
func DefaultPricing() Pricing {
	return Pricing{
		CategoryPublic: {
			RequestTypeGiftCards:        2000,
			RequestTypeDonation:         1500,
			RequestTypeNormalAssignment: 0,
			RequestTypeVisit:            0,
		},
		CategoryFoundation: {
			RequestTypeGiftCards:        3000,
			RequestTypeDonation:         3000,
			RequestTypeNormalAssignment: 0,
			RequestTypeVisit:            0,
		},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Remote: Remote{
			TimeoutSeconds: defaultRemoteTimeoutSeconds,
		},
		Storage: Storage{
			ImageNamespace:    defaultImageNamespace,
			LogoNamespace:     defaultLogoNamespace,
			TimeoutSeconds:    defaultStorageTimeoutSeconds,
			MaxImageDimension: defaultMaxImageDimension,
		},
		Pricing: DefaultPricing(),
		Matching: Matching{
			Threshold:     defaultMatchThreshold,
			RequireUnique: true,
		},
		Recipients: Recipients{
			DefaultEmailDomain: defaultEmailDomain,
			MinAgeYears:        defaultMinAgeYears,
			TemplateURL:        defaultTemplateURL,
		},
		Lookup: Lookup{
			DebounceMillis: defaultDebounceMillis,
			MinQueryLength: defaultMinQueryLength,
			PageSize:       defaultLookupPageSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Submissions:    true,
			Ingestion:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

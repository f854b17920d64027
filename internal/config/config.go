// file: internal/config/config.go
// version: 2.0.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Source selector values for the provider registry.
const (
	SourceAll         = "all"
	SourceGoogle      = "google"
	SourceOpenLibrary = "openlibrary"
)

// Config holds the full application configuration. It is constructed once at
// startup and passed by value; nothing mutates it at search time, which
// keeps the waterfall and scoring deterministic.
type Config struct {
	// Provider selection: "all", "google" or "openlibrary". Registration
	// order is priority order.
	Source string `yaml:"api_source"`

	// Search toggles: whether optional local context may be folded into
	// relaxed text queries.
	UsePublisherInSearch bool `yaml:"use_publisher_in_search"`
	UseYearInSearch      bool `yaml:"use_year_in_search"`
	UseSeriesInSearch    bool `yaml:"use_series_in_search"`
	FilterByLanguage     bool `yaml:"filter_by_language"`

	// Network limits.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`

	// Decision behavior.
	AutoSave bool `yaml:"auto_save"`

	// Pipeline stages.
	EnableKepubify bool `yaml:"enable_kepubify"`
	EnableRename   bool `yaml:"enable_rename"`

	// Delivery.
	EnableDriveUpload bool   `yaml:"enable_drive_upload"`
	DriveFolderID     string `yaml:"drive_folder_id"`
	CredentialsPath   string `yaml:"google_credentials_path"`
	OutputDir         string `yaml:"output_dir"`

	// Display.
	Verbose    bool `yaml:"verbose"`
	FullOutput bool `yaml:"full_output"`

	// Cosmetic confidence bands for output coloring. These never influence
	// the decision logic.
	ThresholdHigh   int `yaml:"confidence_threshold_high"`
	ThresholdMedium int `yaml:"confidence_threshold_medium"`

	// Base URL overrides, mainly for tests.
	GoogleBaseURL      string `yaml:"google_base_url"`
	OpenLibraryBaseURL string `yaml:"openlibrary_base_url"`
}

// setDefaults registers every key with its default value so that env vars,
// config files and flags all resolve through the same table.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api_source", SourceAll)
	v.SetDefault("use_publisher_in_search", true)
	v.SetDefault("use_year_in_search", true)
	v.SetDefault("use_series_in_search", true)
	v.SetDefault("filter_by_language", true)
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("max_retries", 3)
	v.SetDefault("auto_save", false)
	v.SetDefault("enable_kepubify", true)
	v.SetDefault("enable_rename", true)
	v.SetDefault("enable_drive_upload", false)
	v.SetDefault("drive_folder_id", "")
	v.SetDefault("google_credentials_path", "credentials.json")
	v.SetDefault("output_dir", "output")
	v.SetDefault("verbose", false)
	v.SetDefault("full_output", false)
	v.SetDefault("confidence_threshold_high", 80)
	v.SetDefault("confidence_threshold_medium", 50)
	v.SetDefault("google_base_url", "https://www.googleapis.com/books/v1")
	v.SetDefault("openlibrary_base_url", "https://openlibrary.org")
}

// Load reads configuration from an optional .env file, the environment and
// an optional config file, in increasing precedence of env over file.
func Load(cfgFile string) (Config, error) {
	// A missing .env file is fine; it only exists in dev setups.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("epub-enricher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		// Not finding a config file is not an error.
		_ = v.ReadInConfig()
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Source:               v.GetString("api_source"),
		UsePublisherInSearch: v.GetBool("use_publisher_in_search"),
		UseYearInSearch:      v.GetBool("use_year_in_search"),
		UseSeriesInSearch:    v.GetBool("use_series_in_search"),
		FilterByLanguage:     v.GetBool("filter_by_language"),
		RequestTimeout:       v.GetDuration("request_timeout"),
		MaxRetries:           v.GetInt("max_retries"),
		AutoSave:             v.GetBool("auto_save"),
		EnableKepubify:       v.GetBool("enable_kepubify"),
		EnableRename:         v.GetBool("enable_rename"),
		EnableDriveUpload:    v.GetBool("enable_drive_upload"),
		DriveFolderID:        v.GetString("drive_folder_id"),
		CredentialsPath:      v.GetString("google_credentials_path"),
		OutputDir:            v.GetString("output_dir"),
		Verbose:              v.GetBool("verbose"),
		FullOutput:           v.GetBool("full_output"),
		ThresholdHigh:        v.GetInt("confidence_threshold_high"),
		ThresholdMedium:      v.GetInt("confidence_threshold_medium"),
		GoogleBaseURL:        v.GetString("google_base_url"),
		OpenLibraryBaseURL:   v.GetString("openlibrary_base_url"),
	}
	return cfg, cfg.Validate()
}

// Default returns the built-in configuration without touching the
// environment. Used by tests and `config init`.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := fromViper(v)
	return cfg
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c Config) Validate() error {
	switch c.Source {
	case SourceAll, SourceGoogle, SourceOpenLibrary:
	default:
		return fmt.Errorf("invalid api_source %q (want all, google or openlibrary)", c.Source)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// WriteStarterFile writes a commented starter config to path. Refuses to
// overwrite an existing file.
func WriteStarterFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	header := []byte("# epub-enricher configuration. Values may also be set via environment\n# variables using the upper-cased key name, e.g. API_SOURCE=google.\n")
	return os.WriteFile(path, append(header, data...), 0644)
}

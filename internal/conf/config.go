// Package conf loads and validates application settings.
package conf

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SourceConfig holds settings for one upstream biodiversity API.
type SourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"baseurl"`
	APIKey  string `mapstructure:"apikey"`
	PerPage int    `mapstructure:"perpage"`
}

// AggregatorConfig tunes the multi-source fan-out.
type AggregatorConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	PageSize    int           `mapstructure:"pagesize"`
}

// RetryConfig tunes the upstream retry/backoff policy.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"maxattempts"`
	InitialDelay time.Duration `mapstructure:"initialdelay"`
	MaxDelay     time.Duration `mapstructure:"maxdelay"`
}

// WebConfig holds HTTP server settings.
type WebConfig struct {
	Address string `mapstructure:"address"`
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool `mapstructure:"debug"`

	Sources struct {
		INaturalist SourceConfig `mapstructure:"inaturalist"`
		GBIF        SourceConfig `mapstructure:"gbif"`
		Trefle      SourceConfig `mapstructure:"trefle"`
		PlantNet    SourceConfig `mapstructure:"plantnet"`
	} `mapstructure:"sources"`

	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Web        WebConfig        `mapstructure:"web"`

	Wikipedia struct {
		BaseURL  string `mapstructure:"baseurl"`
		Language string `mapstructure:"language"`
	} `mapstructure:"wikipedia"`

	Geocoder struct {
		BaseURL string `mapstructure:"baseurl"`
	} `mapstructure:"geocoder"`

	Groups struct {
		DatabasePath string `mapstructure:"databasepath"`
		SeedFile     string `mapstructure:"seedfile"`
	} `mapstructure:"groups"`

	ImageCache struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"imagecache"`
}

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("sources.inaturalist.enabled", true)
	viper.SetDefault("sources.inaturalist.baseurl", "https://api.inaturalist.org/v1")
	viper.SetDefault("sources.inaturalist.perpage", 50)

	viper.SetDefault("sources.gbif.enabled", true)
	viper.SetDefault("sources.gbif.baseurl", "https://api.gbif.org/v1")
	viper.SetDefault("sources.gbif.perpage", 50)

	viper.SetDefault("sources.trefle.enabled", true)
	viper.SetDefault("sources.trefle.baseurl", "https://trefle.io/api/v1")
	viper.SetDefault("sources.trefle.perpage", 50)

	viper.SetDefault("sources.plantnet.enabled", true)
	viper.SetDefault("sources.plantnet.baseurl", "https://api.plantnet.org/v2")
	viper.SetDefault("sources.plantnet.perpage", 50)

	viper.SetDefault("aggregator.timeout", 2*time.Minute)
	viper.SetDefault("aggregator.concurrency", 4)
	viper.SetDefault("aggregator.pagesize", 20)

	viper.SetDefault("retry.maxattempts", 5)
	viper.SetDefault("retry.initialdelay", time.Second)
	viper.SetDefault("retry.maxdelay", 300*time.Second)

	viper.SetDefault("web.address", ":8080")

	viper.SetDefault("wikipedia.baseurl", "https://%s.wikipedia.org")
	viper.SetDefault("wikipedia.language", "en")

	viper.SetDefault("geocoder.baseurl", "https://nominatim.openstreetmap.org")

	viper.SetDefault("groups.databasepath", "hunterleaf.db")
	viper.SetDefault("groups.seedfile", "plant_groups.json")

	viper.SetDefault("imagecache.ttl", 24*time.Hour)
}

// Load reads configuration from hunterleaf.yaml (if present) and the
// HUNTERLEAF_* environment, applies defaults, and validates the result.
func Load() (*Settings, error) {
	setDefaultConfig()

	viper.SetConfigName("hunterleaf")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/hunterleaf")

	viper.SetEnvPrefix("hunterleaf")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults plus env carry the day.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// Validate checks settings for values the rest of the system cannot recover from.
func (s *Settings) Validate() error {
	if s.Aggregator.PageSize <= 0 {
		return fmt.Errorf("aggregator.pagesize must be positive, got %d", s.Aggregator.PageSize)
	}
	if s.Aggregator.Concurrency <= 0 {
		return fmt.Errorf("aggregator.concurrency must be positive, got %d", s.Aggregator.Concurrency)
	}
	if s.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.maxattempts must be positive, got %d", s.Retry.MaxAttempts)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the bot's static configuration, loaded once at startup.
type Config struct {
	// AuthorizedUserIDs lists the Telegram user ids allowed to talk to
	// the bot. Everyone else gets a denial reply.
	AuthorizedUserIDs []int64 `yaml:"authorized_user_ids"`

	// PlacesTable is the current DynamoDB table; LegacyPlacesTable may
	// be empty when no legacy data exists.
	PlacesTable       string `yaml:"places_table"`
	LegacyPlacesTable string `yaml:"legacy_places_table"`

	// PhotoBucket holds uploaded place photos.
	PhotoBucket       string `yaml:"photo_bucket"`
	PhotoBucketRegion string `yaml:"photo_bucket_region"`

	// ParamPrefix is the SSM path prefix for secrets such as the bot token.
	ParamPrefix string `yaml:"param_prefix"`

	// GeocoderBaseURL overrides the public Nominatim instance when set.
	GeocoderBaseURL string `yaml:"geocoder_base_url"`
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.AuthorizedUserIDs) == 0 {
		return errors.New("config: authorized_user_ids must not be empty")
	}
	if c.PlacesTable == "" {
		return errors.New("config: places_table is required")
	}
	if c.PhotoBucket == "" {
		return errors.New("config: photo_bucket is required")
	}
	if c.PhotoBucketRegion == "" {
		return errors.New("config: photo_bucket_region is required")
	}
	if c.ParamPrefix == "" {
		return errors.New("config: param_prefix is required")
	}
	return nil
}

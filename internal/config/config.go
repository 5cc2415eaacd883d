package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/coffersTech/nanotel/internal/engine"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: NANOTEL_SERVER__PORT sets server.port.
const EnvPrefix = "NANOTEL_"

var ErrInvalidSlot = engine.ErrInvalidSlot

type Config struct {
	Analysis     AnalysisConfig     `koanf:"analysis"`
	Subscription SubscriptionConfig `koanf:"subscription"`
	// Ceilings maps family names (data_call, ims_reg, ...) to duration strings.
	Ceilings map[string]string `koanf:"ceilings"`
	Server   ServerConfig      `koanf:"server"`
	Storage  StorageConfig     `koanf:"storage"`
}

type AnalysisConfig struct {
	Strict          bool   `koanf:"strict"`
	Year            int    `koanf:"year"`     // 0 for the current year
	Location        string `koanf:"location"` // IANA zone of the device clock
	HistogramBucket string `koanf:"histogram_bucket"`
}

// SubscriptionConfig is the subscription info of the device under test.
type SubscriptionConfig struct {
	DDSSlot    int      `koanf:"dds_slot"`
	VoiceSubID int      `koanf:"voice_sub_id"`
	Operators  []string `koanf:"operators"` // indexed by slot
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// APIKeyHashes are bcrypt hashes of accepted API keys. Empty disables auth.
	APIKeyHashes []string `koanf:"api_key_hashes"`
}

type StorageConfig struct {
	RunsDB     string `koanf:"runs_db"` // empty disables run history
	CaptureDir string `koanf:"capture_dir"`
	Retention  string `koanf:"retention"`
}

// Load reads path (if it exists) and then applies NANOTEL_ environment overrides.
// An empty path reads config.yaml from the working directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	defaults := map[string]any{
		"analysis.location":         "UTC",
		"analysis.histogram_bucket": "100ms",
		"server.port":               8080,
		"storage.capture_dir":       "captures",
	}
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed in the schema.
func (c *Config) Validate() error {
	if err := engine.CheckSlot(c.Subscription.DDSSlot); err != nil {
		return fmt.Errorf("subscription.dds_slot: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Bounds(); err != nil {
		return err
	}
	if _, err := c.HistogramBucket(); err != nil {
		return err
	}
	if _, err := c.Retention(); err != nil {
		return err
	}
	return nil
}

// Location returns the device timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Analysis.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Analysis.Location)
	if err != nil {
		return nil, fmt.Errorf("analysis.location: %w", err)
	}
	return loc, nil
}

// Bounds returns the default ceilings overridden by the configured ones.
func (c *Config) Bounds() (engine.Bounds, error) {
	b := engine.DefaultBounds()
	for name, v := range c.Ceilings {
		f, ok := engine.ParseFamily(name)
		if !ok {
			return nil, fmt.Errorf("ceilings.%s: unknown family", name)
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ceilings.%s: %w", name, err)
		}
		b[f] = d
	}
	return b, nil
}

// HistogramBucket returns the latency histogram bucket width.
func (c *Config) HistogramBucket() (time.Duration, error) {
	if c.Analysis.HistogramBucket == "" {
		return engine.DefaultHistogramBucket, nil
	}
	d, err := time.ParseDuration(c.Analysis.HistogramBucket)
	if err != nil {
		return 0, fmt.Errorf("analysis.histogram_bucket: %w", err)
	}
	return d, nil
}

// Retention returns how long capture files are kept. Zero keeps them forever.
func (c *Config) Retention() (time.Duration, error) {
	if c.Storage.Retention == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Storage.Retention)
	if err != nil {
		return 0, fmt.Errorf("storage.retention: %w", err)
	}
	return d, nil
}

// Package config loads the application configuration from a YAML or JSON
// file, with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"staffplan/core/planner"
)

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the database file, required for the sqlite backend.
	Path string `json:"path"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("storage: sqlite backend requires a path")
		}
		return nil
	default:
		return fmt.Errorf("storage: unknown backend %q (want memory or sqlite)", c.Backend)
	}
}

type Config struct {
	Storage StorageConfig  `json:"storage"`
	Planner planner.Config `json:"planner"`
}

// Load reads the configuration file at path. Environment variables prefixed
// with SP_ override file values, with __ as the nesting separator, e.g.
// SP_PLANNER__ILP__TIME_LIMIT_S=60.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

// Default returns the configuration used when no file is given: in-memory
// storage and the stock planner weights, still honoring SP_ overrides.
func Default() (*Config, error) {
	k := koanf.New(".")
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

func loadEnv(k *koanf.Koanf) error {
	return k.Load(env.Provider("SP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "sp_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	// Environment overrides arrive as strings; weakly typed decoding turns
	// them back into the numeric and boolean fields they target.
	conf := koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "json",
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, conf); err != nil {
		return nil, err
	}
	cfg.Storage.SetDefaults()
	cfg.Planner.SetDefaults()
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Planner.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

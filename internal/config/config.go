// Package config loads the dictpress configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/dshills/dictpress/pkg/types"
)

// Config is the application configuration
type Config struct {
	App        AppConfig             `mapstructure:"app"`
	DB         DBConfig              `mapstructure:"db"`
	Cache      CacheConfig           `mapstructure:"cache"`
	Log        LogConfig             `mapstructure:"log"`
	Tokenizers TokenizersConfig      `mapstructure:"tokenizers"`
	Langs      map[string]LangConfig `mapstructure:"lang" validate:"required,min=1,dive"`
	// Dicts lists [from, to] language pairs
	Dicts [][]string `mapstructure:"dicts" validate:"dive,len=2,dive,required"`
}

// AppConfig holds request limits and search behaviour
type AppConfig struct {
	DefaultPerPage int `mapstructure:"default_per_page" validate:"min=1"`
	MaxPerPage     int `mapstructure:"max_per_page" validate:"min=1,gtefield=DefaultPerPage"`
	NumSuggestions int `mapstructure:"num_suggestions" validate:"min=0"`
	// MaxRelations and MaxContentItems bound every search. Public requests
	// may only lower them.
	MaxRelations    int  `mapstructure:"max_relations" validate:"min=0"`
	MaxContentItems int  `mapstructure:"max_content_items" validate:"min=0"`
	QueryMemoSize   int  `mapstructure:"query_memo_size" validate:"min=1"`
	SingleFlight    bool `mapstructure:"single_flight"`
}

// DBConfig locates the SQLite database
type DBConfig struct {
	Path     string `mapstructure:"path" validate:"required"`
	MaxConns int    `mapstructure:"max_conns" validate:"min=1"`
}

// CacheConfig configures the result cache. Sizes accept humanized
// values such as 64MiB and TTL accepts a d suffix for days.
type CacheConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mode      string `mapstructure:"mode" validate:"oneof=memory hybrid"`
	TTL       string `mapstructure:"ttl" validate:"required"`
	MaxMemory string `mapstructure:"max_memory" validate:"required"`
	MaxDisk   string `mapstructure:"max_disk" validate:"required"`
	Dir       string `mapstructure:"dir" validate:"required_if=Mode hybrid"`

	// Parsed forms of the fields above
	TTLDuration    time.Duration `mapstructure:"-"`
	MaxMemoryBytes int64         `mapstructure:"-"`
	MaxDiskBytes   int64         `mapstructure:"-"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// TokenizersConfig configures tokenizer loading
type TokenizersConfig struct {
	// ScriptDir holds lua:<file> tokenizer scripts
	ScriptDir string `mapstructure:"script_dir"`
}

// LangConfig describes one dictionary language. Types maps relation type
// ids to display names.
type LangConfig struct {
	Name      string            `mapstructure:"name" validate:"required"`
	Tokenizer string            `mapstructure:"tokenizer"`
	Types     map[string]string `mapstructure:"types"`
}

// Load reads the configuration from configFile, or from config.{yml,yaml}
// in the working directory or $HOME/.config/dictpress when it is empty.
// A missing file leaves the defaults in place.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/dictpress")
	}

	setDefaults(v)

	if err := v.BindEnv("db.path", "DICTPRESS_DB_PATH"); err != nil {
		return nil, fmt.Errorf("failed to bind DICTPRESS_DB_PATH environment variable: %w", err)
	}
	if err := v.BindEnv("cache.dir", "DICTPRESS_CACHE_DIR"); err != nil {
		return nil, fmt.Errorf("failed to bind DICTPRESS_CACHE_DIR environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}
	if len(cfg.Langs) == 0 {
		cfg.Langs = defaultLangs()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("app.default_per_page", 10)
	v.SetDefault("app.max_per_page", 50)
	v.SetDefault("app.num_suggestions", 10)
	v.SetDefault("app.max_relations", 0)
	v.SetDefault("app.max_content_items", 0)
	v.SetDefault("app.query_memo_size", 4096)
	v.SetDefault("app.single_flight", false)

	v.SetDefault("db.path", "dictpress.db")
	v.SetDefault("db.max_conns", 4)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.mode", "memory")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_memory", "64MiB")
	v.SetDefault("cache.max_disk", "1GiB")
	v.SetDefault("cache.dir", filepath.Join(home, ".cache", "dictpress"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// defaultLangs applies when the file configures no language. It is not a
// viper default since viper merges nested map defaults into user maps.
func defaultLangs() map[string]LangConfig {
	return map[string]LangConfig{
		"english": {Name: "English", Tokenizer: "default:english"},
	}
}

// Validate checks the struct tags and the cross-field rules, then parses the
// cache durations and sizes
func (c *Config) Validate() error {
	validate, trans, err := newValidator()
	if err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		return validationError(err, trans)
	}

	if c.Cache.TTLDuration, err = ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("invalid configuration: cache.ttl: %w", err)
	}
	if c.Cache.TTLDuration <= 0 {
		return fmt.Errorf("invalid configuration: cache.ttl must be positive")
	}
	if c.Cache.MaxMemoryBytes, err = parseBytes(c.Cache.MaxMemory); err != nil {
		return fmt.Errorf("invalid configuration: cache.max_memory: %w", err)
	}
	if c.Cache.MaxDiskBytes, err = parseBytes(c.Cache.MaxDisk); err != nil {
		return fmt.Errorf("invalid configuration: cache.max_disk: %w", err)
	}
	return nil
}

func parseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	return int64(n), nil
}

// ParseDuration parses a Go duration with an additional d (days) unit, as in
// "7d" or "1d12h"
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexByte(s, 'd')
	if i < 0 {
		return time.ParseDuration(s)
	}

	days, err := strconv.Atoi(s[:i])
	if err != nil || days < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	d := time.Duration(days) * 24 * time.Hour
	if rest := s[i+1:]; rest != "" {
		r, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		d += r
	}
	return d, nil
}

// Languages returns the configured languages keyed by id
func (c *Config) Languages() types.LangMap {
	out := make(types.LangMap, len(c.Langs))
	for id, l := range c.Langs {
		out[id] = types.Lang{
			ID:        id,
			Name:      l.Name,
			Tokenizer: l.Tokenizer,
			Types:     l.Types,
		}
	}
	return out
}

// DictPairs resolves the configured dictionaries against langs
func (c *Config) DictPairs(langs types.LangMap) []types.Dict {
	out := make([]types.Dict, 0, len(c.Dicts))
	for _, d := range c.Dicts {
		out = append(out, types.Dict{From: langs[d[0]], To: langs[d[1]]})
	}
	return out
}

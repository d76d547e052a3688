package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dictpress/pkg/types"
)

const fullConfig = `app:
  default_per_page: 20
  max_per_page: 100
  num_suggestions: 5
  max_relations: 3
  single_flight: true
db:
  path: /var/lib/dictpress/dict.db
  max_conns: 8
cache:
  enabled: true
  mode: hybrid
  ttl: 2d
  max_memory: 32MiB
  max_disk: 2GiB
  dir: /var/cache/dictpress
log:
  level: debug
  format: json
lang:
  english:
    name: English
    tokenizer: default:english
    types:
      noun: Noun
      verb: Verb
  italian:
    name: Italiano
    tokenizer: default:italian
dicts:
  - [english, italian]
  - [italian, english]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, fullConfig))
		require.NoError(t, err)

		assert.Equal(t, AppConfig{
			DefaultPerPage: 20,
			MaxPerPage:     100,
			NumSuggestions: 5,
			MaxRelations:   3,
			QueryMemoSize:  4096,
			SingleFlight:   true,
		}, cfg.App)
		assert.Equal(t, DBConfig{Path: "/var/lib/dictpress/dict.db", MaxConns: 8}, cfg.DB)
		assert.Equal(t, "hybrid", cfg.Cache.Mode)
		assert.Equal(t, 48*time.Hour, cfg.Cache.TTLDuration)
		assert.Equal(t, int64(32<<20), cfg.Cache.MaxMemoryBytes)
		assert.Equal(t, int64(2<<30), cfg.Cache.MaxDiskBytes)
		assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
		assert.Len(t, cfg.Langs, 2)
		assert.Equal(t, [][]string{{"english", "italian"}, {"italian", "english"}}, cfg.Dicts)

		langs := cfg.Languages()
		assert.Equal(t, "english", langs["english"].ID)
		assert.True(t, langs["english"].HasType("noun"))
		assert.False(t, langs["italian"].HasType("noun"))

		dicts := cfg.DictPairs(langs)
		require.Len(t, dicts, 2)
		assert.Equal(t, "Italiano", dicts[0].To.Name)
	})

	t.Run("defaults without a file", func(t *testing.T) {
		originalDir, err := os.Getwd()
		require.NoError(t, err)
		defer func() {
			require.NoError(t, os.Chdir(originalDir))
		}()
		require.NoError(t, os.Chdir(t.TempDir()))
		t.Setenv("HOME", t.TempDir())

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 10, cfg.App.DefaultPerPage)
		assert.Equal(t, 50, cfg.App.MaxPerPage)
		assert.Equal(t, "dictpress.db", cfg.DB.Path)
		assert.Equal(t, "memory", cfg.Cache.Mode)
		assert.Equal(t, time.Hour, cfg.Cache.TTLDuration)
		assert.Equal(t, types.LangMap{
			"english": {ID: "english", Name: "English", Tokenizer: "default:english"},
		}, cfg.Languages())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("DICTPRESS_DB_PATH", "/tmp/env.db")
		t.Setenv("DICTPRESS_CACHE_DIR", "/tmp/env-cache")

		cfg, err := Load(writeConfig(t, fullConfig))
		require.NoError(t, err)
		assert.Equal(t, "/tmp/env.db", cfg.DB.Path)
		assert.Equal(t, "/tmp/env-cache", cfg.Cache.Dir)
	})

	t.Run("unreadable yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "db:\n  path: [[[\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not be read")
	})
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bad cache mode",
			content: "cache:\n  mode: redis\n",
			want:    "mode must be one of [memory hybrid]",
		},
		{
			name:    "bad log level",
			content: "log:\n  level: verbose\n",
			want:    "level must be one of",
		},
		{
			name:    "max below default per page",
			content: "app:\n  default_per_page: 20\n  max_per_page: 10\n",
			want:    "max_per_page",
		},
		{
			name:    "unknown dict language",
			content: "lang:\n  english:\n    name: English\ndicts:\n  - [english, klingon]\n",
			want:    "unknown language klingon",
		},
		{
			name:    "dict pair length",
			content: "lang:\n  english:\n    name: English\ndicts:\n  - [english]\n",
			want:    "dicts[0]",
		},
		{
			name:    "language without name",
			content: "lang:\n  english:\n    tokenizer: default:english\n",
			want:    "name is a required field",
		},
		{
			name:    "bad ttl",
			content: "cache:\n  ttl: soon\n",
			want:    "cache.ttl",
		},
		{
			name:    "zero ttl",
			content: "cache:\n  ttl: 0s\n",
			want:    "cache.ttl must be positive",
		},
		{
			name:    "bad size",
			content: "cache:\n  max_memory: lots\n",
			want:    "cache.max_memory",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90s", 90 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{" 2d ", 48 * time.Hour, false},
		{"d", 0, true},
		{"xd", 0, true},
		{"1dx", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

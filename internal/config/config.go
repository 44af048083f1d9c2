// Package config loads the runtime configuration of the CLI and servers.
//
// Files are YAML or JSON (by extension). They are decoded into a generic map
// first and then into Config with mapstructure, so durations may be written
// as "5s" and numbers as strings. WORKFLOW_* environment variables override
// secrets and addresses after the file is read.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/delta5-hq/d5-sub001/pkg/adapters/openai"
	"github.com/delta5-hq/d5-sub001/pkg/adapters/process"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Snapshot backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
	Server    ServerConfig    `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProgressConfig controls the periodic in-flight dump.
type ProgressConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// ProvidersConfig binds query types to the OpenAI-compatible endpoint.
// An empty Types list serves every provider query type.
// Process entries are keyed by query type and win over OpenAI for it.
type ProvidersConfig struct {
	OpenAI  openai.Config             `mapstructure:"openai"`
	Types   []string                  `mapstructure:"types"`
	Process map[string]process.Config `mapstructure:"process"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	Lock     bool          `mapstructure:"lock"`
}

type SnapshotsConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	Format  string `mapstructure:"format"`

	// EncryptionKey is a base64 AES-256 key. Empty disables encryption.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	// Redact lists regular expressions over workflow file ids.
	Redact []string `mapstructure:"redact"`
}

type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	MCPPort int    `mapstructure:"mcp_port"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Progress: ProgressConfig{Interval: 5 * time.Second},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Prefix:  "workflow:snapshot:",
			LockTTL: 30 * time.Second,
		},
		Snapshots: SnapshotsConfig{
			Backend: BackendFile,
			Path:    filepath.Join(".workflow", "snapshots"),
			Format:  "json",
		},
		Server: ServerConfig{Addr: ":8080", MCPPort: 8081},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error when path is empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := readFile(path)
		if err != nil {
			return cfg, err
		}
		if err := Decode(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}
	ApplyEnv(&cfg, os.LookupEnv)
	return cfg, cfg.Validate()
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	raw := map[string]any{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return raw, nil
}

// Decode merges raw into cfg. Keys absent from raw keep their current value.
func Decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// ApplyEnv overrides cfg from the environment. lookup is os.LookupEnv in
// production.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("WORKFLOW_LOG_LEVEL", &cfg.Log.Level)
	str("WORKFLOW_SERVER_ADDR", &cfg.Server.Addr)
	str("WORKFLOW_SNAPSHOTS_BACKEND", &cfg.Snapshots.Backend)
	str("WORKFLOW_SNAPSHOTS_KEY", &cfg.Snapshots.EncryptionKey)
	str("WORKFLOW_REDIS_ADDR", &cfg.Redis.Addr)
	str("WORKFLOW_REDIS_PASSWORD", &cfg.Redis.Password)
	str("WORKFLOW_OPENAI_BASE_URL", &cfg.Providers.OpenAI.BaseURL)
	str("WORKFLOW_OPENAI_MODEL", &cfg.Providers.OpenAI.Model)

	if cfg.Providers.OpenAI.APIKey == "" {
		str("OPENAI_API_KEY", &cfg.Providers.OpenAI.APIKey)
	}
	str("WORKFLOW_OPENAI_API_KEY", &cfg.Providers.OpenAI.APIKey)

	if v, ok := lookup("WORKFLOW_REDIS_DB"); ok {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
}

// Validate reports settings that cannot be wired.
func (c Config) Validate() error {
	switch c.Snapshots.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Snapshots.Backend)
	}
	for qt, p := range c.Providers.Process {
		if !domain.QueryType(qt).Valid() {
			return fmt.Errorf("providers.process: unknown query type %q", qt)
		}
		if p.Command == "" {
			return fmt.Errorf("providers.process.%s: command is required", qt)
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

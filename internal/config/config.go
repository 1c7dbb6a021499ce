package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g.
	// FABRICGUIDE_SERVER__ADDRESS=:9000.
	EnvPrefix = "FABRICGUIDE_"
	// EnvConfigPath names the config file when --config is not given.
	EnvConfigPath = "FABRICGUIDE_CONFIG"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server    ServerConfig              `koanf:"server"`
	Storage   StorageConfig             `koanf:"storage"`
	Redis     RedisConfig               `koanf:"redis"`
	Guide     GuideConfig               `koanf:"guide"`
	Providers map[string]ProviderConfig `koanf:"providers"`
	Search    SearchConfig              `koanf:"search"`
	Workers   WorkerConfig              `koanf:"workers"`
	Export    ExportConfig              `koanf:"export"`
	Log       LogConfig                 `koanf:"log"`
}

type ServerConfig struct {
	Address   string `koanf:"address"`
	PublicURL string `koanf:"public_url"`
	GinMode   string `koanf:"gin_mode"`
}

type StorageConfig struct {
	Driver   string `koanf:"driver"`
	DSN      string `koanf:"dsn"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	Params   string `koanf:"params"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// GuideConfig controls how new conversations answer.
type GuideConfig struct {
	Mode            string        `koanf:"mode"`
	Provider        string        `koanf:"provider"`
	Search          bool          `koanf:"search"`
	ReplyDelay      time.Duration `koanf:"reply_delay"`
	ConversationTTL time.Duration `koanf:"conversation_ttl"`
	CleanInterval   time.Duration `koanf:"clean_interval"`
}

type ProviderConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// SearchConfig drives the web_search tool of agent-backed providers.
// Google Custom Search is used when both key and engine id are set;
// DuckDuckGo is always available as fallback.
type SearchConfig struct {
	GoogleAPIKey   string        `koanf:"google_api_key"`
	GoogleEngineID string        `koanf:"google_engine_id"`
	MaxResults     int           `koanf:"max_results"`
	Timeout        time.Duration `koanf:"timeout"`
	RateLimit      int           `koanf:"rate_limit"`
	RateWindow     time.Duration `koanf:"rate_window"`
}

type WorkerConfig struct {
	MinWorkers  int           `koanf:"min_workers"`
	MaxWorkers  int           `koanf:"max_workers"`
	QueueSize   int           `koanf:"queue_size"`
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

type ExportConfig struct {
	ChromeBin   string        `koanf:"chrome_bin"`
	Headless    bool          `koanf:"headless"`
	Scale       float64       `koanf:"scale"`
	Background  string        `koanf:"background"`
	Selector    string        `koanf:"selector"`
	IgnoreClass string        `koanf:"ignore_class"`
	FileName    string        `koanf:"file_name"`
	Timeout     time.Duration `koanf:"timeout"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:   ":8090",
			PublicURL: "http://127.0.0.1:8090",
			GinMode:   "release",
		},
		Storage: StorageConfig{
			Driver: "sqlite3",
		},
		Redis: RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
		Guide: GuideConfig{
			Mode:            "local",
			Provider:        "gemini",
			ReplyDelay:      600 * time.Millisecond,
			ConversationTTL: 24 * time.Hour,
			CleanInterval:   time.Hour,
		},
		Providers: map[string]ProviderConfig{
			"gemini": {Model: "gemini-2.5-flash"},
			"openai": {Model: "gpt-4o-mini"},
			"claude": {Model: "claude-sonnet-4-5"},
		},
		Search: SearchConfig{
			MaxResults: 3,
			Timeout:    10 * time.Second,
			RateLimit:  5,
			RateWindow: time.Minute,
		},
		Workers: WorkerConfig{
			MinWorkers:  2,
			MaxWorkers:  8,
			QueueSize:   64,
			IdleTimeout: 5 * time.Minute,
		},
		Export: ExportConfig{
			Headless:    true,
			Scale:       2,
			Background:  "#f8fafc",
			Selector:    "#architecture-plaat",
			IgnoreClass: "export-ignore",
			FileName:    "Lestel-Fabric-Blueprint",
			Timeout:     30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from the provided YAML path (defaults to
// $FABRICGUIDE_CONFIG, then config.yaml), then overlays FABRICGUIDE_*
// environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = "config.yaml"
	}

	k := koanf.New(".")
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("access config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyKeyFallbacks()
	cfg.applyStorageDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps FABRICGUIDE_GUIDE__REPLY_DELAY to guide.reply_delay.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var providerKeyEnv = map[string][]string{
	"gemini": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai": {"OPENAI_API_KEY"},
	"claude": {"ANTHROPIC_API_KEY"},
}

func (c *Config) applyKeyFallbacks() {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for name, vars := range providerKeyEnv {
		pc := c.Providers[name]
		if pc.APIKey != "" {
			continue
		}
		for _, v := range vars {
			if key := strings.TrimSpace(os.Getenv(v)); key != "" {
				pc.APIKey = key
				c.Providers[name] = pc
				break
			}
		}
	}
	if c.Search.GoogleEngineID == "" {
		c.Search.GoogleEngineID = strings.TrimSpace(os.Getenv("GOOGLE_SEARCH_ENGINE_ID"))
	}
	if c.Search.GoogleAPIKey == "" && c.Search.GoogleEngineID != "" {
		c.Search.GoogleAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
}

// SQLiteMemoryDSN keeps the whole database in process memory.
const SQLiteMemoryDSN = ":memory:"

// applyStorageDefaults gives sqlite an in-memory database when no DSN is set.
// It runs after decoding so a mysql config never inherits the sqlite DSN.
func (c *Config) applyStorageDefaults() {
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "sqlite3":
		if c.Storage.DSN == "" {
			c.Storage.DSN = SQLiteMemoryDSN
		}
	}
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "sqlite3":
	case "mysql":
		if c.Storage.DSN == "" && (c.Storage.Host == "" || c.Storage.DBName == "") {
			return fmt.Errorf("storage.dsn or storage.host and storage.dbname must be configured for mysql")
		}
	default:
		return fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver)
	}
	switch strings.ToLower(c.Guide.Mode) {
	case "local", "remote":
	default:
		return fmt.Errorf("invalid guide.mode %q: must be local or remote", c.Guide.Mode)
	}
	if c.Guide.ReplyDelay < 0 {
		return fmt.Errorf("guide.reply_delay must be non-negative")
	}
	if c.Workers.MinWorkers < 0 || c.Workers.MaxWorkers < 0 || c.Workers.QueueSize < 0 {
		return fmt.Errorf("workers settings must be non-negative")
	}
	if c.Export.Scale <= 0 {
		return fmt.Errorf("export.scale must be positive")
	}
	return nil
}

// Provider returns the named provider configuration.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	pc, ok := c.Providers[strings.ToLower(strings.TrimSpace(name))]
	return pc, ok
}

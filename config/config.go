package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the reasoning service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Session   SessionConfig   `mapstructure:"session"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// KnowledgeConfig tells the service where the ingested corpus lives and
// whether to rebuild the index when the file changes on disk.
type KnowledgeConfig struct {
	CorpusPath string `mapstructure:"corpus_path"`
	Watch      bool   `mapstructure:"watch"`
}

func (k KnowledgeConfig) Validate() error {
	if strings.TrimSpace(k.CorpusPath) == "" {
		return fmt.Errorf("knowledge.corpus_path is required")
	}
	return nil
}

// AnalysisConfig carries entity extraction triggers: domain category ->
// trigger words. Empty means the built-in defaults.
type AnalysisConfig struct {
	Categories map[string][]string `mapstructure:"categories"`
}

// RetrievalConfig tunes candidate article ranking.
type RetrievalConfig struct {
	Limit             int     `mapstructure:"limit"`
	CarryoverDiscount float64 `mapstructure:"carryover_discount"`
}

func (r RetrievalConfig) Validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("retrieval.limit must be > 0")
	}
	if r.CarryoverDiscount <= 0 || r.CarryoverDiscount > 1 {
		return fmt.Errorf("retrieval.carryover_discount must be in (0, 1]")
	}
	return nil
}

// SessionConfig controls conversational state handling.
type SessionConfig struct {
	Store      string        `mapstructure:"store"` // inmemory, redis
	TTL        time.Duration `mapstructure:"ttl"`
	MaxHistory int           `mapstructure:"max_history"`
}

func (s SessionConfig) Validate() error {
	switch s.Store {
	case "inmemory", "redis":
	default:
		return fmt.Errorf("session.store must be inmemory or redis, got %q", s.Store)
	}
	if s.MaxHistory <= 0 {
		return fmt.Errorf("session.max_history must be > 0")
	}
	return nil
}

// CacheConfig controls the read-through response cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

func (c CacheConfig) Validate() error {
	if c.Enabled && c.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0 when cache is enabled")
	}
	return nil
}

// StorageConfig contains backing-store configurations
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings (used when session.store is redis)
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// DefaultCategories returns the built-in entity trigger mapping. Triggers are
// regular-expression fragments matched on word boundaries.
func DefaultCategories() map[string][]string {
	return map[string][]string{
		"robotics":   {"robots?", "robotics", "androids?", "humanoids?", "mecha", "mobile suits?"},
		"automation": {"automation", "automated", "autonomous", "actuators?", "control systems?"},
		"ai":         {"ai", "artificial intelligence", "machine learning", "neural networks?", "deep learning"},
		"character":  {"c-3po", "r2-d2", "wall-e", "terminator", "optimus prime", "gundam"},
		"technology": {"sensors?", "processors?", "algorithms?", "software", "computing"},
	}
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10002")
	viper.SetDefault("knowledge.corpus_path", "data/knowledge.json")
	viper.SetDefault("knowledge.watch", false)
	viper.SetDefault("retrieval.limit", 5)
	viper.SetDefault("retrieval.carryover_discount", 0.8)
	viper.SetDefault("session.store", "inmemory")
	viper.SetDefault("session.ttl", "30m")
	viper.SetDefault("session.max_history", 10)
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.ttl", "60s")
	viper.SetDefault("cache.max_entries", 256)
	viper.SetDefault("storage.redis.timeout", "5s")
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.periodic_logs", false)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("REASONER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Running without a config file is fine; defaults plus REASONER_*
		// env vars cover every setting.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if len(config.Analysis.Categories) == 0 {
		config.Analysis.Categories = DefaultCategories()
	}

	if err := config.Knowledge.Validate(); err != nil {
		panic(err)
	}
	if err := config.Retrieval.Validate(); err != nil {
		panic(err)
	}
	if err := config.Session.Validate(); err != nil {
		panic(err)
	}
	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	if config.Session.Store == "redis" {
		if err := config.Storage.Redis.Validate(); err != nil {
			panic(err)
		}
	}
	return &config
}

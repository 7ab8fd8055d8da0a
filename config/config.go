// Package config loads engine configuration from file and environment.
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

// Config holds all configuration for the ingestion engine.
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Dedup       DedupConfig       `mapstructure:"dedup"`
	Credibility CredibilityConfig `mapstructure:"credibility"`
	Worker      WorkerConfig      `mapstructure:"worker"`
}

// GeneralConfig contains application-wide settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	return nil
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN assembles the connection string from the configured parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings. Redis is optional; an empty
// host disables distributed locking and rate limiting.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port, or the empty string when Redis is not configured.
func (r RedisConfig) Addr() string {
	if strings.TrimSpace(r.Host) == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// SchedulerConfig controls the scheduling loop.
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// FetchConfig bounds outbound fetching.
type FetchConfig struct {
	AttemptTimeout    time.Duration `mapstructure:"attempt_timeout"`
	RequestsPerWindow int           `mapstructure:"requests_per_window"`
	Window            time.Duration `mapstructure:"window"`
}

func (f FetchConfig) Validate() error {
	if f.RequestsPerWindow < 0 {
		return fmt.Errorf("fetch.requests_per_window cannot be negative")
	}
	return nil
}

// PipelineConfig tunes admission gating.
type PipelineConfig struct {
	QualityThreshold float64 `mapstructure:"quality_threshold"`
}

func (p PipelineConfig) Validate() error {
	if p.QualityThreshold < 0 || p.QualityThreshold > 1 {
		return fmt.Errorf("pipeline.quality_threshold must be within [0,1]")
	}
	return nil
}

// DedupConfig tunes duplicate detection.
type DedupConfig struct {
	Threshold  float64       `mapstructure:"threshold"`
	WindowSpan time.Duration `mapstructure:"window_span"`
}

func (d DedupConfig) Validate() error {
	if d.Threshold < 0 || d.Threshold > 100 {
		return fmt.Errorf("dedup.threshold must be within [0,100]")
	}
	return nil
}

// CredibilityConfig controls periodic rescoring.
type CredibilityConfig struct {
	RescoreInterval time.Duration `mapstructure:"rescore_interval"`
}

// WorkerConfig sizes the processing loop.
type WorkerConfig struct {
	Count        int           `mapstructure:"count"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

func (w WorkerConfig) Validate() error {
	if w.Count < 0 {
		return fmt.Errorf("worker.count cannot be negative")
	}
	return nil
}

// Load reads configuration from the given file, or from the standard search
// paths when path is empty, with NEWSFLOW_* environment overrides. A missing
// config file is not an error; defaults and environment suffice.
func Load(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.interval", time.Minute)
	viper.SetDefault("fetch.attempt_timeout", 15*time.Second)
	viper.SetDefault("fetch.requests_per_window", 10)
	viper.SetDefault("fetch.window", time.Minute)
	viper.SetDefault("pipeline.quality_threshold", 0.3)
	viper.SetDefault("dedup.threshold", 75.0)
	viper.SetDefault("dedup.window_span", 7*24*time.Hour)
	viper.SetDefault("credibility.rescore_interval", time.Hour)
	viper.SetDefault("worker.count", 4)
	viper.SetDefault("worker.poll_interval", 5*time.Second)

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

	viper.SetEnvPrefix("NEWSFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for _, v := range []interface{ Validate() error }{
		cfg.Server,
		cfg.Storage.Postgres,
		cfg.Fetch,
		cfg.Pipeline,
		cfg.Dedup,
		cfg.Worker,
	} {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Package config loads service settings by layering defaults, an optional
// YAML file named by SEEDTIME_CONFIG, and SEEDTIME_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SEEDTIME_"

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all service settings.
type Config struct {
	// Roster input. InputFile wins over the dated InputDir + InputSuffix path.
	InputDir    string
	InputFile   string
	InputSuffix string
	OutputDir   string
	DropColumns []string

	WorkerCount int

	OracleBaseURL     string
	OracleTimeout     time.Duration
	OracleSettleDelay time.Duration
	OracleCacheSize   int

	// Sinks. The workbook is always written; Kafka and Postgres are enabled
	// when KafkaBrokers or PostgresDSN are set.
	WorkbookPath     string
	PublishBatchSize int
	KafkaBrokers     []string
	KafkaTopic       string
	PostgresDSN      string

	// Triggers. With neither set the service runs once and exits.
	Schedule      string
	WatchInput    bool
	WatchDebounce time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// KafkaEnabled reports whether the Kafka sink is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// PostgresEnabled reports whether the Postgres sink is configured.
func (c *Config) PostgresEnabled() bool { return c.PostgresDSN != "" }

// Daemon reports whether the service keeps running after the first pass.
func (c *Config) Daemon() bool { return c.Schedule != "" || c.WatchInput }

// raw mirrors the file and env keys. Durations and lists stay strings until
// validated so errors can name the offending variable.
type raw struct {
	InputDir          string `koanf:"input_dir"`
	InputFile         string `koanf:"input_file"`
	InputSuffix       string `koanf:"input_suffix"`
	OutputDir         string `koanf:"output_dir"`
	WorkerCount       int    `koanf:"worker_count"`
	OracleBaseURL     string `koanf:"oracle_base_url"`
	OracleTimeout     string `koanf:"oracle_timeout"`
	OracleSettleDelay string `koanf:"oracle_settle_delay"`
	OracleCacheSize   int    `koanf:"oracle_cache_size"`
	WorkbookPath      string `koanf:"workbook_path"`
	PublishBatchSize  int    `koanf:"publish_batch_size"`
	KafkaTopic        string `koanf:"kafka_topic"`
	PostgresDSN       string `koanf:"postgres_dsn"`
	Schedule          string `koanf:"schedule"`
	WatchInput        bool   `koanf:"watch_input"`
	WatchDebounce     string `koanf:"watch_debounce"`
	HTTPAddr          string `koanf:"http_addr"`
	LogLevel          string `koanf:"log_level"`
	LogFormat         string `koanf:"log_format"`
	ShutdownTimeout   string `koanf:"shutdown_timeout"`
}

func defaults() raw {
	return raw{
		InputDir:          ".",
		InputSuffix:       domain.DefaultInputSuffix,
		WorkerCount:       1,
		OracleBaseURL:     "http://localhost:8090",
		OracleTimeout:     "10s",
		OracleSettleDelay: "1s",
		OracleCacheSize:   1000,
		WorkbookPath:      "seedtime-workbook.db",
		PublishBatchSize:  1000,
		KafkaTopic:        "event-sheets",
		WatchDebounce:     "2s",
		HTTPAddr:          ":8080",
		LogLevel:          "info",
		LogFormat:         "json",
		ShutdownTimeout:   "10s",
	}
}

// Load reads configuration. Precedence, low to high: defaults, the YAML file
// named by SEEDTIME_CONFIG, SEEDTIME_* environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// SEEDTIME_WORKER_COUNT -> worker_count
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	r := defaults()
	if err := k.UnmarshalWithConf("", &r, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := &Config{
		InputDir:         r.InputDir,
		InputFile:        r.InputFile,
		InputSuffix:      r.InputSuffix,
		OutputDir:        r.OutputDir,
		DropColumns:      stringList(k, "drop_columns", domain.DefaultDropColumns),
		WorkerCount:      r.WorkerCount,
		OracleBaseURL:    strings.TrimRight(r.OracleBaseURL, "/"),
		OracleCacheSize:  r.OracleCacheSize,
		WorkbookPath:     r.WorkbookPath,
		PublishBatchSize: r.PublishBatchSize,
		KafkaBrokers:     stringList(k, "kafka_brokers", nil),
		KafkaTopic:       r.KafkaTopic,
		PostgresDSN:      r.PostgresDSN,
		Schedule:         strings.TrimSpace(r.Schedule),
		WatchInput:       r.WatchInput,
		HTTPAddr:         r.HTTPAddr,
		LogLevel:         r.LogLevel,
		LogFormat:        r.LogFormat,
	}

	var err error
	if cfg.OracleTimeout, err = parsePositiveDuration("ORACLE_TIMEOUT", r.OracleTimeout); err != nil {
		return nil, err
	}
	if cfg.OracleSettleDelay, err = parseDuration("ORACLE_SETTLE_DELAY", r.OracleSettleDelay); err != nil {
		return nil, err
	}
	if cfg.WatchDebounce, err = parseDuration("WATCH_DEBOUNCE", r.WatchDebounce); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parsePositiveDuration("SHUTDOWN_TIMEOUT", r.ShutdownTimeout); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.InputFile == "" && c.InputDir == "" {
		return invalid("INPUT_FILE or INPUT_DIR is required")
	}
	if c.WorkerCount < 1 {
		return invalid("WORKER_COUNT must be at least 1")
	}
	if c.OracleBaseURL == "" {
		return invalid("ORACLE_BASE_URL is required")
	}
	if c.OracleCacheSize < 1 {
		return invalid("ORACLE_CACHE_SIZE must be at least 1")
	}
	if c.WorkbookPath == "" {
		return invalid("WORKBOOK_PATH is required")
	}
	if c.PublishBatchSize < 1 {
		return invalid("PUBLISH_BATCH_SIZE must be at least 1")
	}
	if c.KafkaEnabled() && c.KafkaTopic == "" {
		return invalid("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.Schedule != "" && c.WatchInput {
		return invalid("SCHEDULE and WATCH_INPUT are mutually exclusive")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s%s", ErrInvalidConfig, envPrefix, msg)
}

func parseDuration(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s%s %q", ErrInvalidConfig, envPrefix, name, s)
	}
	return d, nil
}

func parsePositiveDuration(name, s string) (time.Duration, error) {
	d, err := parseDuration(name, s)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("%w: %s%s must be positive", ErrInvalidConfig, envPrefix, name)
	}
	return d, nil
}

// stringList reads a list key given either as a YAML list or as a
// comma-separated string. Unset keys yield def.
func stringList(k *koanf.Koanf, key string, def []string) []string {
	if !k.Exists(key) {
		return append([]string(nil), def...)
	}
	if s, ok := k.Get(key).(string); ok {
		return sharedcfg.ParseBrokers(s)
	}
	// List items may themselves contain commas, so they are only trimmed.
	var out []string
	for _, item := range k.Strings(key) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

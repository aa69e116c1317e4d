package config

import (
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/locator"
	"github.com/Iron-Ham/streamledger/internal/logging"
	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/retry"
	"github.com/Iron-Ham/streamledger/internal/serializer"
	"github.com/Iron-Ham/streamledger/internal/stream"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

// EnvPrefix prefixes environment overrides, e.g. STREAMLEDGER_CONSUMER_WORKERS
// for consumer.workers.
const EnvPrefix = "STREAMLEDGER"

// Config represents the complete streamledger configuration
type Config struct {
	Stream   StreamConfig   `mapstructure:"stream"`
	Handling HandlingConfig `mapstructure:"handling"`
	Mutex    MutexConfig    `mapstructure:"mutex"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StreamConfig controls how a stream is built
type StreamConfig struct {
	// Name is the stream name (default: "default")
	Name string `mapstructure:"name"`
	// Partitions is the number of locators records are hashed across.
	// 1 keeps every record in a single partition (default: 1)
	Partitions int `mapstructure:"partitions"`
	// PartitionPrefix names the locators: "<prefix>" or "<prefix>-<n>" (default: "partition")
	PartitionPrefix string `mapstructure:"partition_prefix"`
	// Serializer is the default payload serializer: "json" or "yaml" (default: "json")
	Serializer string `mapstructure:"serializer"`
	// Format keeps payloads as "string" or "binary" (default: "string")
	Format string `mapstructure:"format"`
	// OnExisting is what create does to an existing stream: "throw", "overwrite", "skip" (default: "skip")
	OnExisting string `mapstructure:"on_existing"`
}

// HandlingConfig sets the defaults applied to claims and queries
type HandlingConfig struct {
	// Order is the claim order: "ascending", "descending", "random" (default: "ascending")
	Order string `mapstructure:"order"`
	// TagMatch is the tag match strategy for tag queries (default: "RecordContainsAllQueryTags")
	TagMatch string `mapstructure:"tag_match"`
	// VersionMatch is the type version match strategy: "any", "specifiedversion", "unversioned" (default: "any")
	VersionMatch string `mapstructure:"version_match"`
	// InheritRecordTags copies record tags onto handling entries (default: true)
	InheritRecordTags bool `mapstructure:"inherit_record_tags"`
}

// MutexConfig controls ledger-backed mutexes
type MutexConfig struct {
	// Concern is the ledger concern mutex claims use (default: "mutex")
	Concern string `mapstructure:"concern"`
	// PollingInterval is the sleep between WaitOne attempts (default: 100ms)
	PollingInterval time.Duration `mapstructure:"polling_interval"`
}

// RetryConfig controls retries of stream operations
type RetryConfig struct {
	// Attempts is the total number of calls including the first (default: 3)
	Attempts int `mapstructure:"attempts"`
	// Backoff is the fixed sleep between calls (default: 50ms)
	Backoff time.Duration `mapstructure:"backoff"`
}

// ConsumerConfig controls consumer runners
type ConsumerConfig struct {
	// Concern is the default consumer concern (default: "default")
	Concern string `mapstructure:"concern"`
	// Workers is the number of concurrent claim loops (default: 4)
	Workers int `mapstructure:"workers"`
	// PollInterval is the idle sleep of a long-running consumer (default: 250ms)
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxRetries is how often a failed record is reset for another claim (default: 2)
	MaxRetries int `mapstructure:"max_retries"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is the log file path. Empty logs to stderr (default: "")
	File string `mapstructure:"file"`
}

// Representation returns the default payload serializer.
func (c StreamConfig) Representation() (serializer.Representation, error) {
	return serializer.ParseRepresentation(c.Serializer, c.Format)
}

// ExistingStrategy returns the strategy used when creating the stream.
func (c StreamConfig) ExistingStrategy() (stream.ExistingStreamStrategy, error) {
	return stream.ParseExistingStreamStrategy(c.OnExisting)
}

// Resolver returns the locator resolver for the configured partitioning.
func (c StreamConfig) Resolver() (locator.Resolver, error) {
	if c.Partitions <= 1 {
		return locator.NewSingleResolver(c.PartitionPrefix), nil
	}
	return locator.NewHashResolver(c.PartitionPrefix, c.Partitions)
}

// OrderBy returns the parsed claim order.
func (c HandlingConfig) OrderBy() (record.OrderBy, error) {
	return record.ParseOrderBy(c.Order)
}

// TagMatchStrategy returns the parsed tag match strategy.
func (c HandlingConfig) TagMatchStrategy() (record.TagMatchStrategy, error) {
	return record.ParseTagMatchStrategy(c.TagMatch)
}

// VersionMatchStrategy returns the parsed version match strategy.
func (c HandlingConfig) VersionMatchStrategy() (typerep.VersionMatchStrategy, error) {
	return typerep.ParseVersionMatchStrategy(c.VersionMatch)
}

// Policy returns the retry policy, logging through logger.
func (c RetryConfig) Policy(logger *logging.Logger) retry.Policy {
	return retry.Policy{Attempts: c.Attempts, Backoff: c.Backoff, Logger: logger}
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Stream: StreamConfig{
			Name:            "default",
			Partitions:      1,
			PartitionPrefix: "partition",
			Serializer:      string(serializer.KindJSON),
			Format:          string(serializer.FormatString),
			OnExisting:      "skip",
		},
		Handling: HandlingConfig{
			Order:             "ascending",
			TagMatch:          record.RecordContainsAllQueryTags.String(),
			VersionMatch:      "any",
			InheritRecordTags: true,
		},
		Mutex: MutexConfig{
			Concern:         "mutex",
			PollingInterval: 100 * time.Millisecond,
		},
		Retry: RetryConfig{
			Attempts: 3,
			Backoff:  50 * time.Millisecond,
		},
		Consumer: ConsumerConfig{
			Concern:      "default",
			Workers:      4,
			PollInterval: 250 * time.Millisecond,
			MaxRetries:   2,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// SetDefaults registers default values with the global viper instance
func SetDefaults() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	// Stream defaults
	v.SetDefault("stream.name", defaults.Stream.Name)
	v.SetDefault("stream.partitions", defaults.Stream.Partitions)
	v.SetDefault("stream.partition_prefix", defaults.Stream.PartitionPrefix)
	v.SetDefault("stream.serializer", defaults.Stream.Serializer)
	v.SetDefault("stream.format", defaults.Stream.Format)
	v.SetDefault("stream.on_existing", defaults.Stream.OnExisting)

	// Handling defaults
	v.SetDefault("handling.order", defaults.Handling.Order)
	v.SetDefault("handling.tag_match", defaults.Handling.TagMatch)
	v.SetDefault("handling.version_match", defaults.Handling.VersionMatch)
	v.SetDefault("handling.inherit_record_tags", defaults.Handling.InheritRecordTags)

	// Mutex defaults
	v.SetDefault("mutex.concern", defaults.Mutex.Concern)
	v.SetDefault("mutex.polling_interval", defaults.Mutex.PollingInterval)

	// Retry defaults
	v.SetDefault("retry.attempts", defaults.Retry.Attempts)
	v.SetDefault("retry.backoff", defaults.Retry.Backoff)

	// Consumer defaults
	v.SetDefault("consumer.concern", defaults.Consumer.Concern)
	v.SetDefault("consumer.workers", defaults.Consumer.Workers)
	v.SetDefault("consumer.poll_interval", defaults.Consumer.PollInterval)
	v.SetDefault("consumer.max_retries", defaults.Consumer.MaxRetries)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
}

// ConfigureEnv makes v honor STREAMLEDGER_* environment overrides.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., STREAMLEDGER_CONSUMER_MAX_RETRIES for consumer.max_retries
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// decodeHook turns duration strings such as "250ms" into time.Duration and
// trims surrounding whitespace from string values.
func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		trimSpaceHook,
	))
}

func trimSpaceHook(_, to reflect.Type, data any) (any, error) {
	if s, ok := data.(string); ok && to.Kind() == reflect.String {
		return strings.TrimSpace(s), nil
	}
	return data, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Load reads the configuration from the global viper instance into a Config
// struct and validates it
func Load() (*Config, error) {
	return decode(viper.GetViper())
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// New returns a viper instance over fs with defaults and environment
// overrides registered.
func New(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)
	ConfigureEnv(v)
	return v
}

// LoadFile reads and validates the config file at path on fs.
func LoadFile(fs afero.Fs, path string) (*Config, error) {
	v := New(fs)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return decode(v)
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	slices.Sort(keys)
	return keys
}

// SetValue writes key=value into the config file at path on fs, creating the
// file if needed. The value is coerced to the type of the key's default and
// the resulting configuration must validate.
func SetValue(fs afero.Fs, path, key, value string) (any, error) {
	if !slices.Contains(Keys(), key) {
		return nil, errors.NewValidationError("unknown configuration key").WithField(key)
	}
	defaults := viper.New()
	setDefaults(defaults)

	var (
		typed any
		err   error
	)
	switch defaults.Get(key).(type) {
	case bool:
		typed, err = cast.ToBoolE(value)
	case int:
		typed, err = cast.ToIntE(value)
	case time.Duration:
		typed, err = cast.ToDurationE(value)
	default:
		typed, err = cast.ToStringE(value)
	}
	if err != nil {
		return nil, errors.NewValidationError("invalid value").WithField(key).WithValue(value).WithCause(err)
	}

	v := New(fs)
	v.SetConfigFile(path)
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if exists {
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	v.Set(key, typed)
	if _, err := decode(v); err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create config directory")
	}
	if err := v.WriteConfigAs(path); err != nil {
		return nil, errors.Wrapf(err, "write config %s", path)
	}
	return typed, nil
}

// WriteDefaultFile writes a commented default config file to path on fs.
// An existing file is an error.
func WriteDefaultFile(fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if exists {
		return errors.NewAlreadyExistsError("config file", path)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	return afero.WriteFile(fs, path, []byte(DefaultFileContent), 0o644)
}

// DefaultFileContent is the file written by WriteDefaultFile.
const DefaultFileContent = `# streamledger configuration

stream:
  # Stream name
  name: default
  # Number of partitions records are hashed across (1 = single partition)
  partitions: 1
  partition_prefix: partition
  # Payload serializer: json, yaml
  serializer: json
  # Payload format: string, binary
  format: string
  # What create does to an existing stream: throw, overwrite, skip
  on_existing: skip

handling:
  # Claim order: ascending, descending, random
  order: ascending
  # RecordContainsAllQueryTags, RecordContainsAnyQueryTag, RecordContainsExactlyQueryTags, Glob
  tag_match: RecordContainsAllQueryTags
  # any, specifiedversion, unversioned
  version_match: any
  inherit_record_tags: true

mutex:
  concern: mutex
  polling_interval: 100ms

retry:
  attempts: 3
  backoff: 50ms

consumer:
  concern: default
  workers: 4
  poll_interval: 250ms
  max_retries: 2

logging:
  # debug, info, warn, error
  level: info
  # Empty logs to stderr
  file: ""
`

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "streamledger")
	}
	// Fall back to ~/.config/streamledger
	home, err := os.UserHomeDir()
	if err != nil {
		return ".streamledger"
	}
	return filepath.Join(home, ".config", "streamledger")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Settings returns the configuration as nested maps keyed like the config
// file, with durations rendered as strings.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"stream": map[string]any{
			"name":             c.Stream.Name,
			"partitions":       c.Stream.Partitions,
			"partition_prefix": c.Stream.PartitionPrefix,
			"serializer":       c.Stream.Serializer,
			"format":           c.Stream.Format,
			"on_existing":      c.Stream.OnExisting,
		},
		"handling": map[string]any{
			"order":               c.Handling.Order,
			"tag_match":           c.Handling.TagMatch,
			"version_match":       c.Handling.VersionMatch,
			"inherit_record_tags": c.Handling.InheritRecordTags,
		},
		"mutex": map[string]any{
			"concern":          c.Mutex.Concern,
			"polling_interval": c.Mutex.PollingInterval.String(),
		},
		"retry": map[string]any{
			"attempts": c.Retry.Attempts,
			"backoff":  c.Retry.Backoff.String(),
		},
		"consumer": map[string]any{
			"concern":       c.Consumer.Concern,
			"workers":       c.Consumer.Workers,
			"poll_interval": c.Consumer.PollInterval.String(),
			"max_retries":   c.Consumer.MaxRetries,
		},
		"logging": map[string]any{
			"level": c.Logging.Level,
			"file":  c.Logging.File,
		},
	}
}

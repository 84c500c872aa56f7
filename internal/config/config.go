package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "OBJECT_INDEX"

	DefaultRegion             = "us-east-1"
	DefaultBackend            = BackendDynamoDB
	DefaultWriteStrategy      = WriteStrategyReadThenWrite
	DefaultMaxConflictRetries = 3
	DefaultErrorPolicy        = ErrorPolicySwallow
	DefaultLogLevel           = "info"
	DefaultListenAddress      = "0.0.0.0:8080"
)

// Index Store backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendPebble   = "pebble"
	BackendMemory   = "memory"
)

// Write strategies for upserts.
const (
	WriteStrategyReadThenWrite = "read_then_write"
	WriteStrategyConditional   = "conditional"
)

// Error policies at the invocation boundary.
const (
	ErrorPolicySwallow   = "swallow"
	ErrorPolicyPropagate = "propagate"
)

var ErrUnknownBackend = errors.New("unknown index store backend")

var DefaultConfig = Config{
	Region:             DefaultRegion,
	Backend:            DefaultBackend,
	WriteStrategy:      DefaultWriteStrategy,
	MaxConflictRetries: DefaultMaxConflictRetries,
	ErrorPolicy:        DefaultErrorPolicy,
	LogLevel:           DefaultLogLevel,
	ListenAddress:      DefaultListenAddress,
}

// Config is read once at process start and never modified afterwards.
type Config struct {
	TableName          string        `json:"table_name,omitempty"           mapstructure:"table_name"`
	Region             string        `json:"region,omitempty"               mapstructure:"region"`
	Endpoint           string        `json:"endpoint,omitempty"             mapstructure:"endpoint"`
	Backend            string        `json:"backend,omitempty"              mapstructure:"backend"`
	PostgresURL        string        `json:"-"                              mapstructure:"postgres_url"`
	PebbleDir          string        `json:"pebble_dir,omitempty"           mapstructure:"pebble_dir"`
	WriteStrategy      string        `json:"write_strategy,omitempty"       mapstructure:"write_strategy"`
	MaxConflictRetries int           `json:"max_conflict_retries,omitempty" mapstructure:"max_conflict_retries"`
	ErrorPolicy        string        `json:"error_policy,omitempty"         mapstructure:"error_policy"`
	LogLevel           string        `json:"log_level,omitempty"            mapstructure:"log_level"`
	ListenAddress      string        `json:"listen_address,omitempty"       mapstructure:"listen_address"`
	StoreTimeout       time.Duration `json:"store_timeout,omitempty"        mapstructure:"store_timeout"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	return Load(nil)
}

// Load reads the configuration from the environment and, when flags is not
// nil, from command line flags named after the keys with dashes
// ("table-name"). Flags that were set win over the environment.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	// Plain TABLE_NAME and REGION are what the function was deployed with.
	_ = v.BindEnv("table_name", "OBJECT_INDEX_TABLE_NAME", "TABLE_NAME")
	v.SetDefault("table_name", "")

	_ = v.BindEnv("region", "OBJECT_INDEX_REGION", "REGION", "AWS_REGION")
	v.SetDefault("region", DefaultRegion)

	_ = v.BindEnv("endpoint")
	v.SetDefault("endpoint", "")

	_ = v.BindEnv("backend")
	v.SetDefault("backend", DefaultBackend)

	_ = v.BindEnv("postgres_url")
	v.SetDefault("postgres_url", "")

	_ = v.BindEnv("pebble_dir")
	v.SetDefault("pebble_dir", "")

	_ = v.BindEnv("write_strategy")
	v.SetDefault("write_strategy", DefaultWriteStrategy)

	_ = v.BindEnv("max_conflict_retries")
	v.SetDefault("max_conflict_retries", DefaultMaxConflictRetries)

	_ = v.BindEnv("error_policy")
	v.SetDefault("error_policy", DefaultErrorPolicy)

	_ = v.BindEnv("log_level")
	v.SetDefault("log_level", DefaultLogLevel)

	_ = v.BindEnv("listen_address")
	v.SetDefault("listen_address", DefaultListenAddress)

	_ = v.BindEnv("store_timeout")
	v.SetDefault("store_timeout", "0s")

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !isKnownKey(key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	// Load configuration into struct
	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	config := &Config{}
	if err := v.Unmarshal(config, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Backend = strings.ToLower(config.Backend)
	config.WriteStrategy = strings.ToLower(config.WriteStrategy)
	config.ErrorPolicy = strings.ToLower(config.ErrorPolicy)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDynamoDB:
		if c.TableName == "" {
			return errors.New("table_name is required for the dynamodb backend")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return errors.New("postgres_url is required for the postgres backend")
		}
	case BackendPebble:
		if c.PebbleDir == "" {
			return errors.New("pebble_dir is required for the pebble backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	switch c.WriteStrategy {
	case WriteStrategyReadThenWrite, WriteStrategyConditional:
	default:
		return fmt.Errorf("unknown write_strategy %q", c.WriteStrategy)
	}

	switch c.ErrorPolicy {
	case ErrorPolicySwallow, ErrorPolicyPropagate:
	default:
		return fmt.Errorf("unknown error_policy %q", c.ErrorPolicy)
	}

	if c.MaxConflictRetries < 0 {
		return fmt.Errorf("max_conflict_retries must not be negative, got %d", c.MaxConflictRetries)
	}

	if c.StoreTimeout < 0 {
		return fmt.Errorf("store_timeout must not be negative, got %s", c.StoreTimeout)
	}

	return nil
}

func isKnownKey(key string) bool {
	switch key {
	case "table_name", "region", "endpoint", "backend", "postgres_url", "pebble_dir",
		"write_strategy", "max_conflict_retries", "error_policy", "log_level",
		"listen_address", "store_timeout":
		return true
	}
	return false
}

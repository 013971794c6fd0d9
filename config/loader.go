package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Pyramid-Systems-Inc/Myriad-Mind-sub001/types"
)

// Config is the complete configuration of the routing engine.
type Config struct {
	// Server is the HTTP server configuration.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Store selects and configures the capability store backend.
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database configures the SQL backend.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Routing configures discovery and the intent allow-list.
	Routing RoutingConfig `yaml:"routing" env:"ROUTING"`

	// Reinforce configures the weight update engine.
	Reinforce ReinforceConfig `yaml:"reinforce" env:"REINFORCE"`

	// Dispatch configures batch processing and the agent client.
	Dispatch DispatchConfig `yaml:"dispatch" env:"DISPATCH"`

	// Neurogenesis configures graph expansion.
	Neurogenesis NeurogenesisConfig `yaml:"neurogenesis" env:"NEUROGENESIS"`

	// Log is the logging configuration.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Agents are seeded into the store at startup.
	Agents []SeedAgent `yaml:"agents" env:"-"`
}

// ServerConfig is the HTTP server configuration.
type ServerConfig struct {
	// HTTP port
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics port
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// StoreConfig selects the capability store backend.
type StoreConfig struct {
	// Backend: memory, redis, database
	Backend string `yaml:"backend" env:"BACKEND"`
}

// RedisConfig is the redis backend configuration.
type RedisConfig struct {
	// Address
	Addr string `yaml:"addr" env:"ADDR"`
	// Password
	Password string `yaml:"password" env:"PASSWORD"`
	// Database number
	DB int `yaml:"db" env:"DB"`
	// Connection pool size
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// Minimum idle connections
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// Key prefix
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig is the SQL backend configuration.
type DatabaseConfig struct {
	// Driver: sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN, e.g. a file path for sqlite
	DSN string `yaml:"dsn" env:"DSN"`
	// Maximum open connections
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// Maximum idle connections
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// Connection max lifetime
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RoutingConfig controls discovery.
type RoutingConfig struct {
	// Admission threshold for agent selection
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
	// Intent allow-list; empty means the built-in default set
	Intents []string `yaml:"intents" env:"INTENTS"`
}

// ReinforceConfig controls the weight update engine.
type ReinforceConfig struct {
	// Hebbian step size
	LearningRate float64 `yaml:"learning_rate" env:"LEARNING_RATE"`
	// Weight floor decay never crosses
	DecayFloor float64 `yaml:"decay_floor" env:"DECAY_FLOOR"`
	// Number of per-edge lock stripes
	LockStripes int `yaml:"lock_stripes" env:"LOCK_STRIPES"`
}

// DispatchConfig controls batch processing and the agent client.
type DispatchConfig struct {
	// Concurrent task cap per batch
	MaxWorkers int `yaml:"max_workers" env:"MAX_WORKERS"`
	// Whole-batch deadline
	BatchTimeout time.Duration `yaml:"batch_timeout" env:"BATCH_TIMEOUT"`
	// Per-attempt agent call timeout
	AgentTimeout time.Duration `yaml:"agent_timeout" env:"AGENT_TIMEOUT"`
	// Retry bound for transport faults
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// Initial retry backoff
	RetryDelay time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
}

// NeurogenesisConfig controls graph expansion.
type NeurogenesisConfig struct {
	// Enabled toggles expansion; disabled misses fail the task
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Minimum confidence before the graph is mutated
	CreationThreshold float64 `yaml:"creation_threshold" env:"CREATION_THRESHOLD"`
	// Confidence formula terms
	BaseConfidence float64 `yaml:"base_confidence" env:"BASE_CONFIDENCE"`
	SourceWeight   float64 `yaml:"source_weight" env:"SOURCE_WEIGHT"`
	MaxConfidence  float64 `yaml:"max_confidence" env:"MAX_CONFIDENCE"`
	// Discount applied to transferred weights
	TransferFactor float64 `yaml:"transfer_factor" env:"TRANSFER_FACTOR"`
	// Hard ceiling on one expansion session
	SessionTimeout time.Duration `yaml:"session_timeout" env:"SESSION_TIMEOUT"`
	// Source lookup cap per session
	MaxSources int `yaml:"max_sources" env:"MAX_SOURCES"`
	// Source lookups per second; 0 disables rate limiting
	SourceRateLimit float64 `yaml:"source_rate_limit" env:"SOURCE_RATE_LIMIT"`
	SourceRateBurst int     `yaml:"source_rate_burst" env:"SOURCE_RATE_BURST"`
	// Knowledge corpus file; empty means an empty corpus
	CorpusPath string `yaml:"corpus_path" env:"CORPUS_PATH"`
	// Provisioner service endpoint; empty disables provisioning
	ProvisionerEndpoint string `yaml:"provisioner_endpoint" env:"PROVISIONER_ENDPOINT"`
	// Per-call provisioner timeout
	ProvisionerTimeout time.Duration `yaml:"provisioner_timeout" env:"PROVISIONER_TIMEOUT"`
}

// LogConfig is the logging configuration.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// Annotate entries with caller info
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// Attach stacktraces to error-level entries
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// SeedAgent is an agent registered at startup.
type SeedAgent struct {
	Name      string            `yaml:"name"`
	Endpoint  string            `yaml:"endpoint"`
	Type      types.AgentType   `yaml:"agent_type"`
	IntentMap map[string]string `yaml:"intent_map"`
}

// Loader loads configuration with a builder interface.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "MYRIAD",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a validation hook run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the configuration. Precedence: defaults, then YAML file, then
// environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration values accept Go duration syntax
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// comma-separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads the configuration and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	switch c.Store.Backend {
	case "memory", "redis", "database":
	default:
		errs = append(errs, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if c.Routing.MinConfidence < 0 || c.Routing.MinConfidence > 1 {
		errs = append(errs, "min_confidence must be in [0, 1]")
	}
	if c.Reinforce.LearningRate <= 0 || c.Reinforce.LearningRate >= 1 {
		errs = append(errs, "learning_rate must be in (0, 1)")
	}
	if c.Neurogenesis.CreationThreshold < 0 || c.Neurogenesis.CreationThreshold > 1 {
		errs = append(errs, "creation_threshold must be in [0, 1]")
	}
	for i, agent := range c.Agents {
		if agent.Name == "" || agent.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("seed agent %d missing name or endpoint", i))
			continue
		}
		if !types.ValidAgentType(agent.Type) {
			errs = append(errs, fmt.Sprintf("seed agent %q has unknown type %q", agent.Name, agent.Type))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

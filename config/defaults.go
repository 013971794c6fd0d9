package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Store:        DefaultStoreConfig(),
		Redis:        DefaultRedisConfig(),
		Database:     DefaultDatabaseConfig(),
		Routing:      DefaultRoutingConfig(),
		Reinforce:    DefaultReinforceConfig(),
		Dispatch:     DefaultDispatchConfig(),
		Neurogenesis: DefaultNeurogenesisConfig(),
		Log:          DefaultLogConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultStoreConfig returns the default store selection.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Backend: "memory",
	}
}

// DefaultRedisConfig returns the default redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "myriad:",
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		DSN:             "myriad.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRoutingConfig returns the default routing configuration.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		MinConfidence: 0.3,
	}
}

// DefaultReinforceConfig returns the default reinforcement configuration.
func DefaultReinforceConfig() ReinforceConfig {
	return ReinforceConfig{
		LearningRate: 0.1,
		DecayFloor:   0.05,
		LockStripes:  64,
	}
}

// DefaultDispatchConfig returns the default dispatch configuration.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		MaxWorkers:   8,
		BatchTimeout: 30 * time.Second,
		AgentTimeout: 10 * time.Second,
		MaxRetries:   1,
		RetryDelay:   200 * time.Millisecond,
	}
}

// DefaultNeurogenesisConfig returns the default expansion configuration.
func DefaultNeurogenesisConfig() NeurogenesisConfig {
	return NeurogenesisConfig{
		Enabled:            true,
		CreationThreshold:  0.5,
		BaseConfidence:     0.3,
		SourceWeight:       0.2,
		MaxConfidence:      0.9,
		TransferFactor:     0.8,
		SessionTimeout:     30 * time.Second,
		MaxSources:         5,
		SourceRateLimit:    5,
		SourceRateBurst:    10,
		ProvisionerTimeout: 15 * time.Second,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

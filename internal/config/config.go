package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Vectorizer VectorizerConfig `mapstructure:"vectorizer"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port                int    `mapstructure:"port"`
	MetricsPort         int    `mapstructure:"metrics_port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	ConfigToken         string `mapstructure:"config_token"`
}

type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr                string `mapstructure:"addr"`
	Password            string `mapstructure:"password"`
	DB                  int    `mapstructure:"db"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
	MaxRetries          int    `mapstructure:"max_retries"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type VectorizerConfig struct {
	Dimension int    `mapstructure:"dimension"`
	ModelName string `mapstructure:"model_name"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return defaultConfig(), nil
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("VECTORSTORED")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8007)
	viper.SetDefault("server.metrics_port", 9090)
	viper.SetDefault("server.read_timeout_seconds", 30)
	viper.SetDefault("server.write_timeout_seconds", 30)

	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("storage.redis.addr", "localhost:6379")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.pool_size", 100)
	viper.SetDefault("storage.redis.min_idle_conns", 10)
	viper.SetDefault("storage.redis.max_retries", 3)
	viper.SetDefault("storage.redis.dial_timeout_seconds", 5)
	viper.SetDefault("storage.redis.read_timeout_seconds", 3)
	viper.SetDefault("storage.redis.write_timeout_seconds", 3)

	viper.SetDefault("vectorizer.dimension", 384)
	viper.SetDefault("vectorizer.model_name", "hash-embedder-384")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.namespace", "vectorstored")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                8007,
			MetricsPort:         9090,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:                "localhost:6379",
				DB:                  0,
				PoolSize:            100,
				MinIdleConns:        10,
				MaxRetries:          3,
				DialTimeoutSeconds:  5,
				ReadTimeoutSeconds:  3,
				WriteTimeoutSeconds: 3,
			},
		},
		Vectorizer: VectorizerConfig{
			Dimension: 384,
			ModelName: "hash-embedder-384",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "vectorstored",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if c.Storage.Backend != "memory" && c.Storage.Backend != "redis" {
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Storage.Backend == "redis" && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("redis address is required for the redis backend")
	}

	if c.Vectorizer.Dimension <= 0 {
		return fmt.Errorf("vectorizer dimension must be positive")
	}

	return nil
}

// View returns the shape served by the service's config command.
func (c *Config) View() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"port":         c.Server.Port,
			"metrics_port": c.Server.MetricsPort,
		},
		"storage": map[string]any{
			"backend": c.Storage.Backend,
		},
		"vectorizer": map[string]any{
			"dimension":  c.Vectorizer.Dimension,
			"model_name": c.Vectorizer.ModelName,
		},
		"logging": map[string]any{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
		},
	}
}

// Package config loads the cluster manager's environment-variable
// configuration surface, with an optional YAML file providing overrides
// (spec.md §6, expanded to support a config file).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the control plane's fully resolved configuration.
type Config struct {
	RedisHostname string `yaml:"redis_hostname"`
	RedisPort     int    `yaml:"redis_port"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPassword string `yaml:"redis_password"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	ClusterTimeout    time.Duration `yaml:"-"`
	ReconcileInterval time.Duration `yaml:"-"`
	ShutdownGrace     time.Duration `yaml:"-"`

	DockerHost string `yaml:"docker_host"`

	// raw seconds fields, populated from env/yaml before conversion to the
	// time.Duration fields above.
	clusterTimeoutSeconds   int
	reconcileIntervalSeconds int
	shutdownGraceSeconds     int
}

// RedisAddr returns the host:port pair used to dial Redis.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHostname, c.RedisPort)
}

// Load resolves configuration from environment variables (spec.md §6),
// applying the defaults for anything unset. If CLUSTER_MANAGER_CONFIG
// names a readable file, its values are applied first and environment
// variables override them.
func Load() (*Config, error) {
	cfg := &Config{
		RedisHostname:            "redis",
		RedisPort:                6379,
		RedisDB:                  0,
		LogLevel:                 "INFO",
		clusterTimeoutSeconds:    900,
		reconcileIntervalSeconds: 60,
		shutdownGraceSeconds:     5,
	}

	if path := os.Getenv("CLUSTER_MANAGER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	cfg.ClusterTimeout = time.Duration(cfg.clusterTimeoutSeconds) * time.Second
	cfg.ReconcileInterval = time.Duration(cfg.reconcileIntervalSeconds) * time.Second
	cfg.ShutdownGrace = time.Duration(cfg.shutdownGraceSeconds) * time.Second

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fileCfg struct {
		RedisHostname     string `yaml:"redis_hostname"`
		RedisPort         int    `yaml:"redis_port"`
		RedisDB           int    `yaml:"redis_db"`
		RedisPassword     string `yaml:"redis_password"`
		LogLevel          string `yaml:"log_level"`
		LogFile           string `yaml:"log_file"`
		DockerHost        string `yaml:"docker_host"`
		ClusterTimeout    int    `yaml:"cluster_timeout"`
		ReconcileInterval int    `yaml:"reconcile_interval"`
		ShutdownGrace     int    `yaml:"shutdown_grace"`
	}
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fileCfg.RedisHostname != "" {
		c.RedisHostname = fileCfg.RedisHostname
	}
	if fileCfg.RedisPort != 0 {
		c.RedisPort = fileCfg.RedisPort
	}
	if fileCfg.RedisDB != 0 {
		c.RedisDB = fileCfg.RedisDB
	}
	if fileCfg.RedisPassword != "" {
		c.RedisPassword = fileCfg.RedisPassword
	}
	if fileCfg.LogLevel != "" {
		c.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogFile != "" {
		c.LogFile = fileCfg.LogFile
	}
	if fileCfg.DockerHost != "" {
		c.DockerHost = fileCfg.DockerHost
	}
	if fileCfg.ClusterTimeout != 0 {
		c.clusterTimeoutSeconds = fileCfg.ClusterTimeout
	}
	if fileCfg.ReconcileInterval != 0 {
		c.reconcileIntervalSeconds = fileCfg.ReconcileInterval
	}
	if fileCfg.ShutdownGrace != 0 {
		c.shutdownGraceSeconds = fileCfg.ShutdownGrace
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv("REDIS_HOSTNAME"); v != "" {
		c.RedisHostname = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_PORT: %w", err)
		}
		c.RedisPort = n
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("DOCKER_HOST"); v != "" {
		c.DockerHost = v
	}
	if v := os.Getenv("CLUSTER_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: CLUSTER_TIMEOUT: %w", err)
		}
		c.clusterTimeoutSeconds = n
	}
	if v := os.Getenv("RECONCILE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RECONCILE_INTERVAL: %w", err)
		}
		c.reconcileIntervalSeconds = n
	}
	if v := os.Getenv("SHUTDOWN_GRACE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SHUTDOWN_GRACE: %w", err)
		}
		c.shutdownGraceSeconds = n
	}
	return nil
}

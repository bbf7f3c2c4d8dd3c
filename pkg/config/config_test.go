package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLUSTER_MANAGER_CONFIG", "REDIS_HOSTNAME", "REDIS_PORT", "REDIS_DB",
		"REDIS_PASSWORD", "LOG_LEVEL", "LOG_FILE", "DOCKER_HOST",
		"CLUSTER_TIMEOUT", "RECONCILE_INTERVAL", "SHUTDOWN_GRACE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisAddr() != "redis:6379" {
		t.Errorf("RedisAddr() = %q, want redis:6379", cfg.RedisAddr())
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("LogLevel = %q, want INFO", cfg.LogLevel)
	}
	if cfg.ClusterTimeout.Seconds() != 900 {
		t.Errorf("ClusterTimeout = %v, want 900s", cfg.ClusterTimeout)
	}
	if cfg.ReconcileInterval.Seconds() != 60 {
		t.Errorf("ReconcileInterval = %v, want 60s", cfg.ReconcileInterval)
	}
	if cfg.ShutdownGrace.Seconds() != 5 {
		t.Errorf("ShutdownGrace = %v, want 5s", cfg.ShutdownGrace)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_HOSTNAME", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CLUSTER_TIMEOUT", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisAddr() != "cache.internal:6380" {
		t.Errorf("RedisAddr() = %q, want cache.internal:6380", cfg.RedisAddr())
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", cfg.RedisDB)
	}
	if cfg.ClusterTimeout.Seconds() != 120 {
		t.Errorf("ClusterTimeout = %v, want 120s", cfg.ClusterTimeout)
	}
}

func TestLoadRejectsMalformedInt(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("Load: expected an error for malformed REDIS_PORT")
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := dir + "/config.yaml"
	contents := "redis_hostname: file-redis\nredis_port: 7000\ncluster_timeout: 300\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("CLUSTER_MANAGER_CONFIG", path)
	t.Setenv("REDIS_PORT", "7001") // env overrides file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisHostname != "file-redis" {
		t.Errorf("RedisHostname = %q, want file-redis", cfg.RedisHostname)
	}
	if cfg.RedisPort != 7001 {
		t.Errorf("RedisPort = %d, want 7001 (env override)", cfg.RedisPort)
	}
	if cfg.ClusterTimeout.Seconds() != 300 {
		t.Errorf("ClusterTimeout = %v, want 300s (from file)", cfg.ClusterTimeout)
	}
}

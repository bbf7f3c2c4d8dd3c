//go:build integration

// Package testutil provides test helpers for integration tests that need a
// real Redis instance.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisAddr returns the address of the test Redis instance, overridden by
// CLUSTERMGR_TEST_REDIS_ADDR, defaulting to localhost:6379.
func RedisAddr() string {
	if addr := os.Getenv("CLUSTERMGR_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return "127.0.0.1:6379"
}

// RequireRedis fails the test immediately if the test Redis instance is not
// reachable.
func RequireRedis(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: RedisAddr()})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("test Redis not reachable at %s: %v", RedisAddr(), err)
	}
}

// FlushDB flushes the given logical database on the test Redis instance,
// used to isolate each test from whatever a previous one left behind.
func FlushDB(t *testing.T, db int) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: RedisAddr(), DB: db})
	defer client.Close()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing test DB %d: %v", db, err)
	}
}

// Context returns a context with a generous timeout, cancelled automatically
// at test cleanup.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

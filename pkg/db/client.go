package db

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Options configures a Gateway connection, sourced from the Redis
// environment variables the control plane loads at startup (spec.md §6).
type Options struct {
	Addr     string
	DB       int
	Password string
}

// Gateway is the control plane's sole point of contact with Redis: every
// entity accessor in this package is built on its generic field helpers.
// Keeping the field-level primitives in one place means the notification
// key shape ("{Type}:{id}:{field}") only has to be gotten right once.
type Gateway struct {
	rdb *redis.Client
	db  int
}

// NewGateway dials Redis and verifies connectivity with a PING.
func NewGateway(ctx context.Context, opts Options) (*Gateway, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("db: connect to %s: %w", opts.Addr, err)
	}
	return &Gateway{rdb: rdb, db: opts.DB}, nil
}

// DBIndex returns the logical Redis database this Gateway is bound to, used
// to build keyspace-notification subscription patterns.
func (g *Gateway) DBIndex() int {
	return g.db
}

// Client exposes the underlying redis client for components that need it
// directly, such as the keyspace-notification subscriber.
func (g *Gateway) Client() *redis.Client {
	return g.rdb
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.rdb.Close()
}

// getString reads a single field key, returning ok=false if it is unset.
func (g *Gateway) getString(ctx context.Context, key string) (string, bool, error) {
	val, err := g.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// setString writes a single field key, optionally with a TTL.
func (g *Gateway) setString(ctx context.Context, key, val string, ttl time.Duration) error {
	return g.rdb.Set(ctx, key, val, ttl).Err()
}

// delKeys removes one or more keys; missing keys are not an error.
func (g *Gateway) delKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return g.rdb.Del(ctx, keys...).Err()
}

// existsKey reports whether a key is currently set.
func (g *Gateway) existsKey(ctx context.Context, key string) (bool, error) {
	n, err := g.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// expireKey sets a key's remaining TTL.
func (g *Gateway) expireKey(ctx context.Context, key string, ttl time.Duration) error {
	return g.rdb.Expire(ctx, key, ttl).Err()
}

// updateFields writes multiple field keys atomically in a single MULTI/EXEC
// transaction, so a caller updating several fields of one entity never
// leaves the notification stream showing a half-written state.
func (g *Gateway) updateFields(ctx context.Context, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := g.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, val := range fields {
			pipe.Set(ctx, key, val, 0)
		}
		return nil
	})
	return err
}

// addToSet adds members to a Redis set key.
func (g *Gateway) addToSet(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	return g.rdb.SAdd(ctx, key, vals...).Err()
}

// removeFromSet removes members from a Redis set key.
func (g *Gateway) removeFromSet(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	return g.rdb.SRem(ctx, key, vals...).Err()
}

// setMembers returns all members of a Redis set key.
func (g *Gateway) setMembers(ctx context.Context, key string) ([]string, error) {
	return g.rdb.SMembers(ctx, key).Result()
}

// isSetMember reports whether a value is a member of a Redis set key.
func (g *Gateway) isSetMember(ctx context.Context, key, member string) (bool, error) {
	return g.rdb.SIsMember(ctx, key, member).Result()
}

// setCardinality returns the number of members in a Redis set key, used to
// decide whether a Cluster still has any live Connections without tracking a
// separate status field (spec.md §9(c)).
func (g *Gateway) setCardinality(ctx context.Context, key string) (int64, error) {
	return g.rdb.SCard(ctx, key).Result()
}

// hGetField reads one field of a Redis hash key, returning ok=false if the
// field is unset. Used for the Vpn.links hash (vlan -> link state).
func (g *Gateway) hGetField(ctx context.Context, key, field string) (string, bool, error) {
	val, err := g.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// hSetField writes one field of a Redis hash key.
func (g *Gateway) hSetField(ctx context.Context, key, field, val string) error {
	return g.rdb.HSet(ctx, key, field, val).Err()
}

// hDelField removes one field of a Redis hash key.
func (g *Gateway) hDelField(ctx context.Context, key, field string) error {
	return g.rdb.HDel(ctx, key, field).Err()
}

// hGetAll returns every field of a Redis hash key.
func (g *Gateway) hGetAll(ctx context.Context, key string) (map[string]string, error) {
	return g.rdb.HGetAll(ctx, key).Result()
}

// lRange returns every element of a Redis list key, in order.
func (g *Gateway) lRange(ctx context.Context, key string) ([]string, error) {
	return g.rdb.LRange(ctx, key, 0, -1).Result()
}

// scanKeys returns every key matching pattern via a cursor-based SCAN,
// avoiding the single-command blocking of KEYS on a large keyspace.
func (g *Gateway) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := g.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	return keys, nil
}

// rPushMissing appends any of vals not already present in the list key,
// preserving their relative order, so repeated calls with overlapping
// inputs idempotently converge on the same final list.
func (g *Gateway) rPushMissing(ctx context.Context, key string, vals ...string) error {
	existing, err := g.lRange(ctx, key)
	if err != nil && err != redis.Nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	var toAdd []interface{}
	for _, v := range vals {
		if !seen[v] {
			toAdd = append(toAdd, v)
			seen[v] = true
		}
	}
	if len(toAdd) == 0 {
		return nil
	}
	return g.rdb.RPush(ctx, key, toAdd...).Err()
}

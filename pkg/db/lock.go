package db

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/naumachia-labs/clustermanager/pkg/util"
)

// Default lease durations for the two lockable entity types (spec.md §4.1,
// §9(a)): long enough to cover a Compose invocation (Cluster) or a handful
// of ip/brctl calls (Vpn), short enough that a crashed holder does not wedge
// the entity forever.
const (
	VpnLockTTL     = 30 * time.Second
	ClusterLockTTL = 60 * time.Second
)

// acquireLockScript sets the lock hash only if it does not already exist,
// recording the holder, the acquisition time and the lease length in
// seconds, and sets the key's TTL to that lease.
var acquireLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
    return 0
end
redis.call("HSET", key, "holder", ARGV[1], "acquired", ARGV[2], "ttl", ARGV[3])
redis.call("EXPIRE", key, tonumber(ARGV[3]))
return 1
`)

// releaseLockScript deletes the lock hash only if the caller is still the
// recorded holder, so a lease that already expired and was reacquired by
// someone else is never torn down by the original holder's late release.
var releaseLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
    return -1
end
local current = redis.call("HGET", key, "holder")
if current ~= ARGV[1] then
    return 0
end
redis.call("DEL", key)
return 1
`)

// AcquireLock attempts to take the advisory lock on an entity, returning
// util.ErrAlreadyLocked if another holder currently has it.
func (g *Gateway) AcquireLock(ctx context.Context, typ, id, holder string, ttl time.Duration) error {
	key := lockKey(typ, id)
	ttlSeconds := int(ttl.Seconds())
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}
	res, err := acquireLockScript.Run(ctx, g.rdb, []string{key}, holder, time.Now().Unix(), ttlSeconds).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return util.ErrAlreadyLocked
	}
	return nil
}

// ReleaseLock releases the advisory lock on an entity, returning
// util.ErrLockHolderMismatch if holder no longer owns the lease (it expired
// and was reacquired by someone else, or was never held).
func (g *Gateway) ReleaseLock(ctx context.Context, typ, id, holder string) error {
	key := lockKey(typ, id)
	res, err := releaseLockScript.Run(ctx, g.rdb, []string{key}, holder).Int()
	if err != nil {
		return err
	}
	if res <= 0 {
		return util.ErrLockHolderMismatch
	}
	return nil
}

// WithLock acquires the lock on the named entity, runs fn, then releases
// the lock regardless of fn's outcome. Handlers use this to bracket every
// state transition (spec.md §4.1: "every mutating operation holds the
// entity's lock for its duration").
func (g *Gateway) WithLock(ctx context.Context, typ, id, holder string, ttl time.Duration, fn func() error) error {
	if err := g.AcquireLock(ctx, typ, id, holder, ttl); err != nil {
		return err
	}
	defer g.ReleaseLock(ctx, typ, id, holder)
	return fn()
}

// WithVpnLock brackets fn with the Vpn's lock at its default lease.
func (g *Gateway) WithVpnLock(ctx context.Context, vpnID, holder string, fn func() error) error {
	return g.WithLock(ctx, typeVpn, vpnID, holder, VpnLockTTL, fn)
}

// WithClusterLock brackets fn with the Cluster's lock at its default lease.
// Callers that need both locks must acquire Cluster before Vpn to match the
// lock ordering fixed across the control plane (spec.md §4.1, §9(d)).
func (g *Gateway) WithClusterLock(ctx context.Context, clusterID, holder string, fn func() error) error {
	return g.WithLock(ctx, typeCluster, clusterID, holder, ClusterLockTTL, fn)
}

package db

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/naumachia-labs/clustermanager/pkg/util"
)

const (
	vlanMin = 10
	vlanMax = 4000

	// maxVlanAttempts bounds the collision-retry loop before the pool is
	// declared exhausted (spec.md §6).
	maxVlanAttempts = 10000

	vpnsKey  = "vpns"
	usersKey = "users"
	vlansKey = "vlans"
)

// RegisterVpn adds id to the global set of known Vpns.
func (g *Gateway) RegisterVpn(ctx context.Context, id string) error {
	return g.addToSet(ctx, vpnsKey, id)
}

// VpnIDs returns every known Vpn id, used by the reconciliation sweep
// (spec.md §9).
func (g *Gateway) VpnIDs(ctx context.Context) ([]string, error) {
	return g.setMembers(ctx, vpnsKey)
}

// UserIDByCN looks up a User's id by its lower-cased common name.
func (g *Gateway) UserIDByCN(ctx context.Context, cn string) (string, bool, error) {
	return g.hGetField(ctx, usersKey, cn)
}

// RegisterUserCN records the cn -> User id mapping in the global users hash.
func (g *Gateway) RegisterUserCN(ctx context.Context, cn, userID string) error {
	return g.hSetField(ctx, usersKey, cn, userID)
}

// UserIDs returns the ids of every known User, used by the reconciliation
// sweep.
func (g *Gateway) UserIDs(ctx context.Context) ([]string, error) {
	byCN, err := g.hGetAll(ctx, usersKey)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(byCN))
	for _, id := range byCN {
		ids = append(ids, id)
	}
	return ids, nil
}

// AllocateVlan picks a random, currently-unallocated VLAN id in [10, 4000]
// and reserves it for userID, retrying on collision up to maxVlanAttempts
// times (spec.md §6). The membership check and the reservation are separate
// round trips, but the reservation is an SADD whose result is checked: if a
// concurrent allocator reserved the same id first, this attempt is discarded
// and retried, so no two users are handed the same id.
func (g *Gateway) AllocateVlan(ctx context.Context, userID string) (int, error) {
	for attempt := 0; attempt < maxVlanAttempts; attempt++ {
		n, err := randomVlan()
		if err != nil {
			return 0, err
		}
		member := strconv.Itoa(n)
		taken, err := g.isSetMember(ctx, vlansKey, member)
		if err != nil {
			return 0, err
		}
		if taken {
			continue
		}
		added, err := g.rdb.SAdd(ctx, vlansKey, member).Result()
		if err != nil {
			return 0, err
		}
		if added == 0 {
			continue
		}
		if err := g.setString(ctx, fieldKey(typeUser, userID, "vlan"), member, 0); err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, util.ErrVlanPoolExhausted
}

func randomVlan() (int, error) {
	span := big.NewInt(int64(vlanMax - vlanMin + 1))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, err
	}
	return vlanMin + int(n.Int64()), nil
}

// CreateUser reserves a VLAN, records the user's cn and registers the cn ->
// id mapping, the full client-connect-path User creation sequence (spec.md
// §6). The three writes are separate round trips, not one transaction.
func (g *Gateway) CreateUser(ctx context.Context, userID, cn string) (*User, int, error) {
	vlan, err := g.AllocateVlan(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if err := g.setString(ctx, fieldKey(typeUser, userID, "cn"), cn, 0); err != nil {
		return nil, 0, err
	}
	if err := g.RegisterUserCN(ctx, cn, userID); err != nil {
		return nil, 0, err
	}
	return g.User(userID), vlan, nil
}

package db

import "fmt"

// Key naming: every field of an entity lives at its own top-level Redis key
// so that writes to a single field produce a fine-grained keyspace
// notification (spec.md §3). The shape is "{Type}:{id}:{field}"; global
// sets ("vpns", "users", "vlans") are bare top-level keys.
const (
	typeChallenge  = "Challenge"
	typeVpn        = "Vpn"
	typeUser       = "User"
	typeConnection = "Connection"
	typeCluster    = "Cluster"
)

func fieldKey(typ, id, field string) string {
	return fmt.Sprintf("%s:%s:%s", typ, id, field)
}

// ClusterID returns the canonical id for a user's cluster on a challenge:
// "{user_id}@{chal_id}" (spec.md §3).
func ClusterID(userID, chalID string) string {
	return fmt.Sprintf("%s@%s", userID, chalID)
}

// lockKey returns the key backing an entity's advisory lock.
func lockKey(typ, id string) string {
	return fieldKey(typ, id, "lock")
}

// KeyspacePattern returns the PSUBSCRIBE pattern for keyspace notifications
// on a given Redis logical database matching the given key glob (spec.md
// §4.3, §6): "__keyspace@{db}__:{pattern}".
func KeyspacePattern(dbIndex int, pattern string) string {
	return fmt.Sprintf("__keyspace@%d__:%s", dbIndex, pattern)
}

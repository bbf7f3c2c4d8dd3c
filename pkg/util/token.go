package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewLockToken returns a random owner token for a lock acquisition, unique
// enough that two concurrent holders never collide (spec.md §9: "unique
// owner token").
func NewLockToken() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

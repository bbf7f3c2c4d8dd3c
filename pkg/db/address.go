package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a client's observed (ip, port) tuple, the identity of a
// Connection entity. Its canonical textual encoding is "ip.port" (no
// colon), so that ":" remains free as the field delimiter elsewhere in the
// key space (spec.md §4.1).
type Address struct {
	IP   string
	Port int
}

// String renders the canonical "ip.port" encoding.
func (a Address) String() string {
	return fmt.Sprintf("%s.%d", a.IP, a.Port)
}

// ParseAddress parses the canonical "ip.port" encoding produced by String.
// IPv4 addresses separate octets with '.', so the port is split off the
// last segment rather than the first.
func ParseAddress(s string) (Address, error) {
	idx := strings.LastIndex(s, ".")
	if idx < 0 || idx == len(s)-1 {
		return Address{}, fmt.Errorf("db: invalid address %q: expected \"ip.port\"", s)
	}
	port, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return Address{}, fmt.Errorf("db: invalid address %q: %w", s, err)
	}
	return Address{IP: s[:idx], Port: port}, nil
}

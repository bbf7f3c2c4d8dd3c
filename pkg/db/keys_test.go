package db

import "testing"

func TestClusterID(t *testing.T) {
	if got, want := ClusterID("alice", "pwn200"), "alice@pwn200"; got != want {
		t.Errorf("ClusterID() = %q, want %q", got, want)
	}
}

func TestKeyspacePattern(t *testing.T) {
	if got, want := KeyspacePattern(0, "Connection:*:alive"), "__keyspace@0__:Connection:*:alive"; got != want {
		t.Errorf("KeyspacePattern() = %q, want %q", got, want)
	}
}

func TestFieldKey(t *testing.T) {
	if got, want := fieldKey(typeVpn, "v1", "veth"), "Vpn:v1:veth"; got != want {
		t.Errorf("fieldKey() = %q, want %q", got, want)
	}
}

package control

import "testing"

func TestConnectionAddr(t *testing.T) {
	addr, err := connectionAddr("Connection:10.0.0.5.51000:alive")
	if err != nil {
		t.Fatalf("connectionAddr: %v", err)
	}
	if addr.IP != "10.0.0.5" || addr.Port != 51000 {
		t.Errorf("connectionAddr() = %+v, want IP=10.0.0.5 Port=51000", addr)
	}
}

func TestConnectionAddrRejectsMalformed(t *testing.T) {
	if _, err := connectionAddr("Connection:not-an-address:alive"); err == nil {
		t.Fatal("connectionAddr: expected an error for a malformed address")
	}
}

func TestClusterUserChal(t *testing.T) {
	userID, chalID, ok := clusterUserChal("Cluster:alice@pwn200:status")
	if !ok {
		t.Fatal("clusterUserChal: ok = false, want true")
	}
	if userID != "alice" || chalID != "pwn200" {
		t.Errorf("clusterUserChal() = (%q, %q), want (alice, pwn200)", userID, chalID)
	}
}

func TestClusterUserChalRejectsKeyWithoutAt(t *testing.T) {
	if _, _, ok := clusterUserChal("Cluster:alice:status"); ok {
		t.Fatal("clusterUserChal: ok = true, want false for a key with no '@'")
	}
}

func TestVpnIDFromKey(t *testing.T) {
	if got, want := vpnIDFromKey("Vpn:vpn1:veth"), "vpn1"; got != want {
		t.Errorf("vpnIDFromKey() = %q, want %q", got, want)
	}
}

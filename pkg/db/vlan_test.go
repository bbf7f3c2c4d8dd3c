package db

import "testing"

func TestRandomVlanBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		n, err := randomVlan()
		if err != nil {
			t.Fatalf("randomVlan: %v", err)
		}
		if n < vlanMin || n > vlanMax {
			t.Fatalf("randomVlan() = %d, out of range [%d,%d]", n, vlanMin, vlanMax)
		}
	}
}

func TestRefValueRoundTrip(t *testing.T) {
	typ, id, err := parseRef(refValue(typeVpn, "vpn1"))
	if err != nil {
		t.Fatalf("parseRef: %v", err)
	}
	if typ != typeVpn || id != "vpn1" {
		t.Fatalf("parseRef() = %q, %q, want %q, %q", typ, id, typeVpn, "vpn1")
	}
}

func TestParseRefInvalid(t *testing.T) {
	if _, _, err := parseRef("novalue"); err == nil {
		t.Fatal("expected error for reference without a colon")
	}
}

func TestBoolStringRoundTrip(t *testing.T) {
	if !parseBool(boolString(true)) {
		t.Fatal("boolString(true) did not round-trip")
	}
	if parseBool(boolString(false)) {
		t.Fatal("boolString(false) did not round-trip")
	}
}

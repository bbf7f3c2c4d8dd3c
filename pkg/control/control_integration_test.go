//go:build integration

package control

import (
	"context"
	"testing"

	"github.com/naumachia-labs/clustermanager/internal/testutil"
	"github.com/naumachia-labs/clustermanager/pkg/actions"
	"github.com/naumachia-labs/clustermanager/pkg/cmdexec"
	"github.com/naumachia-labs/clustermanager/pkg/db"
	"github.com/naumachia-labs/clustermanager/pkg/listener"
)

const testDB = 13

type fakeRunner struct {
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil, nil
}

type fakeBridgeResolver struct{ id string }

func (f *fakeBridgeResolver) BridgeID(context.Context, string) (string, error) {
	return f.id, nil
}

func newTestControl(t *testing.T, runner cmdexec.Runner) (*Control, *db.Gateway) {
	t.Helper()
	testutil.RequireRedis(t)
	testutil.FlushDB(t, testDB)

	gw, err := db.NewGateway(testutil.Context(t), db.Options{Addr: testutil.RedisAddr(), DB: testDB})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	a := actions.New(gw, runner, &fakeBridgeResolver{id: "br-cluster"}, 0)
	l := listener.New(nil, gw.DBIndex())
	return New(gw, a, l), gw
}

// connectionSetEvent builds the Event a "Connection:*:alive" set notification
// carries for addr.
func connectionSetEvent(addr db.Address) listener.Event {
	return listener.Event{Key: "Connection:" + addr.String() + ":alive", Op: "set"}
}

func TestHandleConnectionSetFullSequence(t *testing.T) {
	runner := &fakeRunner{}
	c, gw := newTestControl(t, runner)
	ctx := testutil.Context(t)

	if err := gw.Vpn("vpn1").SetVeth(ctx, "veth0"); err != nil {
		t.Fatalf("SetVeth: %v", err)
	}
	if err := gw.Vpn("vpn1").SetChal(ctx, "pwn200"); err != nil {
		t.Fatalf("SetChal: %v", err)
	}
	if err := gw.Challenge("pwn200").AddFiles(ctx, "docker-compose.yml"); err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	if _, _, err := gw.CreateUser(ctx, "alice", "alice"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	clusterID := db.ClusterID("alice", "pwn200")
	addr := db.Address{IP: "10.0.0.5", Port: 51000}
	conn := gw.Connection(addr)
	if err := conn.SetRefs(ctx, "alice", "vpn1", clusterID); err != nil {
		t.Fatalf("SetRefs: %v", err)
	}
	if err := gw.Cluster(clusterID).AddConnection(ctx, addr); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}

	c.handleConnectionSet(ctx, connectionSetEvent(addr))

	vethState, err := gw.Vpn("vpn1").VethState(ctx)
	if err != nil || vethState != db.VethUp {
		t.Fatalf("VethState() = %q, %v, want UP", vethState, err)
	}
	status, err := gw.Cluster(clusterID).Status(ctx)
	if err != nil || status != db.ClusterUp {
		t.Fatalf("Status() = %q, %v, want UP", status, err)
	}
	vlan, ok, err := gw.User("alice").Vlan(ctx)
	if err != nil || !ok {
		t.Fatalf("Vlan: ok=%v err=%v", ok, err)
	}
	link, err := gw.Vpn("vpn1").Link(ctx, vlan)
	if err != nil || link != db.LinkBridged {
		t.Fatalf("Link() = %q, %v, want BRIDGED", link, err)
	}
}

func TestHandleConnectionSetShortCircuitsOnFirstError(t *testing.T) {
	runner := &fakeRunner{}
	c, gw := newTestControl(t, runner)
	ctx := testutil.Context(t)

	// Deliberately omit Vpn.SetVeth: VethUp fails its precondition check,
	// so none of the steps after it should run.
	if _, _, err := gw.CreateUser(ctx, "alice", "alice"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	clusterID := db.ClusterID("alice", "pwn200")
	addr := db.Address{IP: "10.0.0.5", Port: 51000}
	conn := gw.Connection(addr)
	if err := conn.SetRefs(ctx, "alice", "vpn1", clusterID); err != nil {
		t.Fatalf("SetRefs: %v", err)
	}
	if err := gw.Cluster(clusterID).AddConnection(ctx, addr); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}

	c.handleConnectionSet(ctx, connectionSetEvent(addr))

	status, err := gw.Cluster(clusterID).Status(ctx)
	if err != nil || status != db.ClusterDown {
		t.Fatalf("Status() = %q, %v, want DOWN (cluster_up should never have run)", status, err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no subprocess calls, got %v", runner.calls)
	}
}

func TestHandleConnectionSetDefersTeardownWhenAlreadyDead(t *testing.T) {
	runner := &fakeRunner{}
	c, gw := newTestControl(t, runner)
	ctx := testutil.Context(t)

	clusterID := db.ClusterID("alice", "pwn200")
	addr := db.Address{IP: "10.0.0.5", Port: 51000}
	conn := gw.Connection(addr)
	if err := conn.SetRefs(ctx, "alice", "vpn1", clusterID); err != nil {
		t.Fatalf("SetRefs: %v", err)
	}
	if err := conn.SetAlive(ctx, false); err != nil {
		t.Fatalf("SetAlive: %v", err)
	}

	c.handleConnectionSet(ctx, connectionSetEvent(addr))

	if len(runner.calls) != 0 {
		t.Fatalf("expected no subprocess calls for a dead connection, got %v", runner.calls)
	}
	if _, ok, err := conn.Alive(ctx); err != nil || ok {
		t.Fatalf("Alive: ok=%v err=%v, want the alive field deleted", ok, err)
	}
	// The other fields are left in place for the delete-path handler.
	if exists, err := conn.Exists(ctx); err != nil || !exists {
		t.Fatalf("Exists() = %v, %v, want true (only alive is torn down here)", exists, err)
	}
}

func TestHandleConnectionDeletedTransitionsClusterToExpiring(t *testing.T) {
	runner := &fakeRunner{}
	c, gw := newTestControl(t, runner)
	ctx := testutil.Context(t)

	clusterID := db.ClusterID("alice", "pwn200")
	cluster := gw.Cluster(clusterID)
	if err := cluster.SetStatusAndVpn(ctx, db.ClusterUp, "vpn1"); err != nil {
		t.Fatalf("SetStatusAndVpn: %v", err)
	}

	addr := db.Address{IP: "10.0.0.5", Port: 51000}
	conn := gw.Connection(addr)
	if err := conn.SetRefs(ctx, "alice", "vpn1", clusterID); err != nil {
		t.Fatalf("SetRefs: %v", err)
	}
	if err := cluster.AddConnection(ctx, addr); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}

	c.handleConnectionDeleted(ctx, listener.Event{Key: "Connection:" + addr.String() + ":alive", Op: "del"})

	status, err := cluster.Status(ctx)
	if err != nil || status != db.ClusterExpiring {
		t.Fatalf("Status() = %q, %v, want EXPIRING", status, err)
	}
	if exists, err := conn.Exists(ctx); err != nil || exists {
		t.Fatalf("Exists() = %v, %v, want false", exists, err)
	}
}

func TestHandleConnectionDeletedLeavesClusterActiveWithRemainingConnections(t *testing.T) {
	runner := &fakeRunner{}
	c, gw := newTestControl(t, runner)
	ctx := testutil.Context(t)

	clusterID := db.ClusterID("alice", "pwn200")
	cluster := gw.Cluster(clusterID)
	if err := cluster.SetStatusAndVpn(ctx, db.ClusterUp, "vpn1"); err != nil {
		t.Fatalf("SetStatusAndVpn: %v", err)
	}

	addr1 := db.Address{IP: "10.0.0.5", Port: 51000}
	addr2 := db.Address{IP: "10.0.0.6", Port: 51001}
	conn1 := gw.Connection(addr1)
	if err := conn1.SetRefs(ctx, "alice", "vpn1", clusterID); err != nil {
		t.Fatalf("SetRefs: %v", err)
	}
	if err := gw.Connection(addr2).SetRefs(ctx, "alice", "vpn1", clusterID); err != nil {
		t.Fatalf("SetRefs: %v", err)
	}
	if err := cluster.AddConnection(ctx, addr1); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
	if err := cluster.AddConnection(ctx, addr2); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}

	c.handleConnectionDeleted(ctx, listener.Event{Key: "Connection:" + addr1.String() + ":alive", Op: "del"})

	status, err := cluster.Status(ctx)
	if err != nil || status != db.ClusterUp {
		t.Fatalf("Status() = %q, %v, want UP (one connection remains)", status, err)
	}
	n, err := cluster.ConnectionCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ConnectionCount() = %d, %v, want 1", n, err)
	}
}

func TestHandleClusterExpiredTearsDownAndDeletes(t *testing.T) {
	runner := &fakeRunner{}
	c, gw := newTestControl(t, runner)
	ctx := testutil.Context(t)

	clusterID := db.ClusterID("alice", "pwn200")
	cluster := gw.Cluster(clusterID)
	if err := cluster.SetStatusAndVpn(ctx, db.ClusterExpiring, "vpn1"); err != nil {
		t.Fatalf("SetStatusAndVpn: %v", err)
	}

	c.handleClusterExpired(ctx, listener.Event{Key: "Cluster:alice@pwn200:status", Op: "expired"})

	if exists, err := cluster.Exists(ctx); err != nil || exists {
		t.Fatalf("Exists() = %v, %v, want false after cluster_down and delete", exists, err)
	}
	if len(runner.calls) == 0 {
		t.Fatal("expected cluster_down to invoke the composition tool")
	}
}

func TestHandleClusterExpiredIgnoresVanishedCluster(t *testing.T) {
	runner := &fakeRunner{}
	c, _ := newTestControl(t, runner)
	ctx := testutil.Context(t)

	// No cluster was ever created for this key: VpnID() comes back ok=false
	// and the handler must return without invoking any action.
	c.handleClusterExpired(ctx, listener.Event{Key: "Cluster:alice@pwn200:status", Op: "expired"})

	if len(runner.calls) != 0 {
		t.Fatalf("expected no subprocess calls for a vanished cluster, got %v", runner.calls)
	}
}

package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Link states for a Vpn's per-vlan sub-interface (spec.md §3).
const (
	LinkUp      = "UP"
	LinkBridged = "BRIDGED"
	LinkDown    = "DOWN"
)

// Veth states for a Vpn's host-side endpoint (spec.md §3).
const (
	VethUp   = "UP"
	VethDown = "DOWN"
)

// Cluster lifecycle states (spec.md §3, §4.7).
const (
	ClusterUp       = "UP"
	ClusterExpiring = "EXPIRING"
	ClusterStopped  = "STOPPED"
	ClusterDown     = "DOWN"
)

// refValue encodes a reference-typed field as "{ClassName}:{id}" (spec.md §6).
func refValue(typ, id string) string {
	return fmt.Sprintf("%s:%s", typ, id)
}

// parseRef decodes a reference value produced by refValue.
func parseRef(s string) (typ, id string, err error) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("db: invalid reference %q", s)
	}
	return s[:idx], s[idx+1:], nil
}

func parseBool(s string) bool {
	return s == "true"
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Challenge is the control plane's view of a named CTF scenario and the
// composition files that implement it (spec.md §3).
type Challenge struct {
	g  *Gateway
	ID string
}

// Challenge returns a handle to the Challenge with the given name. No I/O is
// performed until an accessor is called.
func (g *Gateway) Challenge(name string) *Challenge {
	return &Challenge{g: g, ID: name}
}

// Files returns the challenge's composition file paths in registration order.
func (c *Challenge) Files(ctx context.Context) ([]string, error) {
	return c.g.lRange(ctx, fieldKey(typeChallenge, c.ID, "files"))
}

// AddFiles idempotently extends the challenge's file list, as the VPN hook
// does on every vpn-up event (spec.md §6).
func (c *Challenge) AddFiles(ctx context.Context, files ...string) error {
	return c.g.rPushMissing(ctx, fieldKey(typeChallenge, c.ID, "files"), files...)
}

// Exists reports whether the challenge has any recorded files.
func (c *Challenge) Exists(ctx context.Context) (bool, error) {
	return c.g.existsKey(ctx, fieldKey(typeChallenge, c.ID, "files"))
}

// Vpn is one running VPN daemon instance (spec.md §3).
type Vpn struct {
	g  *Gateway
	ID string
}

// Vpn returns a handle to the Vpn with the given id.
func (g *Gateway) Vpn(id string) *Vpn {
	return &Vpn{g: g, ID: id}
}

func (v *Vpn) key(field string) string {
	return fieldKey(typeVpn, v.ID, field)
}

// Veth returns the host-side virtual Ethernet endpoint name, or ok=false if
// the Vpn has not yet reported in via vpn-up.
func (v *Vpn) Veth(ctx context.Context) (string, bool, error) {
	return v.g.getString(ctx, v.key("veth"))
}

// SetVeth records the Vpn's host-side endpoint name and resets veth_state to
// DOWN, matching the vpn-up write contract (spec.md §6). It also registers
// the Vpn in the global vpns set, so the reconciliation sweep picks it up
// from its very first report-in.
func (v *Vpn) SetVeth(ctx context.Context, veth string) error {
	if err := v.g.updateFields(ctx, map[string]string{
		v.key("veth"):       veth,
		v.key("veth_state"): VethDown,
	}); err != nil {
		return err
	}
	return v.g.RegisterVpn(ctx, v.ID)
}

// VethState returns the Vpn's veth administrative state, defaulting to DOWN
// if unset (spec.md §3).
func (v *Vpn) VethState(ctx context.Context) (string, error) {
	val, ok, err := v.g.getString(ctx, v.key("veth_state"))
	if err != nil {
		return "", err
	}
	if !ok {
		return VethDown, nil
	}
	return val, nil
}

// SetVethState is the sole writer of veth_state post-registration (spec.md
// §4.4).
func (v *Vpn) SetVethState(ctx context.Context, state string) error {
	return v.g.setString(ctx, v.key("veth_state"), state, 0)
}

// Chal returns the Challenge this Vpn was started against.
func (v *Vpn) Chal(ctx context.Context) (*Challenge, bool, error) {
	val, ok, err := v.g.getString(ctx, v.key("chal"))
	if err != nil || !ok {
		return nil, ok, err
	}
	_, id, err := parseRef(val)
	if err != nil {
		return nil, false, err
	}
	return v.g.Challenge(id), true, nil
}

// SetChal records the Challenge this Vpn serves.
func (v *Vpn) SetChal(ctx context.Context, chalID string) error {
	return v.g.setString(ctx, v.key("chal"), refValue(typeChallenge, chalID), 0)
}

// Link returns the bridging state of the sub-interface for vlan, defaulting
// to DOWN if the vlan has no recorded link yet.
func (v *Vpn) Link(ctx context.Context, vlan int) (string, error) {
	val, ok, err := v.g.hGetField(ctx, v.key("links"), strconv.Itoa(vlan))
	if err != nil {
		return "", err
	}
	if !ok {
		return LinkDown, nil
	}
	return val, nil
}

// SetLink writes the bridging state of the sub-interface for vlan.
func (v *Vpn) SetLink(ctx context.Context, vlan int, state string) error {
	return v.g.hSetField(ctx, v.key("links"), strconv.Itoa(vlan), state)
}

// Links returns every recorded vlan -> link-state mapping for this Vpn.
func (v *Vpn) Links(ctx context.Context) (map[string]string, error) {
	return v.g.hGetAll(ctx, v.key("links"))
}

// Exists reports whether this Vpn has ever reported in.
func (v *Vpn) Exists(ctx context.Context) (bool, error) {
	return v.g.existsKey(ctx, v.key("veth"))
}

// Lock acquires this Vpn's advisory lock for the duration of fn.
func (v *Vpn) Lock(ctx context.Context, holder string, fn func() error) error {
	return v.g.WithVpnLock(ctx, v.ID, holder, fn)
}

// User is a client identified by the stable, lower-cased common name issued
// in its certificate (spec.md §3).
type User struct {
	g  *Gateway
	ID string
}

// User returns a handle to the User with the given id.
func (g *Gateway) User(id string) *User {
	return &User{g: g, ID: id}
}

func (u *User) key(field string) string {
	return fieldKey(typeUser, u.ID, field)
}

// Vlan returns the user's allocated VLAN id.
func (u *User) Vlan(ctx context.Context) (int, bool, error) {
	val, ok, err := u.g.getString(ctx, u.key("vlan"))
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("db: user %s: invalid vlan %q: %w", u.ID, val, err)
	}
	return n, true, nil
}

// CN returns the original, mixed-case common name as issued in the
// certificate.
func (u *User) CN(ctx context.Context) (string, bool, error) {
	return u.g.getString(ctx, u.key("cn"))
}

// Exists reports whether this User has been created.
func (u *User) Exists(ctx context.Context) (bool, error) {
	return u.g.existsKey(ctx, u.key("vlan"))
}

// Connection is a single authenticated VPN client session, identified by its
// observed (ip, port) address (spec.md §3).
type Connection struct {
	g    *Gateway
	Addr Address
}

// Connection returns a handle to the Connection at the given address.
func (g *Gateway) Connection(addr Address) *Connection {
	return &Connection{g: g, Addr: addr}
}

func (c *Connection) key(field string) string {
	return fieldKey(typeConnection, c.Addr.String(), field)
}

// Alive reports the connection's liveness, and ok=false if the field has
// already been deleted (spec.md invariant I5: deletion is transient).
func (c *Connection) Alive(ctx context.Context) (bool, bool, error) {
	val, ok, err := c.g.getString(ctx, c.key("alive"))
	if err != nil || !ok {
		return false, ok, err
	}
	return parseBool(val), true, nil
}

// SetAlive writes the connection's alive flag.
func (c *Connection) SetAlive(ctx context.Context, alive bool) error {
	return c.g.setString(ctx, c.key("alive"), boolString(alive), 0)
}

// DeleteAliveField removes only the alive field, used when a connection-set
// handler observes alive=false and defers teardown to the delete-path
// handler (spec.md §4.8).
func (c *Connection) DeleteAliveField(ctx context.Context) error {
	return c.g.delKeys(ctx, c.key("alive"))
}

// User returns the id of the User that owns this connection.
func (c *Connection) User(ctx context.Context) (string, bool, error) {
	val, ok, err := c.g.getString(ctx, c.key("user"))
	if err != nil || !ok {
		return "", ok, err
	}
	_, id, err := parseRef(val)
	return id, err == nil, err
}

// Vpn returns the id of the Vpn this connection came in through.
func (c *Connection) Vpn(ctx context.Context) (string, bool, error) {
	val, ok, err := c.g.getString(ctx, c.key("vpn"))
	if err != nil || !ok {
		return "", ok, err
	}
	_, id, err := parseRef(val)
	return id, err == nil, err
}

// Cluster returns the id of the Cluster this connection feeds.
func (c *Connection) Cluster(ctx context.Context) (string, bool, error) {
	val, ok, err := c.g.getString(ctx, c.key("cluster"))
	if err != nil || !ok {
		return "", ok, err
	}
	_, id, err := parseRef(val)
	return id, err == nil, err
}

// SetRefs atomically sets the user, vpn, and cluster references together
// with addr and alive=true, matching the client-connect write contract
// (spec.md §6).
func (c *Connection) SetRefs(ctx context.Context, userID, vpnID, clusterID string) error {
	return c.g.updateFields(ctx, map[string]string{
		c.key("addr"):    c.Addr.String(),
		c.key("alive"):   boolString(true),
		c.key("user"):    refValue(typeUser, userID),
		c.key("vpn"):     refValue(typeVpn, vpnID),
		c.key("cluster"): refValue(typeCluster, clusterID),
	})
}

// Delete removes every field of this Connection entity.
func (c *Connection) Delete(ctx context.Context) error {
	return c.g.delKeys(ctx,
		c.key("addr"), c.key("alive"), c.key("user"), c.key("vpn"), c.key("cluster"))
}

// Exists reports whether this Connection's addr field is currently recorded;
// the other fields are not consulted.
func (c *Connection) Exists(ctx context.Context) (bool, error) {
	return c.g.existsKey(ctx, c.key("addr"))
}

// ConnectionAddrs returns the address of every currently recorded
// Connection, for operator tooling.
func (g *Gateway) ConnectionAddrs(ctx context.Context) ([]Address, error) {
	keys, err := g.scanKeys(ctx, fieldKey(typeConnection, "*", "addr"))
	if err != nil {
		return nil, err
	}
	addrs := make([]Address, 0, len(keys))
	for _, k := range keys {
		rest := strings.TrimPrefix(k, typeConnection+":")
		raw := strings.TrimSuffix(rest, ":addr")
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// Cluster is the per-user, per-challenge instantiation of a Challenge's
// compositions (spec.md §3).
type Cluster struct {
	g  *Gateway
	ID string
}

// Cluster returns a handle to the Cluster with the given id (typically
// built with ClusterID).
func (g *Gateway) Cluster(id string) *Cluster {
	return &Cluster{g: g, ID: id}
}

func (c *Cluster) key(field string) string {
	return fieldKey(typeCluster, c.ID, field)
}

// Status returns the cluster's lifecycle state, defaulting to DOWN if the
// cluster has never been created (spec.md §4.7: "initial state: absent,
// treated as DOWN").
func (c *Cluster) Status(ctx context.Context) (string, error) {
	val, ok, err := c.g.getString(ctx, c.key("status"))
	if err != nil {
		return "", err
	}
	if !ok {
		return ClusterDown, nil
	}
	return val, nil
}

// SetStatus writes the cluster's lifecycle state with no TTL, clearing any
// previously set expiration.
func (c *Cluster) SetStatus(ctx context.Context, status string) error {
	return c.g.setString(ctx, c.key("status"), status, 0)
}

// SetStatusTTL writes the cluster's lifecycle state with an expiration,
// used to move into EXPIRING (spec.md §4.8).
func (c *Cluster) SetStatusTTL(ctx context.Context, status string, ttl time.Duration) error {
	return c.g.setString(ctx, c.key("status"), status, ttl)
}

// ClearStatusTTL removes the expiration on status without changing its
// value, used when a reconnect cancels a pending expiration (spec.md §4.7
// step 1, scenario S3).
func (c *Cluster) ClearStatusTTL(ctx context.Context) error {
	return c.g.rdb.Persist(ctx, c.key("status")).Err()
}

// VpnID returns the id of the most recent Vpn through which this cluster
// was activated.
func (c *Cluster) VpnID(ctx context.Context) (string, bool, error) {
	val, ok, err := c.g.getString(ctx, c.key("vpn"))
	if err != nil || !ok {
		return "", ok, err
	}
	_, id, err := parseRef(val)
	return id, err == nil, err
}

// SetVpn records the Vpn through which this cluster was most recently
// activated.
func (c *Cluster) SetVpn(ctx context.Context, vpnID string) error {
	return c.g.setString(ctx, c.key("vpn"), refValue(typeVpn, vpnID), 0)
}

// SetStatusAndVpn atomically sets status and vpn together, matching
// cluster_up's final step (spec.md §4.7).
func (c *Cluster) SetStatusAndVpn(ctx context.Context, status, vpnID string) error {
	return c.g.updateFields(ctx, map[string]string{
		c.key("status"): status,
		c.key("vpn"):    refValue(typeVpn, vpnID),
	})
}

// AddConnection adds a Connection reference to this cluster's connection
// set.
func (c *Cluster) AddConnection(ctx context.Context, addr Address) error {
	return c.g.addToSet(ctx, c.key("connections"), refValue(typeConnection, addr.String()))
}

// RemoveConnection removes a Connection reference from this cluster's
// connection set.
func (c *Cluster) RemoveConnection(ctx context.Context, addr Address) error {
	return c.g.removeFromSet(ctx, c.key("connections"), refValue(typeConnection, addr.String()))
}

// ConnectionCount returns the number of live connections recorded against
// this cluster, the basis for the EXPIRING transition (spec.md §9(c)).
func (c *Cluster) ConnectionCount(ctx context.Context) (int64, error) {
	return c.g.setCardinality(ctx, c.key("connections"))
}

// Exists reports whether this cluster has ever been created.
func (c *Cluster) Exists(ctx context.Context) (bool, error) {
	return c.g.existsKey(ctx, c.key("status"))
}

// ClusterIDs returns the ids of every cluster with a recorded status, for
// operator tooling (clusterctl has no other way to enumerate clusters,
// since unlike Vpns and Users they have no global registration set).
func (g *Gateway) ClusterIDs(ctx context.Context) ([]string, error) {
	keys, err := g.scanKeys(ctx, fieldKey(typeCluster, "*", "status"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		rest := strings.TrimPrefix(k, typeCluster+":")
		ids = append(ids, strings.TrimSuffix(rest, ":status"))
	}
	return ids, nil
}

// Delete removes every field of this Cluster entity.
func (c *Cluster) Delete(ctx context.Context) error {
	return c.g.delKeys(ctx, c.key("status"), c.key("connections"), c.key("vpn"))
}

// Lock acquires this Cluster's advisory lock for the duration of fn.
func (c *Cluster) Lock(ctx context.Context, holder string, fn func() error) error {
	return c.g.WithClusterLock(ctx, c.ID, holder, fn)
}

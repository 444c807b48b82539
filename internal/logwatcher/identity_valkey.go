package logwatcher

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"
)

// defaultIdentityTTL mirrors the reference pack's Valkey-backed join-request
// cache: a one hour sliding expiry per entry.
const defaultIdentityTTL = time.Hour

// ValkeyIdentityStore is the multi-process alternative to EventStore's
// in-process identity LRU: when several log-watcher processes
// tail the same server (e.g. an active/standby pair, or a log shipper
// fan-out), the rule engine's possession/connection rules can publish
// identity resolutions here so any instance's combat rules can read them
// back, instead of each instance maintaining its own cold cache.
type ValkeyIdentityStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyIdentityStore dials a Valkey instance (or cluster) with the given
// addresses, namespacing keys under prefix (typically the server id).
func NewValkeyIdentityStore(addrs []string, prefix string) (*ValkeyIdentityStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: addrs})
	if err != nil {
		return nil, err
	}
	return &ValkeyIdentityStore{client: client, prefix: prefix, ttl: defaultIdentityTTL}, nil
}

func (v *ValkeyIdentityStore) Close() { v.client.Close() }

func (v *ValkeyIdentityStore) eosKey(eosID string) string        { return v.prefix + ":identity:eos:" + eosID }
func (v *ValkeyIdentityStore) nameKey(name string) string        { return v.prefix + ":identity:name:" + name }
func (v *ValkeyIdentityStore) controllerKey(id string) string    { return v.prefix + ":identity:controller:" + id }

// PutIdentity writes id under each of its lookup keys, refreshing their TTL.
// Encoding is a plain pipe-delimited tuple with no escaping; player names
// are free text, so a field that itself contains '|' does not round-trip.
func (v *ValkeyIdentityStore) PutIdentity(ctx context.Context, id Identity) error {
	encoded := id.EOSID + "|" + id.PlatformID + "|" + id.Name + "|" + id.Controller

	cmds := make(valkey.Commands, 0, 3)
	cmds = append(cmds, v.client.B().Set().Key(v.eosKey(id.EOSID)).Value(encoded).Ex(v.ttl).Build())
	if id.Name != "" {
		cmds = append(cmds, v.client.B().Set().Key(v.nameKey(id.Name)).Value(encoded).Ex(v.ttl).Build())
	}
	if id.Controller != "" {
		cmds = append(cmds, v.client.B().Set().Key(v.controllerKey(id.Controller)).Value(encoded).Ex(v.ttl).Build())
	}

	for _, resp := range v.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return err
		}
	}
	return nil
}

func decodeIdentity(raw string) Identity {
	parts := make([]string, 0, 4)
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '|' {
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	parts = append(parts, raw[start:])
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return Identity{EOSID: parts[0], PlatformID: parts[1], Name: parts[2], Controller: parts[3]}
}

func (v *ValkeyIdentityStore) get(ctx context.Context, key string) (Identity, bool, error) {
	resp := v.client.Do(ctx, v.client.B().Get().Key(key).Build())
	if resp.Error() != nil {
		if valkey.IsValkeyNil(resp.Error()) {
			return Identity{}, false, nil
		}
		return Identity{}, false, resp.Error()
	}
	raw, err := resp.ToString()
	if err != nil {
		return Identity{}, false, err
	}
	return decodeIdentity(raw), true, nil
}

func (v *ValkeyIdentityStore) GetIdentityByEOS(ctx context.Context, eosID string) (Identity, bool, error) {
	return v.get(ctx, v.eosKey(eosID))
}

func (v *ValkeyIdentityStore) GetIdentityByName(ctx context.Context, name string) (Identity, bool, error) {
	return v.get(ctx, v.nameKey(name))
}

func (v *ValkeyIdentityStore) GetIdentityByController(ctx context.Context, controller string) (Identity, bool, error) {
	return v.get(ctx, v.controllerKey(controller))
}

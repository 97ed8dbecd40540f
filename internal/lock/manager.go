// Package lock implements the distributed lock that serializes booking
// attempts per equipment across all service instances.  Redis is the single
// arbiter: every operation that combines a read with a write runs as one
// atomic primitive (SET NX EX or a server-side Lua script), never as a
// separate GET followed by a SET or DEL.
package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/equipment-rental/internal/model"
)

// Lock keys live under their own prefix so operational listing can scan a
// scoped keyspace instead of the whole store.
const keyPrefix = "lock:equipment:"

// DefaultTTL bounds how long a renter may hold a reservation intent before
// the store reaps the lock.  Fifteen minutes leaves room to complete payment.
const DefaultTTL = 15 * time.Minute

// releaseScript deletes the key only while the stored value still belongs
// to the caller.  The value is "{holder}:{unixMilli}", so ownership is the
// holder prefix up to the first separator.
var releaseScript = redis.NewScript(`
local v = redis.call("get", KEYS[1])
if v and string.sub(v, 1, string.len(ARGV[1]) + 1) == ARGV[1] .. ":" then
  return redis.call("del", KEYS[1])
end
return 0
`)

// extendScript adds seconds to the current remaining TTL, but only for the
// owner and only while the key has not already expired.  Reading the TTL
// and resetting it happens inside one script so an expired key can never be
// resurrected.
var extendScript = redis.NewScript(`
local v = redis.call("get", KEYS[1])
if v and string.sub(v, 1, string.len(ARGV[1]) + 1) == ARGV[1] .. ":" then
  local current_ttl = redis.call("ttl", KEYS[1])
  if current_ttl > 0 then
    redis.call("expire", KEYS[1], current_ttl + tonumber(ARGV[2]))
    return 1
  end
end
return 0
`)

// Manager provides exclusive, time-bounded reservation intents keyed by
// equipment ID.  It wraps an injected Redis client; the caller owns the
// client's lifecycle and closes it on shutdown.
type Manager struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewManager returns a Manager using the provided client.  ttl is the
// default lock lifetime used when Acquire is called with a zero duration;
// pass 0 to use DefaultTTL.
func NewManager(rdb *redis.Client, ttl time.Duration) *Manager {
	if rdb == nil {
		panic("nil redis client passed to lock.NewManager")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{rdb: rdb, ttl: ttl, now: time.Now}
}

// TTL returns the default lock lifetime, e.g. for reporting the payment
// window to clients.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Acquire takes the lock for holderID, or reports who already holds it.
// The set-if-absent and the expiry are a single Redis SET NX EX, so among
// any number of concurrent callers exactly one succeeds.  A held lock is
// returned as *ConflictError; anything else is a store failure.
func (m *Manager) Acquire(ctx context.Context, equipmentID, holderID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	key := keyPrefix + equipmentID
	value := fmt.Sprintf("%s:%d", holderID, m.now().UnixMilli())

	ok, err := m.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return fmt.Errorf("lock store: set %s: %w", key, err)
	}
	if ok {
		return nil
	}

	info, err := m.Check(ctx, equipmentID)
	if err != nil {
		return err
	}
	if !info.Locked {
		// Holder expired between the failed SETNX and this inspection.
		return &ConflictError{EquipmentID: equipmentID}
	}
	return &ConflictError{
		EquipmentID: equipmentID,
		HolderID:    info.HolderID,
		ExpiresIn:   info.ExpiresIn,
	}
}

// Release deletes the lock if holderID still owns it.  The ownership check
// and the delete run as one Lua script.  False means there was nothing to
// release (expired, or owned by someone else); callers treat that as a
// benign race, not a failure.
func (m *Manager) Release(ctx context.Context, equipmentID, holderID string) (bool, error) {
	res, err := releaseScript.Run(ctx, m.rdb, []string{keyPrefix + equipmentID}, holderID).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("lock store: release %s: %w", equipmentID, err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

// Extend adds additional time to the lock's current remaining TTL if
// holderID still owns it.  Returns false when the lock is gone or owned by
// another holder.
func (m *Manager) Extend(ctx context.Context, equipmentID, holderID string, additional time.Duration) (bool, error) {
	secs := int64(additional / time.Second)
	if secs <= 0 {
		return false, nil
	}
	res, err := extendScript.Run(ctx, m.rdb, []string{keyPrefix + equipmentID}, holderID, secs).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("lock store: extend %s: %w", equipmentID, err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

// Check inspects the lock without mutating it.
func (m *Manager) Check(ctx context.Context, equipmentID string) (model.LockInfo, error) {
	key := keyPrefix + equipmentID
	value, err := m.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return model.LockInfo{}, nil
	}
	if err != nil {
		return model.LockInfo{}, fmt.Errorf("lock store: get %s: %w", key, err)
	}
	ttl, err := m.rdb.TTL(ctx, key).Result()
	if err != nil {
		return model.LockInfo{}, fmt.Errorf("lock store: ttl %s: %w", key, err)
	}
	return model.LockInfo{Locked: true, HolderID: holderFromValue(value), ExpiresIn: ttl}, nil
}

// ForceRelease deletes the lock unconditionally, bypassing the ownership
// check.  Operator recovery only; the caller is responsible for logging it
// as a privileged action.
func (m *Manager) ForceRelease(ctx context.Context, equipmentID string) (bool, error) {
	n, err := m.rdb.Del(ctx, keyPrefix+equipmentID).Result()
	if err != nil {
		return false, fmt.Errorf("lock store: del %s: %w", equipmentID, err)
	}
	return n == 1, nil
}

// ListActive enumerates live locks for operational visibility.  It SCANs
// the lock prefix rather than listing the entire store.  Keys that expire
// mid-scan are skipped.
func (m *Manager) ListActive(ctx context.Context) ([]model.ActiveLock, error) {
	locks := make([]model.ActiveLock, 0)
	iter := m.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		value, err := m.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock store: get %s: %w", key, err)
		}
		ttl, err := m.rdb.TTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("lock store: ttl %s: %w", key, err)
		}
		locks = append(locks, model.ActiveLock{
			EquipmentID: strings.TrimPrefix(key, keyPrefix),
			HolderID:    holderFromValue(value),
			ExpiresIn:   ttl,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("lock store: scan: %w", err)
	}
	return locks, nil
}

// holderFromValue extracts the holder from a "{holder}:{unixMilli}" value.
func holderFromValue(value string) string {
	if i := strings.LastIndex(value, ":"); i >= 0 {
		return value[:i]
	}
	return value
}

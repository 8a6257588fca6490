package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
)

// ErrLeaseHeld is returned by Acquire when another holder owns the key.
var ErrLeaseHeld = errors.New("lease held")

// LeaseInfo records who took a lease and when.
type LeaseInfo struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// Lease is an exclusive claim on a key that expires after its TTL even if
// the holder dies without releasing it.
type Lease struct {
	cache domain.Cache
	key   string
	Info  LeaseInfo
}

func infoKey(key string) string {
	return key + ":holder"
}

// Acquire claims key for ttl. The first IncrementCounter in a window wins;
// everyone else gets ErrLeaseHeld until Release or expiry.
func Acquire(ctx context.Context, c domain.Cache, key, holder string, ttl time.Duration) (*Lease, error) {
	n, err := c.IncrementCounter(ctx, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if n != 1 {
		return nil, ErrLeaseHeld
	}

	l := &Lease{
		cache: c,
		key:   key,
		Info:  LeaseInfo{Holder: holder, AcquiredAt: time.Now().UTC()},
	}
	// The holder record is informational; the counter alone grants the lease.
	if data, err := json.Marshal(l.Info); err == nil {
		_ = c.Set(ctx, infoKey(key), data, ttl)
	}
	return l, nil
}

// Release frees the lease for the next caller.
func (l *Lease) Release(ctx context.Context) error {
	if err := l.cache.Delete(ctx, l.key); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}
	return l.cache.Delete(ctx, infoKey(l.key))
}

// Holder reports the current holder of key, or nil when it is free.
func Holder(ctx context.Context, c domain.Cache, key string) (*LeaseInfo, error) {
	data, err := c.Get(ctx, infoKey(key))
	if err != nil || data == nil {
		return nil, err
	}
	var info LeaseInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt lease record for %s: %w", key, err)
	}
	return &info, nil
}

// Package lock serializes mutations per resource key. A sale touches a set
// of products, possibly one client and one shift; every caller acquires its
// keys through Acquire, which always takes them in the same global order
// (products sorted by id, then client, then shift) so overlapping sales cannot
// deadlock.
package lock

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// Key identifies one lockable resource. The numeric prefix encodes the
// acquisition rank, so plain string ordering yields the global order.
type Key string

func Producto(id uuid.UUID) Key { return Key("1:producto:" + id.String()) }
func Cliente(id uuid.UUID) Key { return Key("2:cliente:" + id.String()) }
func Turno(id uuid.UUID) Key { return Key("3:turno:" + id.String()) }

// Vendedor guards opening a shift, which must be unique per seller.
func Vendedor(id uuid.UUID) Key { return Key("4:vendedor:" + id.String()) }

// Release gives back every key taken by one Acquire call. Calling it more
// than once is a no-op.
type Release func()

// Locker acquires a set of keys atomically with respect to other Lockers
// sharing the same backend. Acquire blocks until every key is held or ctx
// ends, in which case nothing stays held and a ResourceConflict is returned.
type Locker interface {
	Acquire(ctx context.Context, keys ...Key) (Release, error)
}

// Order deduplicates keys and sorts them into acquisition order.
func Order(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Package cache is the read-through response cache placed in front of
// user-record reads.
//
// Entries are keyed by request path, suffixed with ":user:<id>" when the
// request is authenticated. Each entry carries tags; mutations invalidate by
// tag so a later read never sees a stale body.
//
// Every tag also has a generation that InvalidateTag bumps. A reader takes a
// Snapshot before it renders and hands it to Set, which refuses the write if
// any tag moved in between. A body rendered before an invalidation therefore
// never lands in the cache after it.
package cache

import (
	"context"
	"strconv"
	"time"
)

// Snapshot maps each tag to the generation observed before rendering.
type Snapshot map[string]int64

type Store interface {
	// Get returns the cached body and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Snapshot returns the current generation of every tag.
	Snapshot(ctx context.Context, tags []string) (Snapshot, error)
	// Set stores body under key and records key under every tag in snap,
	// unless one of those tags was invalidated after snap was taken. It
	// reports whether the body was stored.
	Set(ctx context.Context, key string, body []byte, snap Snapshot) (bool, error)
	// InvalidateTag removes every entry recorded under tag, advances the
	// tag's generation and returns how many entries were removed.
	InvalidateTag(ctx context.Context, tag string) (int, error)
}

// Key builds the entry key for a request path and optional user id.
func Key(path, userID string) string {
	if userID == "" {
		return path
	}
	return path + ":user:" + userID
}

// UserTag is the tag carried by every entry that renders the user's record.
func UserTag(id uint) string {
	return "user:" + strconv.FormatUint(uint64(id), 10)
}

// expired reports whether an entry created with ttl at created is stale at
// now. A zero ttl never expires.
func expired(created time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && !now.Before(created.Add(ttl))
}

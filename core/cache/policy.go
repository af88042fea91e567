package cache

import (
	"time"

	"github.com/trezcool/darasa/core"
)

// ShouldFetch is the freshness decision: fetch when nothing is cached or
// the cached value is stale.
func ShouldFetch(hasCached, isFresh bool) bool {
	return !hasCached || !isFresh
}

// Policy maps each entity kind to its TTL regime. Two regimes exist and
// the split is deliberate:
//
//   - aggregate kinds (stats) expire after a short TTL and refetch;
//   - content kinds (course, lessons, progress, notes, instructor,
//     reviews) carry no TTL; any prior write is trusted until it is
//     overwritten or explicitly invalidated. Course content rarely
//     changes mid-session, so these reads stay off the network.
type Policy struct {
	ttls map[Kind]time.Duration
}

// DefaultPolicy builds the regime split above, with the stats TTL taken
// from config (5 minutes by default).
func DefaultPolicy(conf *core.Config) Policy {
	return Policy{ttls: map[Kind]time.Duration{
		KindStats: conf.StatsTTL,
	}}
}

// TTL returns the kind's time-to-live; <= 0 means the pinned regime
// (trust any stamp).
func (p Policy) TTL(kind Kind) time.Duration {
	return p.ttls[kind]
}

// WithTTL returns a copy of the policy with the kind's TTL overridden.
func (p Policy) WithTTL(kind Kind, ttl time.Duration) Policy {
	ttls := make(map[Kind]time.Duration, len(p.ttls)+1)
	for k, v := range p.ttls {
		ttls[k] = v
	}
	ttls[kind] = ttl
	return Policy{ttls: ttls}
}

package store

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// pqStringArray wraps a []string for use as a single $N parameter bound to
// a Postgres text[] column (ANY($1), array_position($1::text[], ...)).
func pqStringArray(ss []string) interface{} {
	return pq.Array(ss)
}

// newClaimToken mints an opaque per-claim token so a worker can only
// extend or release the lease it actually holds.
func newClaimToken() string {
	return uuid.NewString()
}

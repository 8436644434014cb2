// Package settings holds runtime-tunable options as immutable snapshots.
// Readers never lock: they grab the current snapshot and read from it for
// the duration of one request, so a concurrent update can never show them
// a half-applied state.
package settings

import (
	"sync/atomic"
	"time"
)

// Snapshot is one immutable generation of settings. Fields are plain values;
// once published a snapshot is never mutated.
type Snapshot struct {
	Version int64

	// MaxPageSize caps the limit a client may request on list endpoints.
	MaxPageSize int

	// MutationBatchLimit caps how many rows one rule-scoped update or
	// delete may touch. Zero disables the cap.
	MutationBatchLimit int

	// OpenTagReads allows unauthenticated listing of tag catalogs.
	OpenTagReads bool

	UpdatedAt time.Time
}

// Store publishes snapshots and hands out the current one.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Int64
}

// Defaults is the initial generation used before any explicit publish.
func Defaults() Snapshot {
	return Snapshot{
		MaxPageSize:        500,
		MutationBatchLimit: 0,
		OpenTagReads:       false,
	}
}

// NewStore creates a store seeded with the given snapshot as version 1.
func NewStore(initial Snapshot) *Store {
	s := &Store{}
	s.Publish(initial)
	return s
}

// Current returns the latest published snapshot. Never nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Publish installs next as the new current generation, assigning it the next
// version number. The previous snapshot stays valid for readers already
// holding it.
func (s *Store) Publish(next Snapshot) *Snapshot {
	next.Version = s.version.Add(1)
	next.UpdatedAt = time.Now().UTC()
	snap := &next
	s.current.Store(snap)
	return snap
}

// Update copies the current snapshot, applies fn to the copy and publishes
// the result. Concurrent Updates serialize on last-write-wins at the publish
// step; fn must not retain the copy.
func (s *Store) Update(fn func(*Snapshot)) *Snapshot {
	next := *s.Current()
	fn(&next)
	return s.Publish(next)
}

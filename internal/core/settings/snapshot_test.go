package settings

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_VersionsAdvance(t *testing.T) {
	store := NewStore(Defaults())

	first := store.Current()
	require.NotNil(t, first)
	assert.Equal(t, int64(1), first.Version)

	second := store.Publish(Snapshot{MaxPageSize: 100})
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, 100, store.Current().MaxPageSize)
}

func TestStore_UpdateCopiesCurrent(t *testing.T) {
	store := NewStore(Snapshot{MaxPageSize: 500, OpenTagReads: false})

	held := store.Current()
	store.Update(func(s *Snapshot) {
		s.OpenTagReads = true
	})

	// The new generation carries over untouched fields.
	assert.Equal(t, 500, store.Current().MaxPageSize)
	assert.True(t, store.Current().OpenTagReads)

	// A reader holding the old snapshot never sees the change.
	assert.False(t, held.OpenTagReads)
	assert.Equal(t, int64(1), held.Version)
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	store := NewStore(Defaults())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			store.Update(func(s *Snapshot) { s.MaxPageSize = n + 1 })
		}(i)
		go func() {
			defer wg.Done()
			snap := store.Current()
			// Snapshots are internally consistent regardless of publishes.
			assert.GreaterOrEqual(t, snap.Version, int64(1))
			assert.Greater(t, snap.MaxPageSize, 0)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(9), store.Current().Version)
}

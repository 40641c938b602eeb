package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistryReturnsSharedBreaker(t *testing.T) {
	r := NewRegistry(Settings{FailureThreshold: 5, Cooldown: time.Minute})

	var wg sync.WaitGroup
	got := make([]*Breaker, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Get("github")
		}(i)
	}
	wg.Wait()

	for _, b := range got {
		require.Same(t, got[0], b)
	}
}

func TestRegistryOverrides(t *testing.T) {
	r := NewRegistry(
		Settings{FailureThreshold: 5, Cooldown: time.Minute},
		WithOverride("search", Settings{FailureThreshold: 2, Cooldown: 10 * time.Second}),
	)

	require.Equal(t, 5, r.Get("github").Snapshot().FailureThreshold)
	search := r.Get("search").Snapshot()
	require.Equal(t, 2, search.FailureThreshold)
	require.Equal(t, 10*time.Second, search.Cooldown)
}

func TestRegistrySnapshotsSortedAndResetAll(t *testing.T) {
	r := NewRegistry(Settings{FailureThreshold: 1, Cooldown: time.Hour})
	ctx := context.Background()
	var calls int32
	_ = r.Get("search").Call(ctx, failing(&calls))
	_ = r.Get("github").Call(ctx, failing(&calls))
	r.Get("reasoning")

	snaps := r.Snapshots()
	require.Len(t, snaps, 3)
	require.Equal(t, "github", snaps[0].Name)
	require.Equal(t, "reasoning", snaps[1].Name)
	require.Equal(t, "search", snaps[2].Name)
	require.Equal(t, StateOpen, snaps[0].State)

	r.ResetAll()
	for _, s := range r.Snapshots() {
		require.Equal(t, StateClosed, s.State)
	}
}

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmind/crewmind-go/pkg/memory"
)

func TestRegistryReturnsSameManagerPerUser(t *testing.T) {
	registry, err := memory.NewRegistry(newFakeStore(), newFakeEmbedder("x"), nil)
	require.NoError(t, err)

	first, err := registry.Manager("alice")
	require.NoError(t, err)
	second, err := registry.Manager("alice")
	require.NoError(t, err)
	other, err := registry.Manager("bob")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, registry.Size())
}

func TestRegistryEvictsIdleManagers(t *testing.T) {
	registry, err := memory.NewRegistry(newFakeStore(), newFakeEmbedder("x"), nil)
	require.NoError(t, err)
	registry.SetManagerTTL(10 * time.Millisecond)

	_, err = registry.Manager("alice")
	require.NoError(t, err)
	require.Equal(t, 1, registry.Size())

	time.Sleep(20 * time.Millisecond)

	// Eviction is lazy, checked on the next access.
	_, err = registry.Manager("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Size())
}

func TestRegistryMaintenanceEntryPoints(t *testing.T) {
	store := newFakeStore()
	registry, err := memory.NewRegistry(store, newFakeEmbedder("x"), nil)
	require.NoError(t, err)
	ctx := context.Background()

	mgr, err := registry.Manager("alice")
	require.NoError(t, err)
	_, err = mgr.Store(ctx, &memory.Item{Type: memory.TypePreference, Content: "I prefer dark mode", Relevance: 0.7}, false)
	require.NoError(t, err)
	_, err = mgr.Store(ctx, &memory.Item{Type: memory.TypePreference, Content: "I prefer the dark mode", Relevance: 0.5}, false)
	require.NoError(t, err)

	result, err := registry.ConsolidateMemories(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 1, result.Removed)

	affected, err := registry.DecayOldMemories(ctx, "alice", 30)
	require.NoError(t, err)
	assert.Zero(t, affected, "freshly touched items do not decay")

	am, err := registry.BuildAgentMemory(ctx, "alice", "")
	require.NoError(t, err)
	require.NotNil(t, am)
	assert.Len(t, am.ShortTerm, 1)
}

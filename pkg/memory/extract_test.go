package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmind/crewmind-go/pkg/memory"
)

func TestExtractFromConversationTypesAndRelevance(t *testing.T) {
	store := newFakeStore()
	mgr := newTestManager(t, store, newFakeEmbedder("x"))

	messages := []memory.ConversationMessage{
		{Role: "user", Content: "I work at Initech on the billing team. I prefer concise answers. We decided to migrate to Postgres next quarter."},
		{Role: "assistant", Content: "Understood, noted the migration plan."},
	}

	items, err := mgr.ExtractFromConversation(context.Background(), messages, "general")
	require.NoError(t, err)
	require.NotEmpty(t, items)

	byType := map[memory.ItemType]*memory.Item{}
	for _, item := range items {
		byType[item.Type] = item
		assert.Equal(t, "general", item.Source)
	}

	require.Contains(t, byType, memory.TypeFact)
	require.Contains(t, byType, memory.TypePreference)
	require.Contains(t, byType, memory.TypeDecision)

	assert.InDelta(t, 0.6, byType[memory.TypeFact].Relevance, 1e-9)
	assert.InDelta(t, 0.7, byType[memory.TypePreference].Relevance, 1e-9)
	assert.InDelta(t, 0.8, byType[memory.TypeDecision].Relevance, 1e-9)
}

func TestExtractFromConversationSkipsShortMessages(t *testing.T) {
	store := newFakeStore()
	mgr := newTestManager(t, store, newFakeEmbedder("x"))

	items, err := mgr.ExtractFromConversation(context.Background(), []memory.ConversationMessage{
		{Role: "user", Content: "I like tea"},
	}, "general")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, store.count("user_test"))
}

func TestExtractFromConversationConsolidatesBursts(t *testing.T) {
	store := newFakeStore()
	mgr := newTestManager(t, store, newFakeEmbedder("x"))

	// Six near-identical preference statements in one exchange: more than
	// five extracted items triggers an immediate consolidation pass.
	messages := []memory.ConversationMessage{
		{Role: "user", Content: "I prefer short standup meetings. I prefer short standup meeting notes."},
		{Role: "user", Content: "I prefer short standup meetings today. I prefer short standup meetings again."},
		{Role: "user", Content: "I prefer short standup meetings still. I prefer short standup meetings always."},
	}

	items, err := mgr.ExtractFromConversation(context.Background(), messages, "general")
	require.NoError(t, err)
	assert.Len(t, items, 6)

	assert.Less(t, store.count("user_test"), 6, "burst should have been consolidated")
}

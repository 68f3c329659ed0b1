package memory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/crewmind/crewmind-go/pkg/embedder"
	"github.com/crewmind/crewmind-go/pkg/storage"
)

const (
	// semanticScanLimit bounds how many recent embedded items one
	// semantic search loads for scoring.
	semanticScanLimit = 100

	// minEmbedContentLen is the content length below which no embedding
	// is generated on Store.
	minEmbedContentLen = 10

	// shortTermLimit is the number of recent items in AgentMemory.ShortTerm.
	shortTermLimit = 10

	// shortTermMinRelevance is the relevance floor for short-term items.
	shortTermMinRelevance = 0.3

	// longTermLimit is the number of items in AgentMemory.LongTerm.
	longTermLimit = 10

	// longTermMinRelevance is the relevance floor for long-term items
	// when no query is available.
	longTermMinRelevance = 0.7

	// hybridSimilarityFloor is the stricter similarity floor used by the
	// semantic half of hybrid retrieval.
	hybridSimilarityFloor = 0.6

	// hybridKeywordCount caps the keywords used by the keyword half of
	// hybrid retrieval.
	hybridKeywordCount = 3
)

// Manager manages memory items for a single user.
//
// A manager owns a short-lived read cache for the keyword retrieval path;
// any mutation invalidates the whole cache. Managers are obtained from a
// Registry, which guarantees one live manager per active user.
//
// Example usage:
//
//	mgr, _ := memory.NewManager("user_001", store, emb, nil, logger)
//	item, _ := mgr.Store(ctx, &memory.Item{
//	    Type:    memory.TypePreference,
//	    Content: "I prefer dark mode",
//	}, true)
type Manager struct {
	userID   string
	store    storage.Store
	embedder embedder.Provider
	node     *snowflake.Node
	cache    *retrieveCache
	logger   *zap.Logger
}

// NewManager creates a memory manager for one user.
//
// Parameters:
//   - userID: Owner of all items this manager touches
//   - store: Persistence backend
//   - emb: Embedding provider (may be degraded; failures are non-fatal)
//   - node: Snowflake node for id generation (a new node 1 is created if nil)
//   - logger: Structured logger (zap.NewNop() if nil)
func NewManager(userID string, store storage.Store, emb embedder.Provider, node *snowflake.Node, logger *zap.Logger) (*Manager, error) {
	if node == nil {
		var err error
		node, err = snowflake.NewNode(1)
		if err != nil {
			return nil, newError("NewManager", err)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		userID:   userID,
		store:    store,
		embedder: emb,
		node:     node,
		cache:    newRetrieveCache(retrieveCacheTTL),
		logger:   logger.With(zap.String("user_id", userID)),
	}, nil
}

// UserID returns the owner of this manager's items.
func (m *Manager) UserID() string {
	return m.userID
}

// Store persists a new memory item.
//
// The method assigns a generated id and timestamps, then attempts to obtain
// an embedding when generateEmbedding is true and the content is longer than
// 10 characters. Embedding failure is non-fatal: the item is stored without
// a vector and remains retrievable through the keyword path.
//
// Any successful store invalidates the read cache.
func (m *Manager) Store(ctx context.Context, item *Item, generateEmbedding bool) (*Item, error) {
	now := time.Now()
	item.ID = m.node.Generate().Int64()
	item.UserID = m.userID
	item.Relevance = clampRelevance(item.Relevance)
	item.CreatedAt = now
	item.UpdatedAt = now

	if generateEmbedding && len(item.Content) > minEmbedContentLen && m.embedder != nil {
		vec, err := m.embedder.Embed(ctx, embedder.Truncate(item.Content))
		if err != nil {
			m.logger.Warn("embedding generation failed, storing item without vector",
				zap.Int64("item_id", item.ID),
				zap.Error(err))
		} else {
			item.Embedding = vec
		}
	}

	if err := m.store.Insert(ctx, toStorageItem(item)); err != nil {
		return nil, newError("Store", err)
	}

	m.cache.invalidate()
	return item, nil
}

// SemanticSearch finds items similar to the query text.
//
// Up to the 100 most recent embedded items are loaded and scored by cosine
// similarity. Items whose stored vector does not match the provider's
// dimensionality are excluded from scoring, not treated as zero-similarity;
// the skip count is logged for operator visibility.
//
// Returns an empty result (not an error) when the user has no embedded
// items yet, or when the manager was built without an embedding provider;
// the keyword path stays fully functional in that degraded mode.
// Results are sorted by similarity descending.
func (m *Manager) SemanticSearch(ctx context.Context, query string, limit int, minSimilarity float64) ([]*ScoredItem, error) {
	if m.embedder == nil {
		return nil, nil
	}

	queryVec, err := m.embedder.Embed(ctx, embedder.Truncate(query))
	if err != nil {
		return nil, newError("SemanticSearch", err)
	}

	items, err := m.store.ListEmbedded(ctx, m.userID, semanticScanLimit)
	if err != nil {
		return nil, newError("SemanticSearch", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	dims := m.embedder.Dimensions()
	skipped := 0
	var scored []*ScoredItem
	for _, it := range items {
		if len(it.Embedding) != dims {
			skipped++
			continue
		}
		sim := CosineSimilarity(queryVec, it.Embedding)
		if sim >= minSimilarity {
			scored = append(scored, &ScoredItem{Item: fromStorageItem(it), Similarity: sim})
		}
	}

	if skipped > 0 {
		m.logger.Warn("semantic search skipped items with stale embedding dimensions",
			zap.Int("skipped", skipped),
			zap.Int("expected_dims", dims))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

// Retrieve runs the keyword/structured query path.
//
// Results are ordered by relevance DESC, created_at DESC and served from a
// read-through cache with a 5-minute TTL keyed by the serialized option set.
// Any mutation clears the entire cache for this user.
func (m *Manager) Retrieve(ctx context.Context, opts *RetrieveOptions) ([]*Item, error) {
	if opts == nil {
		opts = &RetrieveOptions{}
	}

	key := cacheKey(opts)
	if items, ok := m.cache.get(key); ok {
		return items, nil
	}

	stored, err := m.store.List(ctx, m.userID, &storage.ListOptions{
		Type:         string(opts.Type),
		Source:       opts.Source,
		MinRelevance: opts.MinRelevance,
		Contains:     opts.Contains,
		Limit:        opts.Limit,
	})
	if err != nil {
		return nil, newError("Retrieve", err)
	}

	items := fromStorageItems(stored)
	m.cache.put(key, items)
	return items, nil
}

// GetRelevant performs hybrid retrieval for a query.
//
// Half the budget is served by semantic search at a stricter similarity
// floor (0.6); the remainder by keyword retrieval over up to 3 extracted
// non-stopword keywords. The merged set is deduplicated by id keeping the
// highest-relevance copy, sorted by relevance descending, and truncated.
func (m *Manager) GetRelevant(ctx context.Context, query string, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = longTermLimit
	}
	semBudget := limit / 2
	if semBudget == 0 {
		semBudget = 1
	}
	kwBudget := limit - semBudget
	if kwBudget == 0 {
		kwBudget = 1
	}

	merged := make(map[int64]*Item)

	scored, err := m.SemanticSearch(ctx, query, semBudget, hybridSimilarityFloor)
	if err != nil {
		m.logger.Warn("semantic half of hybrid retrieval failed, continuing keyword-only",
			zap.Error(err))
	}
	for _, s := range scored {
		merged[s.ID] = s.Item
	}

	for _, kw := range ExtractKeywords(query, hybridKeywordCount) {
		items, err := m.Retrieve(ctx, &RetrieveOptions{Contains: kw, Limit: kwBudget})
		if err != nil {
			m.logger.Warn("keyword retrieval failed", zap.String("keyword", kw), zap.Error(err))
			continue
		}
		for _, it := range items {
			if existing, ok := merged[it.ID]; !ok || it.Relevance > existing.Relevance {
				merged[it.ID] = it
			}
		}
	}

	result := make([]*Item, 0, len(merged))
	for _, it := range merged {
		result = append(result, it)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Relevance > result[j].Relevance
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateRelevance adjusts an item's relevance by delta, clamped to [0,1].
func (m *Manager) UpdateRelevance(ctx context.Context, id int64, delta float64) (*Item, error) {
	stored, err := m.store.Get(ctx, m.userID, id)
	if err != nil {
		return nil, newError("UpdateRelevance", err)
	}

	stored.Relevance = clampRelevance(stored.Relevance + delta)
	stored.UpdatedAt = time.Now()

	if err := m.store.Update(ctx, stored); err != nil {
		return nil, newError("UpdateRelevance", err)
	}

	m.cache.invalidate()
	return fromStorageItem(stored), nil
}

// Delete removes a single item.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if err := m.store.Delete(ctx, m.userID, id); err != nil {
		return newError("Delete", err)
	}
	m.cache.invalidate()
	return nil
}

// ClearAll removes every item belonging to this user.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := m.store.DeleteAll(ctx, m.userID); err != nil {
		return newError("ClearAll", err)
	}
	m.cache.invalidate()
	return nil
}

// BuildAgentMemory assembles the memory excerpt handed to agents.
//
// ShortTerm holds the 10 most recent items with relevance >= 0.3. LongTerm
// holds hybrid-relevant items for the query when one is given, otherwise the
// 10 highest-relevance items at >= 0.7.
//
// Memory is an enhancement, not a dependency of correctness: retrieval
// failures are logged and the corresponding section is left empty.
func (m *Manager) BuildAgentMemory(ctx context.Context, query string) *AgentMemory {
	am := &AgentMemory{}

	recent, err := m.Retrieve(ctx, &RetrieveOptions{MinRelevance: shortTermMinRelevance})
	if err != nil {
		m.logger.Warn("short-term memory retrieval failed", zap.Error(err))
	} else {
		sort.SliceStable(recent, func(i, j int) bool {
			return recent[i].CreatedAt.After(recent[j].CreatedAt)
		})
		if len(recent) > shortTermLimit {
			recent = recent[:shortTermLimit]
		}
		am.ShortTerm = recent
	}

	if query != "" {
		longTerm, err := m.GetRelevant(ctx, query, longTermLimit)
		if err != nil {
			m.logger.Warn("long-term memory retrieval failed", zap.Error(err))
		} else {
			am.LongTerm = longTerm
		}
		return am
	}

	longTerm, err := m.Retrieve(ctx, &RetrieveOptions{MinRelevance: longTermMinRelevance, Limit: longTermLimit})
	if err != nil {
		m.logger.Warn("long-term memory retrieval failed", zap.Error(err))
		return am
	}
	am.LongTerm = longTerm
	return am
}

// cacheKey serializes a retrieval option set into a cache key.
func cacheKey(opts *RetrieveOptions) string {
	b, err := json.Marshal(opts)
	if err != nil {
		return ""
	}
	return string(b)
}

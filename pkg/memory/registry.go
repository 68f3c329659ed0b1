package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/crewmind/crewmind-go/pkg/embedder"
	"github.com/crewmind/crewmind-go/pkg/storage"
)

// DefaultManagerTTL is how long an idle manager stays in the registry.
const DefaultManagerTTL = 30 * time.Minute

// Registry hands out one live Manager per active user.
//
// Managers are created lazily on first access and evicted after sitting
// idle longer than the configured TTL; eviction is checked lazily on each
// access, keeping the lifecycle explicit with no background sweeper.
type Registry struct {
	mu       sync.Mutex
	store    storage.Store
	embedder embedder.Provider
	node     *snowflake.Node
	logger   *zap.Logger
	ttl      time.Duration
	managers map[string]*registryEntry
}

type registryEntry struct {
	manager  *Manager
	lastUsed time.Time
}

// NewRegistry creates a manager registry over shared store and embedder.
//
// Parameters:
//   - store: Persistence backend shared by all managers
//   - emb: Embedding provider shared by all managers
//   - logger: Structured logger (zap.NewNop() if nil)
func NewRegistry(store storage.Store, emb embedder.Provider, logger *zap.Logger) (*Registry, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, newError("NewRegistry", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		store:    store,
		embedder: emb,
		node:     node,
		logger:   logger,
		ttl:      DefaultManagerTTL,
		managers: make(map[string]*registryEntry),
	}, nil
}

// SetManagerTTL overrides the idle eviction TTL.
func (r *Registry) SetManagerTTL(ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttl = ttl
}

// Manager returns the manager for userID, creating it on first use.
func (r *Registry) Manager(userID string) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.evictStaleLocked(now)

	if entry, ok := r.managers[userID]; ok {
		entry.lastUsed = now
		return entry.manager, nil
	}

	mgr, err := NewManager(userID, r.store, r.embedder, r.node, r.logger)
	if err != nil {
		return nil, err
	}

	r.managers[userID] = &registryEntry{manager: mgr, lastUsed: now}
	return mgr, nil
}

// evictStaleLocked drops managers idle beyond the TTL. Caller holds r.mu.
func (r *Registry) evictStaleLocked(now time.Time) {
	for userID, entry := range r.managers {
		if now.Sub(entry.lastUsed) > r.ttl {
			delete(r.managers, userID)
			r.logger.Debug("evicted idle memory manager", zap.String("user_id", userID))
		}
	}
}

// Size reports the number of live managers.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// BuildAgentMemory assembles the memory excerpt for a user's request.
// This is the entry point callers use when preparing an agent context.
func (r *Registry) BuildAgentMemory(ctx context.Context, userID, query string) (*AgentMemory, error) {
	mgr, err := r.Manager(userID)
	if err != nil {
		return nil, err
	}
	return mgr.BuildAgentMemory(ctx, query), nil
}

// ConsolidateMemories runs a consolidation pass for one user.
// Intended to be invoked by an external scheduler, not by the request path.
func (r *Registry) ConsolidateMemories(ctx context.Context, userID string) (*ConsolidateResult, error) {
	mgr, err := r.Manager(userID)
	if err != nil {
		return nil, err
	}
	return mgr.Consolidate(ctx)
}

// DecayOldMemories runs a decay pass for one user.
// Intended to be invoked by an external scheduler, not by the request path.
func (r *Registry) DecayOldMemories(ctx context.Context, userID string, days int) (int, error) {
	mgr, err := r.Manager(userID)
	if err != nil {
		return 0, err
	}
	return mgr.ApplyDecay(ctx, days, DefaultDecayFactor)
}

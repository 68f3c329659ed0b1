// Package memory provides per-user storage, hybrid retrieval, consolidation,
// and decay of learned information extracted from conversations.
package memory

import (
	"time"

	"github.com/crewmind/crewmind-go/pkg/storage"
)

// ItemType classifies a memory item.
type ItemType string

const (
	// TypeFact is an objective statement about the user or their world.
	TypeFact ItemType = "fact"

	// TypePreference is a stated like, dislike, or working preference.
	TypePreference ItemType = "preference"

	// TypeContext is situational background captured for later recall.
	TypeContext ItemType = "context"

	// TypeDecision is a commitment or choice the user has made.
	TypeDecision ItemType = "decision"

	// TypeOutcome records the result of an earlier decision or action.
	TypeOutcome ItemType = "outcome"
)

// Item is a persisted unit of learned information.
//
// Relevance is a decaying, boostable score in [0,1] reflecting current
// usefulness; it drifts over the item's lifetime through UpdateRelevance,
// Consolidate, and ApplyDecay.
type Item struct {
	// ID is the unique identifier of the item.
	ID int64 `json:"id"`

	// UserID identifies the user who owns this item.
	UserID string `json:"user_id"`

	// Type classifies the item.
	Type ItemType `json:"type"`

	// Content is the text content of the item.
	Content string `json:"content"`

	// Source is the role of the agent that produced the item.
	Source string `json:"source,omitempty"`

	// Relevance is the current usefulness score, clamped to [0,1].
	Relevance float64 `json:"relevance"`

	// Metadata contains additional structured information.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Embedding is the vector embedding; empty when generation failed or
	// was skipped. Omitted from JSON to reduce payload size.
	Embedding []float64 `json:"-"`

	// CreatedAt is when the item was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the item was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// ExpiresAt is an optional expiry time.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ScoredItem is an Item plus a similarity score in [-1,1].
// Produced only by semantic search; never persisted.
type ScoredItem struct {
	*Item

	// Similarity is the cosine similarity against the query embedding.
	Similarity float64 `json:"similarity"`
}

// AgentMemory is the memory excerpt handed to agents for one request.
type AgentMemory struct {
	// ShortTerm holds the most recent items above a minimal relevance.
	ShortTerm []*Item `json:"short_term"`

	// LongTerm holds durable items, query-relevant when a query was given.
	LongTerm []*Item `json:"long_term"`
}

// RetrieveOptions contains filters for the keyword/structured query path.
type RetrieveOptions struct {
	// Type filters by item type (empty = all types).
	Type ItemType `json:"type,omitempty"`

	// Source filters by producing agent role (empty = all sources).
	Source string `json:"source,omitempty"`

	// MinRelevance filters out items below this relevance.
	MinRelevance float64 `json:"min_relevance,omitempty"`

	// Contains filters by substring match on content.
	Contains string `json:"contains,omitempty"`

	// Limit sets the maximum number of results (0 = unlimited).
	Limit int `json:"limit,omitempty"`
}

// ConsolidateResult reports the outcome of a consolidation pass.
type ConsolidateResult struct {
	// Merged is the number of groups that were collapsed.
	Merged int `json:"merged"`

	// Removed is the number of items deleted by the pass.
	Removed int `json:"removed"`
}

// ConversationMessage is the minimal message shape extraction operates on.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// toStorageItem converts a memory Item to its storage representation.
func toStorageItem(item *Item) *storage.Item {
	return &storage.Item{
		ID:        item.ID,
		UserID:    item.UserID,
		Type:      string(item.Type),
		Content:   item.Content,
		Source:    item.Source,
		Relevance: item.Relevance,
		Metadata:  item.Metadata,
		Embedding: item.Embedding,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
		ExpiresAt: item.ExpiresAt,
	}
}

// fromStorageItem converts a storage Item back to the memory representation.
func fromStorageItem(item *storage.Item) *Item {
	return &Item{
		ID:        item.ID,
		UserID:    item.UserID,
		Type:      ItemType(item.Type),
		Content:   item.Content,
		Source:    item.Source,
		Relevance: item.Relevance,
		Metadata:  item.Metadata,
		Embedding: item.Embedding,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
		ExpiresAt: item.ExpiresAt,
	}
}

// fromStorageItems converts a slice of storage items.
func fromStorageItems(items []*storage.Item) []*Item {
	result := make([]*Item, len(items))
	for i, item := range items {
		result[i] = fromStorageItem(item)
	}
	return result
}

// clampRelevance bounds a relevance score to [0,1].
func clampRelevance(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

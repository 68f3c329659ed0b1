// Package storage provides interfaces and types for memory item persistence.
//
// It defines the Store interface that all storage backends must satisfy.
// Backends persist embeddings as serialized vectors; similarity scoring is
// performed by callers in application code, so a plain relational store is
// sufficient.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates that a requested memory item was not found
// (or is not visible to the requesting user).
var ErrNotFound = errors.New("memory item not found")

// Item represents a persisted unit of learned information.
//
// This type is defined in the storage package to avoid circular dependencies
// with the memory package. It mirrors the memory.Item structure.
type Item struct {
	// ID is the unique identifier of the item.
	ID int64

	// UserID identifies the user who owns this item. Items belong to
	// exactly one user; no cross-user visibility.
	UserID string

	// Type classifies the item: fact, preference, context, decision, outcome.
	Type string

	// Content is the text content of the item.
	Content string

	// Source is the role of the agent that produced the item.
	Source string

	// Relevance is the current usefulness score, always within [0,1].
	Relevance float64

	// Metadata contains additional structured information.
	Metadata map[string]interface{}

	// Embedding is the vector embedding, empty when generation failed
	// or was skipped. Items without an embedding remain retrievable
	// through the keyword path.
	Embedding []float64

	// CreatedAt is when the item was created.
	CreatedAt time.Time

	// UpdatedAt is when the item was last modified.
	UpdatedAt time.Time

	// ExpiresAt is an optional expiry; expired items are excluded from
	// List and ListEmbedded results.
	ExpiresAt *time.Time
}

// ListOptions contains filters for List operations.
//
// Results are always ordered by relevance DESC, created_at DESC.
type ListOptions struct {
	// Type filters by item type (empty = all types).
	Type string

	// Source filters by producing agent role (empty = all sources).
	Source string

	// MinRelevance filters out items below this relevance.
	MinRelevance float64

	// Contains filters by substring match on content.
	Contains string

	// Limit sets the maximum number of results (0 = unlimited).
	Limit int
}

// Store defines the interface for memory item storage backends.
//
// All operations are scoped by user id; a backend must never return
// another user's items.
type Store interface {
	// Insert persists a new item.
	Insert(ctx context.Context, item *Item) error

	// Get retrieves an item by id for the given user.
	// Returns ErrNotFound if the item does not exist or belongs to
	// another user.
	Get(ctx context.Context, userID string, id int64) (*Item, error)

	// Update replaces an item's mutable fields (content, relevance,
	// embedding, metadata, updated_at). Returns ErrNotFound if the item
	// does not exist or belongs to another user.
	Update(ctx context.Context, item *Item) error

	// Delete removes an item by id for the given user.
	// Returns ErrNotFound if the item does not exist or belongs to
	// another user.
	Delete(ctx context.Context, userID string, id int64) error

	// DeleteAll removes every item belonging to the given user.
	DeleteAll(ctx context.Context, userID string) error

	// List retrieves items for a user matching the given filters,
	// ordered by relevance DESC, created_at DESC.
	List(ctx context.Context, userID string, opts *ListOptions) ([]*Item, error)

	// ListEmbedded retrieves up to limit of the user's most recently
	// created items that carry an embedding, newest first.
	ListEmbedded(ctx context.Context, userID string, limit int) ([]*Item, error)

	// Close closes the store and releases resources.
	Close() error
}

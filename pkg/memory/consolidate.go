package memory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// consolidateScanLimit bounds how many items one consolidation pass loads.
	consolidateScanLimit = 500

	// consolidateThreshold is the Jaccard word-set similarity above which
	// two items are considered near-duplicates.
	consolidateThreshold = 0.7

	// consolidateBoost is the relevance boost per absorbed duplicate.
	consolidateBoost = 0.1
)

// Consolidate merges near-duplicate items.
//
// Up to 500 items are loaded and compared pairwise by Jaccard word-set
// similarity. Any pair exceeding 0.7 is grouped; within a group, the item
// with the highest relevance survives and is boosted by 0.1 per absorbed
// duplicate (capped at 1.0), the rest are deleted.
//
// This is an O(n^2) batch maintenance operation, intended to run
// periodically or after a burst of extraction, not per-request.
func (m *Manager) Consolidate(ctx context.Context) (*ConsolidateResult, error) {
	stored, err := m.store.List(ctx, m.userID, nil)
	if err != nil {
		return nil, newError("Consolidate", err)
	}
	if len(stored) > consolidateScanLimit {
		stored = stored[:consolidateScanLimit]
	}

	items := fromStorageItems(stored)
	processed := make([]bool, len(items))
	result := &ConsolidateResult{}

	for i := range items {
		if processed[i] {
			continue
		}
		processed[i] = true

		group := []*Item{items[i]}
		for j := i + 1; j < len(items); j++ {
			if processed[j] {
				continue
			}
			if JaccardSimilarity(items[i].Content, items[j].Content) > consolidateThreshold {
				processed[j] = true
				group = append(group, items[j])
			}
		}

		if len(group) < 2 {
			continue
		}

		keeper := group[0]
		for _, it := range group[1:] {
			if it.Relevance > keeper.Relevance {
				keeper = it
			}
		}

		keeper.Relevance = clampRelevance(keeper.Relevance + consolidateBoost*float64(len(group)-1))
		keeper.UpdatedAt = time.Now()
		if err := m.store.Update(ctx, toStorageItem(keeper)); err != nil {
			m.logger.Warn("consolidation keeper update failed",
				zap.Int64("item_id", keeper.ID),
				zap.Error(err))
		}

		for _, it := range group {
			if it.ID == keeper.ID {
				continue
			}
			if err := m.store.Delete(ctx, m.userID, it.ID); err != nil {
				m.logger.Warn("consolidation delete failed",
					zap.Int64("item_id", it.ID),
					zap.Error(err))
				continue
			}
			result.Removed++
		}
		result.Merged += len(group) - 1
	}

	if result.Removed > 0 {
		m.cache.invalidate()
	}

	return result, nil
}

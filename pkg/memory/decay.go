package memory

import (
	"context"
	"time"
)

const (
	// DefaultDecayDays is the staleness threshold after which items decay.
	DefaultDecayDays = 30

	// DefaultDecayFactor is the relevance step subtracted per decay pass.
	DefaultDecayFactor = 0.1

	// decayFloor is the minimum relevance a decay pass leaves behind.
	// Items never decay to zero through this path, preserving
	// retrievability.
	decayFloor = 0.1
)

// ApplyDecay reduces the relevance of stale items.
//
// Every item not updated within daysThreshold days and with relevance above
// the 0.1 floor loses decayFactor relevance, floored at 0.1. Non-positive
// arguments select the defaults (30 days, 0.1).
//
// Returns the number of affected items.
func (m *Manager) ApplyDecay(ctx context.Context, daysThreshold int, decayFactor float64) (int, error) {
	if daysThreshold <= 0 {
		daysThreshold = DefaultDecayDays
	}
	if decayFactor <= 0 {
		decayFactor = DefaultDecayFactor
	}

	stored, err := m.store.List(ctx, m.userID, nil)
	if err != nil {
		return 0, newError("ApplyDecay", err)
	}

	cutoff := time.Now().AddDate(0, 0, -daysThreshold)
	affected := 0

	for _, it := range stored {
		if !it.UpdatedAt.Before(cutoff) || it.Relevance <= decayFloor {
			continue
		}

		it.Relevance = it.Relevance - decayFactor
		if it.Relevance < decayFloor {
			it.Relevance = decayFloor
		}

		if err := m.store.Update(ctx, it); err != nil {
			return affected, newError("ApplyDecay", err)
		}
		affected++
	}

	if affected > 0 {
		m.cache.invalidate()
	}

	return affected, nil
}

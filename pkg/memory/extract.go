package memory

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	// minExtractLen is the message length below which extraction is skipped.
	minExtractLen = 20

	// consolidateAfter triggers a consolidation pass when one extraction
	// call produced more than this many items.
	consolidateAfter = 5
)

// patternFamily is one data-driven extraction rule set.
//
// Families stay literal and inspectable on purpose: the triggers are
// first-person statements, and the starting relevance reflects how durable
// each kind of information tends to be (decisions outlast facts).
type patternFamily struct {
	itemType  ItemType
	relevance float64
	patterns  []*regexp.Regexp
}

var extractionFamilies = []patternFamily{
	{
		itemType:  TypeFact,
		relevance: 0.6,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:my|our)\s+[\w][\w\s]{1,40}?\s+is\s+[^.!?\n]{2,120}`),
			regexp.MustCompile(`(?i)\bi(?:'m| am)\s+(?:a|an|the)\s+[^.!?\n]{2,120}`),
			regexp.MustCompile(`(?i)\bi work\s+(?:at|for|on|with)\s+[^.!?\n]{2,120}`),
			regexp.MustCompile(`(?i)\bwe(?:'re| are)\s+(?:using|building|running)\s+[^.!?\n]{2,120}`),
		},
	},
	{
		itemType:  TypePreference,
		relevance: 0.7,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi prefer\s+[^.!?\n]{2,120}`),
			regexp.MustCompile(`(?i)\bi(?:'d| would)\s+rather\s+[^.!?\n]{2,120}`),
			regexp.MustCompile(`(?i)\bi (?:like|love|enjoy)\s+[^.!?\n]{2,120}`),
			regexp.MustCompile(`(?i)\bi (?:dislike|hate|avoid)\s+[^.!?\n]{2,120}`),
		},
	},
	{
		itemType:  TypeDecision,
		relevance: 0.8,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:i|we)\s+(?:have\s+)?decided to\s+[^.!?\n]{2,120}`),
			regexp.MustCompile(`(?i)\b(?:we|i)(?:'re| are| am)?\s+going to\s+[^.!?\n]{2,120}`),
			regexp.MustCompile(`(?i)\blet's go with\s+[^.!?\n]{2,120}`),
			regexp.MustCompile(`(?i)\b(?:we|i)(?:'ll| will)\s+(?:use|switch to|adopt)\s+[^.!?\n]{2,120}`),
		},
	},
}

// ExtractFromConversation mines typed memory items out of an exchange.
//
// Each message longer than 20 characters is run through three independent
// pattern families (facts, preferences, decisions); every match is stored as
// a typed item with a fixed starting relevance per type. When one call
// extracts more than 5 items, a consolidation pass runs immediately.
//
// Parameters:
//   - ctx: Context for cancellation
//   - messages: The exchange to mine
//   - source: Role of the agent that produced the exchange
//
// Returns the stored items. Individual store failures are logged and
// skipped; the call only fails when nothing could be persisted at all.
func (m *Manager) ExtractFromConversation(ctx context.Context, messages []ConversationMessage, source string) ([]*Item, error) {
	var extracted []*Item
	var lastErr error

	for _, msg := range messages {
		if len(msg.Content) <= minExtractLen {
			continue
		}

		for _, family := range extractionFamilies {
			for _, pattern := range family.patterns {
				for _, match := range pattern.FindAllString(msg.Content, -1) {
					content := strings.TrimSpace(match)
					if content == "" {
						continue
					}

					item, err := m.Store(ctx, &Item{
						Type:      family.itemType,
						Content:   content,
						Source:    source,
						Relevance: family.relevance,
					}, true)
					if err != nil {
						m.logger.Warn("failed to store extracted item",
							zap.String("type", string(family.itemType)),
							zap.Error(err))
						lastErr = err
						continue
					}
					extracted = append(extracted, item)
				}
			}
		}
	}

	if len(extracted) == 0 && lastErr != nil {
		return nil, newError("ExtractFromConversation", lastErr)
	}

	if len(extracted) > consolidateAfter {
		if _, err := m.Consolidate(ctx); err != nil {
			m.logger.Warn("post-extraction consolidation failed", zap.Error(err))
		}
	}

	return extracted, nil
}

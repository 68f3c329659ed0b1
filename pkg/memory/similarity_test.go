package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crewmind/crewmind-go/pkg/memory"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"dimension mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0.0},
		{"zero norm", []float64{0, 0}, []float64{1, 2}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, memory.CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "dark mode please", "dark mode please", 1.0},
		{"case insensitive", "Dark Mode", "dark mode", 1.0},
		{"partial overlap", "i prefer dark mode", "i prefer dark mode ui", 0.8},
		{"disjoint", "alpha beta", "gamma delta", 0.0},
		{"empty side", "", "dark mode", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, memory.JaccardSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		max   int
		want  []string
	}{
		{"stopwords dropped", "show me the sales pipeline", 3, []string{"sales", "pipeline"}},
		{"short words dropped", "go to qa env now", 3, []string{"env", "now"}},
		{"deduplicated", "sales sales sales pipeline", 3, []string{"sales", "pipeline"}},
		{"capped at max", "quarterly revenue forecast spreadsheet numbers", 3, []string{"quarterly", "revenue", "forecast"}},
		{"nothing usable", "to be or", 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, memory.ExtractKeywords(tt.query, tt.max))
		})
	}
}

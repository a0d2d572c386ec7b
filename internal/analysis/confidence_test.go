package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreConfidence(t *testing.T) {
	tests := []struct {
		name        string
		stats       contextStats
		responseLen int
		want        float64
	}{
		{
			name:        "full_signal",
			stats:       contextStats{Snippets: 10, Complete: 10, ContextLen: 8000},
			responseLen: 1200,
			want:        1.0,
		},
		{
			name:        "floor_applies_to_weak_success",
			stats:       contextStats{Snippets: 1, Complete: 0, ContextLen: 90},
			responseLen: 40,
			want:        minSuccessConfidence,
		},
		{
			name:        "partial_signal",
			stats:       contextStats{Snippets: 5, Complete: 5, ContextLen: 4000},
			responseLen: 400,
			// 0.3*0.5 + 0.2*1.0 + 0.2*0.5 + 0.3*0.5
			want: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreConfidence(tt.stats, tt.responseLen)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestScoreConfidenceNeverExceedsOne(t *testing.T) {
	got := scoreConfidence(contextStats{Snippets: 50, Complete: 50, ContextLen: 50000}, 100000)
	assert.LessOrEqual(t, got, 1.0)
}

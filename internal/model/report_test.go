package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoresOf(ranks ...int) []BrandScore {
	out := make([]BrandScore, len(ranks))
	for i, r := range ranks {
		out[i] = BrandScore{BrandName: "Brand", VisibilityScore: 50, Rank: r, Mentions: 1}
	}
	return out
}

func TestVisualizationValidate(t *testing.T) {
	tests := []struct {
		name string
		viz  Visualization
		want bool
	}{
		{"single_entry", Visualization{BrandScores: scoresOf(1)}, true},
		{"five_entries", Visualization{BrandScores: scoresOf(3, 1, 5, 2, 4)}, true},
		{"empty", Visualization{}, false},
		{"six_entries", Visualization{BrandScores: scoresOf(1, 2, 3, 4, 5, 6)}, false},
		{"duplicate_rank", Visualization{BrandScores: scoresOf(1, 1)}, false},
		{"gap_in_ranks", Visualization{BrandScores: scoresOf(1, 3)}, false},
		{"rank_zero", Visualization{BrandScores: scoresOf(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.viz.Validate())
		})
	}
}

func TestVisualizationValidateScoreBounds(t *testing.T) {
	viz := Visualization{BrandScores: []BrandScore{{BrandName: "A", VisibilityScore: 0, Rank: 1}}}
	assert.False(t, viz.Validate())

	viz.BrandScores[0].VisibilityScore = 101
	assert.False(t, viz.Validate())

	viz.BrandScores[0].VisibilityScore = 100
	assert.True(t, viz.Validate())
}

func TestVisualizationValidateTopBrandsBound(t *testing.T) {
	viz := Visualization{
		TopBrands:   []string{"A", "B", "C", "D", "E", "F", "G"},
		BrandScores: scoresOf(1, 2, 3, 4, 5),
	}
	assert.False(t, viz.Validate())

	viz.TopBrands = viz.TopBrands[:5]
	assert.True(t, viz.Validate())
}

func TestVisualizationValidateEmptyName(t *testing.T) {
	viz := Visualization{BrandScores: []BrandScore{{VisibilityScore: 50, Rank: 1}}}
	assert.False(t, viz.Validate())
}

func TestFinalReportJSONShape(t *testing.T) {
	report := FinalReport{
		JobID:       "abc-123",
		Question:    "What are the best CRM tools?",
		CompletedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		WebResults:  WebAnalysis{Source: WebSourceSERP, Confidence: 0.8},
		DirectAnswer: DirectAnswer{
			Response: "answer",
			Brands:   []string{"HubSpot"},
		},
		Visualization: Visualization{TopBrands: []string{"HubSpot"}, BrandScores: scoresOf(1)},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "analysis_id")
	assert.Contains(t, raw, "research_question")
	assert.Contains(t, raw, "web_results")
	assert.Contains(t, raw, "direct_answer")
	assert.Contains(t, raw, "visualization")

	var web map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["web_results"], &web))
	assert.Contains(t, web, "confidence_score")

	var direct map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["direct_answer"], &direct))
	assert.Contains(t, direct, "identified_brands")

	var viz map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["visualization"], &viz))
	assert.Contains(t, viz, "top_5_brands")
	assert.Contains(t, viz, "methodology_explanation")
}

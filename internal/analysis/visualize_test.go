package analysis

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insight-api/internal/model"
	"github.com/sells-group/insight-api/pkg/llm"
)

const validSynthesisOutput = `{
	"top_5_brands": ["Salesforce", "HubSpot", "Pipedrive"],
	"brand_scores": [
		{"brand_name": "Salesforce", "visibility_score": 95, "rank": 1, "mentions": 7},
		{"brand_name": "HubSpot", "visibility_score": 80, "rank": 2, "mentions": 5},
		{"brand_name": "Pipedrive", "visibility_score": 55, "rank": 3, "mentions": 2}
	],
	"methodology_explanation": "Scored by prominence across the analyzed results."
}`

func TestSynthesizeSuccess(t *testing.T) {
	llmClient := &fakeLLM{handlers: []func(llm.ChatRequest) (*llm.ChatResponse, error){
		func(req llm.ChatRequest) (*llm.ChatResponse, error) {
			assert.True(t, req.JSONOnly)
			assert.Contains(t, req.Messages[0].Content, "market analysis text")
			return &llm.ChatResponse{Text: validSynthesisOutput}, nil
		},
	}}

	s := NewSynthesizer(llmClient)
	viz := s.Synthesize(context.Background(), model.WebAnalysis{
		Source:  model.WebSourceSERP,
		Content: "market analysis text",
	})

	require.True(t, viz.Validate())
	assert.Equal(t, chartTypeBar, viz.ChartType)
	assert.Equal(t, []string{"Salesforce", "HubSpot", "Pipedrive"}, viz.TopBrands)
	assert.Equal(t, 95, viz.BrandScores[0].VisibilityScore)
	assert.Equal(t, 1, viz.BrandScores[0].Rank)
	assert.Equal(t, 7, viz.BrandScores[0].Mentions)
}

func TestSynthesizeTruncatesInput(t *testing.T) {
	llmClient := &fakeLLM{handlers: []func(llm.ChatRequest) (*llm.ChatResponse, error){
		func(req llm.ChatRequest) (*llm.ChatResponse, error) {
			assert.Less(t, len(req.Messages[0].Content), maxSynthesisInput+len(synthesisPrompt))
			// Multi-byte input must not be cut mid-rune.
			assert.True(t, utf8.ValidString(req.Messages[0].Content))
			return &llm.ChatResponse{Text: validSynthesisOutput}, nil
		},
	}}

	s := NewSynthesizer(llmClient)
	viz := s.Synthesize(context.Background(), model.WebAnalysis{
		Content: strings.Repeat("résultats détaillés ", 1000),
	})
	assert.True(t, viz.Validate())
}

func TestSynthesizeTruncatesTopBrands(t *testing.T) {
	// Seven names but only three scored entries: the package keeps at
	// most five names and stays schema-valid.
	output := `{
		"top_5_brands": ["A", "B", "C", "D", "E", "F", "G"],
		"brand_scores": [
			{"brand_name": "A", "visibility_score": 90, "rank": 1, "mentions": 3},
			{"brand_name": "B", "visibility_score": 70, "rank": 2, "mentions": 2},
			{"brand_name": "C", "visibility_score": 50, "rank": 3, "mentions": 1}
		],
		"methodology_explanation": "x"
	}`
	llmClient := &fakeLLM{handlers: []func(llm.ChatRequest) (*llm.ChatResponse, error){
		llmText(output),
	}}

	s := NewSynthesizer(llmClient)
	viz := s.Synthesize(context.Background(), model.WebAnalysis{Content: "text"})

	require.True(t, viz.Validate())
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, viz.TopBrands)
}

func TestSynthesizeFailedWebAnalysis(t *testing.T) {
	// No model call is made for a failed web analysis.
	s := NewSynthesizer(&fakeLLM{})
	viz := s.Synthesize(context.Background(), model.WebAnalysis{
		Source: model.WebSourceFallback,
		Failed: true,
	})

	require.True(t, viz.Validate())
	assert.Equal(t, []string{"Web analysis unavailable"}, viz.TopBrands)
	assert.Equal(t, 1, viz.BrandScores[0].VisibilityScore)
}

func TestSynthesizeExtractionError(t *testing.T) {
	llmClient := &fakeLLM{handlers: []func(llm.ChatRequest) (*llm.ChatResponse, error){
		llmError("model overloaded"),
	}}

	s := NewSynthesizer(llmClient)
	viz := s.Synthesize(context.Background(), model.WebAnalysis{Content: "text"})

	require.True(t, viz.Validate())
	assert.Equal(t, []string{"Analysis error"}, viz.TopBrands)
	assert.Contains(t, viz.Methodology, "model overloaded")
}

func TestSynthesizeNoBrandsInText(t *testing.T) {
	llmClient := &fakeLLM{handlers: []func(llm.ChatRequest) (*llm.ChatResponse, error){
		llmText(`{"top_5_brands": [], "brand_scores": [], "methodology_explanation": "` + noBrandMarker + `"}`),
	}}

	s := NewSynthesizer(llmClient)
	viz := s.Synthesize(context.Background(), model.WebAnalysis{Content: "generic text with no brands"})

	require.True(t, viz.Validate())
	assert.Equal(t, []string{"Brand data unavailable"}, viz.TopBrands)
}

func TestSynthesizeInvalidSchema(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{
			name:   "duplicate_ranks",
			output: `{"brand_scores": [{"brand_name": "A", "visibility_score": 90, "rank": 1, "mentions": 1}, {"brand_name": "B", "visibility_score": 80, "rank": 1, "mentions": 1}], "methodology_explanation": "x"}`,
		},
		{
			name:   "score_out_of_range",
			output: `{"brand_scores": [{"brand_name": "A", "visibility_score": 250, "rank": 1, "mentions": 1}], "methodology_explanation": "x"}`,
		},
		{
			name:   "six_entries",
			output: `{"brand_scores": [{"brand_name": "A", "visibility_score": 90, "rank": 1, "mentions": 1}, {"brand_name": "B", "visibility_score": 85, "rank": 2, "mentions": 1}, {"brand_name": "C", "visibility_score": 80, "rank": 3, "mentions": 1}, {"brand_name": "D", "visibility_score": 75, "rank": 4, "mentions": 1}, {"brand_name": "E", "visibility_score": 70, "rank": 5, "mentions": 1}, {"brand_name": "F", "visibility_score": 65, "rank": 6, "mentions": 1}], "methodology_explanation": "x"}`,
		},
		{
			name:   "not_json",
			output: "the model rambled instead of returning data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llmClient := &fakeLLM{handlers: []func(llm.ChatRequest) (*llm.ChatResponse, error){
				llmText(tt.output),
			}}

			s := NewSynthesizer(llmClient)
			viz := s.Synthesize(context.Background(), model.WebAnalysis{Content: "text"})

			require.True(t, viz.Validate())
			assert.Equal(t, []string{"Analysis error"}, viz.TopBrands)
		})
	}
}

func TestSynthesizeHandlesFencedOutput(t *testing.T) {
	llmClient := &fakeLLM{handlers: []func(llm.ChatRequest) (*llm.ChatResponse, error){
		llmText("```json\n" + validSynthesisOutput + "\n```"),
	}}

	s := NewSynthesizer(llmClient)
	viz := s.Synthesize(context.Background(), model.WebAnalysis{Content: "text"})

	require.True(t, viz.Validate())
	assert.Len(t, viz.BrandScores, 3)
}

func TestVisualizationFromBrands(t *testing.T) {
	t.Run("ranks_in_order", func(t *testing.T) {
		viz := VisualizationFromBrands([]string{"React", "Vue", "Svelte"})

		require.True(t, viz.Validate())
		assert.Equal(t, []string{"React", "Vue", "Svelte"}, viz.TopBrands)
		assert.Equal(t, 100, viz.BrandScores[0].VisibilityScore)
		assert.Equal(t, 80, viz.BrandScores[1].VisibilityScore)
		assert.Equal(t, 60, viz.BrandScores[2].VisibilityScore)
		assert.Equal(t, 3, viz.BrandScores[2].Rank)
	})

	t.Run("caps_at_five", func(t *testing.T) {
		viz := VisualizationFromBrands([]string{"A", "B", "C", "D", "E", "F", "G"})

		require.True(t, viz.Validate())
		assert.Len(t, viz.BrandScores, 5)
		assert.Equal(t, 20, viz.BrandScores[4].VisibilityScore)
	})

	t.Run("empty_list_placeholder", func(t *testing.T) {
		viz := VisualizationFromBrands(nil)

		require.True(t, viz.Validate())
		assert.Equal(t, []string{"No brands identified"}, viz.TopBrands)
	})
}

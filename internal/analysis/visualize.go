package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/insight-api/internal/model"
	"github.com/sells-group/insight-api/pkg/llm"
)

// maxSynthesisInput caps the analysis text sent to the extraction model.
const maxSynthesisInput = 10000

// noBrandMarker appears in extraction output when the analysis text named
// no identifiable brands.
const noBrandMarker = "No brand information could be extracted"

const (
	chartTypeBar = "bar"

	vizTitle  = "Top 5 Brand Visibility Ranking"
	vizXLabel = "Brand"
	vizYLabel = "Visibility Score"
)

const synthesisSystem = "You are a data extraction specialist. You identify brands in analysis text and score their visibility."

const synthesisPrompt = `Analyze this research text and extract brand visibility data:

%s

Identify up to 5 brands, companies, or products discussed. Score each brand's visibility from 1 to 100 based on how prominently and favorably it appears, and rank them from 1 (most visible) onward. Count how many times each brand is mentioned.

Respond with a JSON object of this exact shape:
{
  "top_5_brands": ["..."],
  "brand_scores": [
    {"brand_name": "...", "visibility_score": 0, "rank": 0, "mentions": 0}
  ],
  "methodology_explanation": "..."
}

If the text contains no identifiable brands, set "methodology_explanation" to "` + noBrandMarker + `" and return a single placeholder entry.`

// synthesisPayload is the shape the extraction model is asked for. Scores
// decode as float64 because models sometimes emit "87.0".
type synthesisPayload struct {
	TopBrands   []string `json:"top_5_brands"`
	BrandScores []struct {
		BrandName       string  `json:"brand_name"`
		VisibilityScore float64 `json:"visibility_score"`
		Rank            float64 `json:"rank"`
		Mentions        float64 `json:"mentions"`
	} `json:"brand_scores"`
	Methodology string `json:"methodology_explanation"`
}

// Synthesizer turns a web analysis into a ranked brand visualization.
// Synthesize never fails outward: extraction or validation problems
// degrade to a deterministic fallback package.
type Synthesizer struct {
	llm llm.Client
}

// NewSynthesizer creates a visualization synthesizer.
func NewSynthesizer(llmClient llm.Client) *Synthesizer {
	return &Synthesizer{llm: llmClient}
}

// Synthesize extracts ranked brand data from the analysis.
func (s *Synthesizer) Synthesize(ctx context.Context, web model.WebAnalysis) model.Visualization {
	if web.Failed {
		return fallbackVisualization("Web analysis unavailable", "Web analysis failed, so no brand visibility data could be extracted.")
	}

	input := truncateBytes(web.Content, maxSynthesisInput)

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		System: synthesisSystem,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(synthesisPrompt, input)},
		},
		JSONOnly: true,
	})
	if err != nil {
		zap.L().Warn("synthesize: extraction call failed", zap.Error(err))
		return fallbackVisualization("Analysis error", "Brand extraction failed: "+err.Error())
	}

	viz, err := parseVisualization(resp.Text)
	if err != nil {
		if strings.Contains(resp.Text, noBrandMarker) {
			return fallbackVisualization("Brand data unavailable", "The web analysis did not contain identifiable brand information.")
		}
		zap.L().Warn("synthesize: invalid extraction output",
			zap.Error(err),
			zap.String("raw", truncateBytes(resp.Text, 200)),
		)
		return fallbackVisualization("Analysis error", "Brand extraction returned invalid data: "+err.Error())
	}
	return viz
}

// parseVisualization decodes and validates the extraction output.
func parseVisualization(text string) (model.Visualization, error) {
	var payload synthesisPayload
	if err := json.Unmarshal([]byte(cleanJSON(text)), &payload); err != nil {
		return model.Visualization{}, fmt.Errorf("synthesize: decode extraction output: %w", err)
	}

	scores := make([]model.BrandScore, 0, len(payload.BrandScores))
	for _, bs := range payload.BrandScores {
		scores = append(scores, model.BrandScore{
			BrandName:       strings.TrimSpace(bs.BrandName),
			VisibilityScore: int(bs.VisibilityScore),
			Rank:            int(bs.Rank),
			Mentions:        int(bs.Mentions),
		})
	}

	top := payload.TopBrands
	if len(top) == 0 {
		for _, bs := range scores {
			top = append(top, bs.BrandName)
		}
	}
	// Models sometimes list more names than they score; the package only
	// carries the top five.
	if len(top) > 5 {
		top = top[:5]
	}

	viz := model.Visualization{
		ChartType:   chartTypeBar,
		Title:       vizTitle,
		XAxisLabel:  vizXLabel,
		YAxisLabel:  vizYLabel,
		TopBrands:   top,
		BrandScores: scores,
		Methodology: strings.TrimSpace(payload.Methodology),
	}
	if !viz.Validate() {
		return model.Visualization{}, fmt.Errorf("synthesize: extraction output violates visualization schema")
	}
	return viz, nil
}

// VisualizationFromBrands builds a ranked package directly from a brand
// list, used when the web analysis failed but the direct answer
// identified brands. Scores descend in fixed steps since there is no
// visibility signal to differentiate them.
func VisualizationFromBrands(brands []string) model.Visualization {
	if len(brands) == 0 {
		return fallbackVisualization("No brands identified", "Neither web analysis nor the direct answer identified any brands.")
	}

	if len(brands) > 5 {
		brands = brands[:5]
	}
	scores := make([]model.BrandScore, len(brands))
	for i, b := range brands {
		scores[i] = model.BrandScore{
			BrandName:       b,
			VisibilityScore: 100 - 20*i,
			Rank:            i + 1,
			Mentions:        1,
		}
	}

	return model.Visualization{
		ChartType:   chartTypeBar,
		Title:       vizTitle,
		XAxisLabel:  vizXLabel,
		YAxisLabel:  vizYLabel,
		TopBrands:   brands,
		BrandScores: scores,
		Methodology: "Ranked from entities identified in the direct answer. Web analysis was unavailable, so scores reflect mention order, not measured visibility.",
	}
}

// fallbackVisualization is the deterministic placeholder package. It
// always satisfies Visualization.Validate.
func fallbackVisualization(placeholder, methodology string) model.Visualization {
	return model.Visualization{
		ChartType:  chartTypeBar,
		Title:      vizTitle,
		XAxisLabel: vizXLabel,
		YAxisLabel: vizYLabel,
		TopBrands:  []string{placeholder},
		BrandScores: []model.BrandScore{
			{BrandName: placeholder, VisibilityScore: 1, Rank: 1, Mentions: 0},
		},
		Methodology: methodology,
	}
}

// reportTimestamp pins report completion times to UTC.
func reportTimestamp() time.Time {
	return time.Now().UTC()
}

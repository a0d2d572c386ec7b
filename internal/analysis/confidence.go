package analysis

// contextStats summarizes the search context fed to the analysis model.
type contextStats struct {
	Snippets   int // usable title+snippet pairs, capped at maxSnippets
	Complete   int // usable pairs that also carried a link
	ContextLen int // final context length after truncation
}

const minSuccessConfidence = 0.5

// scoreConfidence computes a composite confidence for a successful web
// analysis. Components: snippet count, snippet completeness, context
// richness, and response length, weighted 0.3/0.2/0.2/0.3. Successful
// analyses never score below minSuccessConfidence; only the fallback
// path reports 0.
func scoreConfidence(stats contextStats, responseLen int) float64 {
	snippetScore := clamp01(float64(stats.Snippets) / float64(maxSnippets))

	completeness := 0.0
	if stats.Snippets > 0 {
		completeness = clamp01(float64(stats.Complete) / float64(stats.Snippets))
	}

	contextScore := clamp01(float64(stats.ContextLen) / float64(maxContextLen))

	// A substantive analysis runs at least several hundred characters.
	responseScore := clamp01(float64(responseLen) / 800.0)

	score := 0.3*snippetScore + 0.2*completeness + 0.2*contextScore + 0.3*responseScore
	if score < minSuccessConfidence {
		score = minSuccessConfidence
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package analysis implements the job pipeline: parallel collection of a
// web-search-derived summary and a direct model answer, post-processing,
// and synthesis of a structured brand-visibility package.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insight-api/internal/model"
	"github.com/sells-group/insight-api/pkg/llm"
	"github.com/sells-group/insight-api/pkg/serp"
)

const (
	// maxSnippets caps how many organic results feed the analysis context.
	maxSnippets = 10

	// maxContextLen caps the concatenated snippet context sent to the model.
	maxContextLen = 8000

	truncationMarker = "\n...[truncated]"
)

// webFailurePrefix opens the fallback content when web collection fails.
// Kept stable for display compatibility; control flow branches on the
// WebAnalysis.Failed flag, never on this text.
const webFailurePrefix = "Unable to perform web analysis due to error: "

const webAnalysisSystem = "You are an expert research analyst. Provide clear, structured analysis based on the given search results."

const webAnalysisPrompt = `Based on the following web search results for the query "%s":

%s

Provide a comprehensive analysis of these results. Summarize the key findings, identify the main brands or topics discussed, and conclude with the most relevant insights.

This should read like a real analysis of web search results.`

// WebCollector gathers a search-derived analysis for a question. Collect
// never fails outward: every provider, network, or parsing error degrades
// to a fallback result with confidence 0.
type WebCollector struct {
	serp serp.Client
	llm  llm.Client
}

// NewWebCollector creates a web collector over the given providers.
func NewWebCollector(serpClient serp.Client, llmClient llm.Client) *WebCollector {
	return &WebCollector{serp: serpClient, llm: llmClient}
}

// Collect runs the search-and-summarize path for the question.
func (c *WebCollector) Collect(ctx context.Context, question string) model.WebAnalysis {
	result, err := c.collect(ctx, question)
	if err != nil {
		zap.L().Warn("webcollect: falling back", zap.Error(err))
		return model.WebAnalysis{
			Source:     model.WebSourceFallback,
			Content:    webFailurePrefix + err.Error() + "\n\nThis analysis is based on the language model's knowledge only, without real-time web search data.",
			Timestamp:  time.Now().UTC(),
			Confidence: 0.0,
			Failed:     true,
		}
	}
	return result
}

func (c *WebCollector) collect(ctx context.Context, question string) (model.WebAnalysis, error) {
	searchResp, err := c.serp.Search(ctx, question)
	if err != nil {
		return model.WebAnalysis{}, eris.Wrap(err, "webcollect: search")
	}

	searchContext, stats, err := buildSearchContext(searchResp.Organic)
	if err != nil {
		return model.WebAnalysis{}, err
	}

	chatResp, err := c.llm.Chat(ctx, llm.ChatRequest{
		System: webAnalysisSystem,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(webAnalysisPrompt, question, searchContext)},
		},
	})
	if err != nil {
		return model.WebAnalysis{}, eris.Wrap(err, "webcollect: analyze")
	}

	confidence := scoreConfidence(stats, len(chatResp.Text))
	zap.L().Debug("webcollect: analysis complete",
		zap.Int("snippets", stats.Snippets),
		zap.Int("context_len", stats.ContextLen),
		zap.Float64("confidence", confidence),
	)

	return model.WebAnalysis{
		Source:     model.WebSourceSERP,
		Content:    chatResp.Text,
		Timestamp:  time.Now().UTC(),
		Confidence: confidence,
	}, nil
}

// buildSearchContext concatenates usable organic results into a prompt
// context block. An entry is usable when it has both a title and a
// description. Zero usable entries is a failure, not an empty success.
func buildSearchContext(organic []serp.OrganicResult) (string, contextStats, error) {
	var blocks []string
	complete := 0
	for _, r := range organic {
		if len(blocks) >= maxSnippets {
			break
		}
		if r.Title == "" || r.Description == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Title: %s\nSnippet: %s", r.Title, r.Description))
		if r.Link != "" {
			complete++
		}
	}

	if len(blocks) == 0 {
		return "", contextStats{}, eris.New("webcollect: search provider returned no usable organic results")
	}

	joined := strings.Join(blocks, "\n---\n")
	if len(joined) > maxContextLen {
		joined = truncateBytes(joined, maxContextLen) + truncationMarker
	}

	return joined, contextStats{
		Snippets:   len(blocks),
		Complete:   complete,
		ContextLen: len(joined),
	}, nil
}

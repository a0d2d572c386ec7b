package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/insight-api/internal/model"
	"github.com/sells-group/insight-api/pkg/llm"
)

const directAnswerSystem = "You are a helpful assistant. Answer questions directly and clearly."

const entityExtractionSystem = "You extract entity names from text."

const entityExtractionPrompt = `Extract the names of relevant companies, brands, technologies, tools, or key entities mentioned in this text:

%s

Return a JSON object of the form {"entities": ["..."]} with no other keys.`

// directFallbackText is the response when the knowledge-base path fails.
const directFallbackText = "Unable to access the knowledge base for a direct answer. The final report relies on web analysis results only."

// DirectCollector asks the model for a direct answer to the question and
// extracts the entities it mentions. Like the web collector, Collect
// never fails outward.
type DirectCollector struct {
	llm llm.Client
}

// NewDirectCollector creates a direct-answer collector.
func NewDirectCollector(llmClient llm.Client) *DirectCollector {
	return &DirectCollector{llm: llmClient}
}

// Collect runs the two-step answer-then-extract flow.
func (c *DirectCollector) Collect(ctx context.Context, question string) model.DirectAnswer {
	answer, err := c.llm.Chat(ctx, llm.ChatRequest{
		System:   directAnswerSystem,
		Messages: []llm.Message{{Role: "user", Content: question}},
	})
	if err != nil {
		zap.L().Warn("direct: answer call failed", zap.Error(err))
		return model.DirectAnswer{Response: directFallbackText, Brands: []string{}}
	}

	extraction, err := c.llm.Chat(ctx, llm.ChatRequest{
		System: entityExtractionSystem,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(entityExtractionPrompt, answer.Text)},
		},
		JSONOnly: true,
	})
	if err != nil {
		zap.L().Warn("direct: extraction call failed", zap.Error(err))
		return model.DirectAnswer{Response: directFallbackText, Brands: []string{}}
	}

	brands := parseBrandList(extraction.Text)
	if brands == nil {
		// Unparseable extraction keeps the answer; only the brand list is lost.
		zap.L().Warn("direct: could not parse entity list", zap.String("raw", truncateBytes(extraction.Text, 200)))
		brands = []string{}
	}

	return model.DirectAnswer{Response: answer.Text, Brands: brands}
}

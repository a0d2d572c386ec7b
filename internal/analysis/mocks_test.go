package analysis

import (
	"context"
	"errors"

	"github.com/sells-group/insight-api/pkg/llm"
	"github.com/sells-group/insight-api/pkg/serp"
)

// fakeLLM replays one scripted handler per Chat call, in order.
type fakeLLM struct {
	handlers []func(req llm.ChatRequest) (*llm.ChatResponse, error)
	calls    int
}

func (f *fakeLLM) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.calls >= len(f.handlers) {
		return nil, errors.New("unexpected llm call")
	}
	h := f.handlers[f.calls]
	f.calls++
	return h(req)
}

func llmText(text string) func(llm.ChatRequest) (*llm.ChatResponse, error) {
	return func(llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Text: text}, nil
	}
}

func llmError(msg string) func(llm.ChatRequest) (*llm.ChatResponse, error) {
	return func(llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, errors.New(msg)
	}
}

// fakeSERP returns a fixed response or error.
type fakeSERP struct {
	resp *serp.SearchResponse
	err  error
}

func (f *fakeSERP) Search(context.Context, string) (*serp.SearchResponse, error) {
	return f.resp, f.err
}

func organicResults(n int) []serp.OrganicResult {
	out := make([]serp.OrganicResult, n)
	for i := range out {
		out[i] = serp.OrganicResult{
			Title:       "Result title",
			Description: "Result snippet with enough substance to analyze",
			Link:        "https://example.com",
			Rank:        i + 1,
		}
	}
	return out
}

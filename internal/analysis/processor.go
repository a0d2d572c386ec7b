package analysis

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/sells-group/insight-api/internal/model"
)

// maxBrandNameLen drops runaway "entities" that are really sentences.
const maxBrandNameLen = 80

// Processor validates and normalizes collector output before synthesis.
// The analysis content passes through untouched; brand lists get hygiene
// applied so the synthesis step sees a clean, deduplicated set.
type Processor struct {
	fold cases.Caser
}

// NewProcessor creates a result processor.
func NewProcessor() *Processor {
	return &Processor{fold: cases.Fold()}
}

// Process returns the validated pair of collector results.
func (p *Processor) Process(web model.WebAnalysis, direct model.DirectAnswer) (model.WebAnalysis, model.DirectAnswer) {
	direct.Brands = p.cleanBrands(direct.Brands)
	return web, direct
}

// cleanBrands trims, strips control characters, drops empties, and
// deduplicates case-insensitively while keeping first-seen casing and
// order.
func (p *Processor) cleanBrands(brands []string) []string {
	out := make([]string, 0, len(brands))
	seen := make(map[string]struct{}, len(brands))
	for _, b := range brands {
		b = strings.TrimSpace(stripControl(b))
		if b == "" || len(b) > maxBrandNameLen {
			continue
		}
		key := p.fold.String(b)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

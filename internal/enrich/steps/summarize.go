package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/engine/cache"
	"github.com/vietddude/enrich/internal/infra/ollama"
)

// summarizePromptVersion is part of the cache key: changing the prompt
// invalidates old summaries without touching the cache file.
const summarizePromptVersion = "1"

// SummarizeResult is the stored value of the summarization step.
type SummarizeResult struct {
	Summary string `json:"summary"`
	Model   string `json:"model"`
}

// NewSummarize builds the summarization step, prompting the local inference
// runtime with the bookmark text (or extracted article when present).
func NewSummarize(client *ollama.Client, model string) Step {
	return Step{
		Name: "summarize",
		KeyFields: []cache.Field{
			{Name: "model", Value: model},
			{Name: "prompt", Value: summarizePromptVersion},
		},
		Compute: func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
			text := sourceText(item)
			if text == "" {
				return json.Marshal(SummarizeResult{Model: model})
			}

			prompt := fmt.Sprintf(
				"Summarize the following bookmarked content in two sentences.\n\n%s", text)
			summary, err := client.Generate(ctx, model, prompt)
			if err != nil {
				return nil, err
			}
			return json.Marshal(SummarizeResult{Summary: summary, Model: model})
		},
		Apply: func(b *domain.Bookmark, value []byte) error {
			var r SummarizeResult
			if err := json.Unmarshal(value, &r); err != nil {
				return fmt.Errorf("bad summarize value: %w", err)
			}
			if r.Summary != "" {
				b.SetAnalysis("summary", r.Summary)
			}
			return nil
		},
	}
}

// sourceText prefers extracted article text over the raw bookmark text.
func sourceText(item domain.Bookmark) string {
	if t, ok := item.Analysis["articleText"].(string); ok && t != "" {
		return t
	}
	return strings.TrimSpace(item.Text)
}

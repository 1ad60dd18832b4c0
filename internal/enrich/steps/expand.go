package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/infra/fetch"
)

// ExpandResult is the stored value of the URL expansion step.
type ExpandResult struct {
	ExpandedURL string `json:"expanded_url"`
}

// NewExpand builds the URL expansion step: it follows redirects from the
// bookmarked (often shortened) URL to the final location.
func NewExpand(client *fetch.Client) Step {
	return Step{
		Name: "expand",
		Compute: func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
			if item.URL == "" {
				return json.Marshal(ExpandResult{})
			}
			final, err := client.Expand(ctx, item.URL)
			if err != nil {
				return nil, err
			}
			return json.Marshal(ExpandResult{ExpandedURL: final})
		},
		Apply: func(b *domain.Bookmark, value []byte) error {
			var r ExpandResult
			if err := json.Unmarshal(value, &r); err != nil {
				return fmt.Errorf("bad expand value: %w", err)
			}
			if r.ExpandedURL != "" {
				b.SetAnalysis("expandedUrl", r.ExpandedURL)
			}
			return nil
		},
	}
}

// Package steps provides the per-bookmark work functions the orchestrator
// runs: URL expansion, article extraction, sentiment scoring and
// inference-backed summarization/persona analysis.
package steps

import (
	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/engine/cache"
	"github.com/vietddude/enrich/internal/enrich"
)

// Step is one enrichment operation: a compute function plus the option
// fields that belong in its cache key and a merge rule for its output.
type Step struct {
	Name      string
	KeyFields []cache.Field
	Compute   enrich.ComputeFunc

	// Apply merges the computed value into the bookmark's analysis.
	Apply func(b *domain.Bookmark, value []byte) error

	// Sequential marks order-sensitive steps.
	Sequential bool
}

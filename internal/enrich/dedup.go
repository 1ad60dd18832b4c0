package enrich

import "github.com/vietddude/enrich/internal/core/domain"

// DedupStats reports how many duplicate IDs the input carried.
type DedupStats struct {
	Original int `json:"original"`
	Unique   int `json:"unique"`
}

// Rate returns the fraction of inputs that were duplicates. An empty input
// reports an explicit 0, not NaN.
func (s DedupStats) Rate() float64 {
	if s.Original == 0 {
		return 0
	}
	return float64(s.Original-s.Unique) / float64(s.Original)
}

// dedupe drops later occurrences of repeated bookmark IDs, preserving input
// order. This is what guarantees at most one in-flight computation per cache
// key within a run: keys derive from IDs, and each ID runs once.
func dedupe(items []domain.Bookmark) ([]domain.Bookmark, DedupStats) {
	seen := make(map[string]bool, len(items))
	unique := make([]domain.Bookmark, 0, len(items))
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		unique = append(unique, item)
	}
	return unique, DedupStats{Original: len(items), Unique: len(unique)}
}

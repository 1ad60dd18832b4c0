package domain

import "time"

// Bookmark is a single item from a bookmark export. The ID is stable across
// runs and is the correlation key for both the cache and the checkpoint.
type Bookmark struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Text      string         `json:"text"`
	Author    string         `json:"author,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
	Analysis  map[string]any `json:"customAnalysis,omitempty"`
}

// SetAnalysis merges a single analysis field into the bookmark, allocating
// the map on first write.
func (b *Bookmark) SetAnalysis(key string, value any) {
	if b.Analysis == nil {
		b.Analysis = make(map[string]any)
	}
	b.Analysis[key] = value
}

// Export is the top-level shape of an exported bookmark file.
type Export struct {
	Bookmarks []Bookmark     `json:"bookmarks"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SetMetadata merges a metadata field into the export.
func (e *Export) SetMetadata(key string, value any) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
}

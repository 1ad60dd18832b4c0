package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/infra/fetch"
)

// maxArticleChars bounds extracted text so cache entries and prompts stay
// reasonably sized.
const maxArticleChars = 8000

// ArticleResult is the stored value of the article extraction step.
type ArticleResult struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

var (
	titleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ExtractArticle pulls the title and a plain-text rendering out of raw HTML.
// This is a crude strip, not a readability engine.
func ExtractArticle(html []byte) ArticleResult {
	var r ArticleResult

	if m := titleRe.FindSubmatch(html); m != nil {
		r.Title = strings.TrimSpace(spaceRe.ReplaceAllString(string(m[1]), " "))
	}

	text := scriptRe.ReplaceAllString(string(html), " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
	if len(text) > maxArticleChars {
		text = text[:maxArticleChars]
	}
	r.Text = text
	return r
}

// NewArticle builds the article extraction step: fetch the page and keep
// the readable parts.
func NewArticle(client *fetch.Client) Step {
	return Step{
		Name: "article",
		Compute: func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
			if item.URL == "" {
				return json.Marshal(ArticleResult{})
			}
			body, err := client.Get(ctx, item.URL)
			if err != nil {
				return nil, err
			}
			return json.Marshal(ExtractArticle(body))
		},
		Apply: func(b *domain.Bookmark, value []byte) error {
			var r ArticleResult
			if err := json.Unmarshal(value, &r); err != nil {
				return fmt.Errorf("bad article value: %w", err)
			}
			if r.Title != "" {
				b.SetAnalysis("articleTitle", r.Title)
			}
			if r.Text != "" {
				b.SetAnalysis("articleText", r.Text)
			}
			return nil
		},
	}
}

package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/vietddude/enrich/internal/core/domain"
)

// Keyword lexicons for the heuristic sentiment scorer.
var positiveWords = wordSet(
	"good", "great", "excellent", "amazing", "awesome", "fantastic", "wonderful",
	"love", "best", "perfect", "brilliant", "outstanding", "superb", "incredible",
	"helpful", "useful", "valuable", "important", "interesting", "insightful",
)

var negativeWords = wordSet(
	"bad", "terrible", "awful", "horrible", "worst", "poor", "disappointing",
	"hate", "useless", "broken", "failed", "error", "problem", "issue", "bug",
	"difficult", "confusing", "complicated", "frustrating", "annoying",
)

func wordSet(words ...string) map[string]bool {
	s := make(map[string]bool, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// SentimentResult is the stored value of the sentiment step.
type SentimentResult struct {
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
}

// AnalyzeSentiment scores text by keyword matching. The score is in
// [-1, 1]; labels flip to positive/negative past ±0.2. Text with no lexicon
// hits (or no text at all) is neutral with an explicit zero score.
func AnalyzeSentiment(text string) SentimentResult {
	if text == "" {
		return SentimentResult{Sentiment: SentimentNeutral, Score: 0}
	}

	positive, negative := 0, 0
	for _, word := range splitWords(strings.ToLower(text)) {
		if positiveWords[word] {
			positive++
		}
		if negativeWords[word] {
			negative++
		}
	}

	total := positive + negative
	if total == 0 {
		return SentimentResult{Sentiment: SentimentNeutral, Score: 0}
	}

	score := float64(positive-negative) / float64(total)
	score = math.Round(score*100) / 100

	label := SentimentNeutral
	switch {
	case score > 0.2:
		label = SentimentPositive
	case score < -0.2:
		label = SentimentNegative
	}
	return SentimentResult{Sentiment: label, Score: score}
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NewSentiment builds the sentiment step. It is purely local; the engine
// still caches and checkpoints it, so re-runs skip it like any other step.
func NewSentiment() Step {
	return Step{
		Name: "sentiment",
		Compute: func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
			return json.Marshal(AnalyzeSentiment(item.Text))
		},
		Apply: func(b *domain.Bookmark, value []byte) error {
			var r SentimentResult
			if err := json.Unmarshal(value, &r); err != nil {
				return fmt.Errorf("bad sentiment value: %w", err)
			}
			b.SetAnalysis("sentiment", r.Sentiment)
			b.SetAnalysis("sentimentScore", r.Score)
			return nil
		},
	}
}

// SentimentCounts aggregates label counts over enriched bookmarks, for the
// export metadata.
func SentimentCounts(bookmarks []domain.Bookmark) map[string]int {
	counts := map[string]int{
		SentimentPositive: 0,
		SentimentNegative: 0,
		SentimentNeutral:  0,
	}
	for _, b := range bookmarks {
		if label, ok := b.Analysis["sentiment"].(string); ok {
			counts[label]++
		}
	}
	return counts
}

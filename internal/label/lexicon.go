package label

import (
	"context"
	"slices"
	"strings"
)

// Lexicon classifies by counting positive and negative keyword hits. It is
// used when no inference endpoint is configured.
type Lexicon struct {
	positive [][]string
	negative [][]string
}

var _ Classifier = (*Lexicon)(nil)

// NewLexicon builds a Lexicon; keywords are cleaned the same way texts are
// and may span several words.
func NewLexicon(positive, negative []string) *Lexicon {
	return &Lexicon{positive: phrases(positive), negative: phrases(negative)}
}

func phrases(in []string) [][]string {
	out := make([][]string, 0, len(in))
	for _, kw := range in {
		if words := strings.Fields(CleanText(kw)); len(words) > 0 {
			out = append(out, words)
		}
	}
	return out
}

// Classify implements Classifier. The score is the winning side's share of
// all hits; ties and texts without hits are neutral.
func (l *Lexicon) Classify(_ context.Context, text string) (Prediction, error) {
	tokens := strings.Fields(CleanText(text))
	pos, neg := hits(tokens, l.positive), hits(tokens, l.negative)
	switch {
	case pos > neg:
		return Prediction{Label: "positive", Score: float64(pos) / float64(pos+neg)}, nil
	case neg > pos:
		return Prediction{Label: "negative", Score: float64(neg) / float64(pos+neg)}, nil
	default:
		return Prediction{Label: "neutral", Score: 1}, nil
	}
}

func hits(tokens []string, keywords [][]string) int {
	n := 0
	for i := range tokens {
		for _, kw := range keywords {
			if i+len(kw) <= len(tokens) && slices.Equal(tokens[i:i+len(kw)], kw) {
				n++
			}
		}
	}
	return n
}

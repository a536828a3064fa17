// Package label assigns a sentiment to every raw text collected by the
// scouts and writes the processed dataset.
package label

import (
	"context"
	"strings"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// DefaultMinScore is the confidence below which a prediction counts as neutral.
const DefaultMinScore = 0.5

// Prediction is the raw output of a Classifier.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier scores a single cleaned text.
type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

// MapLabel turns a model label into one of the dataset sentiments. Unknown
// labels and predictions scoring under minScore map to neutral.
func MapLabel(p Prediction, minScore float64) string {
	label := strings.ToLower(p.Label)
	var sentiment string
	switch {
	case strings.Contains(label, "pos") || label == "label_2":
		sentiment = harvest.Positive
	case strings.Contains(label, "neg") || label == "label_0":
		sentiment = harvest.Negative
	default:
		sentiment = harvest.Neutral
	}
	if p.Score < minScore {
		return harvest.Neutral
	}
	return sentiment
}

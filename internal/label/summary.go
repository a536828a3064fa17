package label

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/dataset"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// Share is a count with its percentage of the total.
type Share struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// SourceBreakdown is the sentiment distribution of one source.
type SourceBreakdown struct {
	Source     string  `json:"source"`
	Total      int     `json:"total"`
	Sentiments []Share `json:"sentiments"`
}

// Summary describes a labeled dataset.
type Summary struct {
	Total      int               `json:"total"`
	Sentiments []Share           `json:"sentiments"`
	Sources    []SourceBreakdown `json:"sources"`
}

// Summarize counts rows per sentiment and per source. Sources keep their
// first-seen order.
func Summarize(rows []harvest.LabeledRow) Summary {
	s := Summary{Total: len(rows), Sentiments: shares(rows)}
	bySource := make(map[string][]harvest.LabeledRow)
	var order []string
	for _, r := range rows {
		if _, ok := bySource[r.Source]; !ok {
			order = append(order, r.Source)
		}
		bySource[r.Source] = append(bySource[r.Source], r)
	}
	for _, src := range order {
		group := bySource[src]
		s.Sources = append(s.Sources, SourceBreakdown{Source: src, Total: len(group), Sentiments: shares(group)})
	}
	return s
}

func shares(rows []harvest.LabeledRow) []Share {
	counts := dataset.CountBy(rows, func(r harvest.LabeledRow) string { return r.Sentiment }, 0)
	out := make([]Share, 0, len(counts))
	for _, c := range counts {
		out = append(out, Share{Key: c.Key, Count: c.Count, Percent: float64(c.Count) * 100 / float64(len(rows))})
	}
	return out
}

// Log writes the summary as one line per sentiment and per source.
func (s Summary) Log(logger *zap.Logger) {
	for _, sh := range s.Sentiments {
		logger.Info("sentiment share",
			zap.String("sentiment", sh.Key),
			zap.Int("count", sh.Count),
			zap.Float64("percent", sh.Percent),
		)
	}
	for _, src := range s.Sources {
		fields := []zap.Field{zap.String("source", src.Source), zap.Int("total", src.Total)}
		for _, sh := range src.Sentiments {
			fields = append(fields, zap.Int(sh.Key, sh.Count))
		}
		logger.Info("source breakdown", fields...)
	}
	logger.Info("labeling finished", zap.Int("total", s.Total))
}

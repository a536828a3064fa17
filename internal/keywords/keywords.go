// Package keywords loads the search and sentiment keyword lists.
package keywords

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoSearchKeywords is returned when the file lists nothing to search for.
var ErrNoSearchKeywords = errors.New("keywords: search list is empty")

// Set holds every keyword list the harvester consumes.
type Set struct {
	Search          []string `yaml:"search"`
	TimelineQueries []string `yaml:"timeline_queries"`
	Positive        []string `yaml:"positive"`
	Negative        []string `yaml:"negative"`
	Neutral         []string `yaml:"neutral"`
}

// Load reads and validates a keyword file.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read keywords file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a keyword document.
func Parse(data []byte) (Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Set{}, fmt.Errorf("decode keywords: %w", err)
	}
	s.Search = compact(s.Search)
	s.TimelineQueries = compact(s.TimelineQueries)
	s.Positive = compact(s.Positive)
	s.Negative = compact(s.Negative)
	s.Neutral = compact(s.Neutral)
	if len(s.Search) == 0 {
		return Set{}, ErrNoSearchKeywords
	}
	if len(s.TimelineQueries) == 0 {
		s.TimelineQueries = append([]string(nil), s.Search...)
	}
	return s, nil
}

// Relevant is the lowercase union of the sentiment lists, used to decide
// whether a comment is on topic.
func (s Set) Relevant() map[string]struct{} {
	out := make(map[string]struct{}, len(s.Positive)+len(s.Negative)+len(s.Neutral))
	for _, list := range [][]string{s.Negative, s.Positive, s.Neutral} {
		for _, kw := range list {
			out[strings.ToLower(kw)] = struct{}{}
		}
	}
	return out
}

func compact(in []string) []string {
	out := in[:0]
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

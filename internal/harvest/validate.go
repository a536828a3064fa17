package harvest

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Quality thresholds applied to every harvested record.
const (
	MinTextLength      = 150
	RepetitionPrefix   = 100
	MaxPrefixRecurrent = 2
)

// Validation failures.
var (
	ErrEmptyTitle     = errors.New("title is empty")
	ErrBodyTooShort   = errors.New("body text too short")
	ErrRepetitiveBody = errors.New("body text repeats its opening")
)

// Validate reports why rec should be discarded, or nil when it is acceptable.
func Validate(rec HarvestedRecord) error {
	n := utf8.RuneCountInString(rec.Body)
	if n < MinTextLength {
		return ErrBodyTooShort
	}
	if strings.TrimSpace(rec.Title) == "" {
		return ErrEmptyTitle
	}
	if n > RepetitionPrefix {
		prefix := string([]rune(rec.Body)[:RepetitionPrefix])
		if strings.Count(rec.Body, prefix) > MaxPrefixRecurrent {
			return ErrRepetitiveBody
		}
	}
	return nil
}

// Valid is the boolean form of Validate.
func Valid(rec HarvestedRecord) bool {
	return Validate(rec) == nil
}

// NormalizeBody collapses whitespace runs and trims the text before hashing.
func NormalizeBody(body string) string {
	return strings.Join(strings.Fields(body), " ")
}

// Fingerprint hashes the normalized body with h.
func Fingerprint(h Hasher, body string) (string, error) {
	return h.Hash([]byte(NormalizeBody(body)))
}

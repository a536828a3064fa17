package label

import (
	"regexp"
	"strings"
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+|www\.\S+`)
	mentionPattern = regexp.MustCompile(`@[\p{L}\p{N}_]+`)
	hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	symbolPattern  = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)
)

// CleanText lowercases text, removes URLs and @mentions, keeps hashtag words
// without the '#', turns every other symbol into a space and collapses
// whitespace.
func CleanText(text string) string {
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, "")
	text = hashtagPattern.ReplaceAllString(text, "$1")
	text = symbolPattern.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

package auto

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

var shellMarkers = [][]byte{
	[]byte(`id="__next"`),
	[]byte(`id="root"></div>`),
	[]byte(`id="app"></div>`),
	[]byte("data-reactroot"),
	[]byte("ng-version="),
}

var noscriptHints = []string{
	"enable javascript",
	"aktifkan javascript",
	"javascript is disabled",
	"requires javascript",
}

// Promoter decides whether a static response is too thin to extract from.
type Promoter struct {
	// MinBytes is the body size below which a script-heavy page is promoted.
	MinBytes int
}

// NewPromoter returns a Promoter with threshold, defaulting to 2 KiB.
func NewPromoter(threshold int) Promoter {
	if threshold <= 0 {
		threshold = 2048
	}
	return Promoter{MinBytes: threshold}
}

// ShouldPromote reports whether doc needs a rendered fetch.
func (p Promoter) ShouldPromote(doc harvest.RawDocument) bool {
	if doc.StatusCode != http.StatusOK {
		return false
	}
	body := doc.HTML
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	lower := strings.ToLower(string(body))
	for _, hint := range noscriptHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return len(body) < p.MinBytes && scriptShare(lower) >= 25
}

// scriptShare returns the percentage of lower covered by <script> elements.
func scriptShare(lower string) int {
	total := len(lower)
	if total == 0 {
		return 0
	}
	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			// unterminated script swallows the rest of the page
			covered += total - start
			break
		}
		next := start + end + len(closeTag)
		covered += next - start
		pos = next
	}
	return covered * 100 / total
}

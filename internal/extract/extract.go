// Package extract turns rendered HTML into article content.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// ErrNoContent is returned when neither a title nor a body can be found.
var ErrNoContent = errors.New("extract: no article content")

// Article extracts content with the readability algorithm and fills the
// metadata readability does not expose from meta tags and JSON-LD.
type Article struct {
	// MinWords is the word count below which the paragraph fallback is used.
	MinWords int
}

// New returns an Article extractor.
func New() *Article {
	return &Article{MinWords: 40}
}

// Extract implements harvest.Extractor.
func (a *Article) Extract(doc harvest.RawDocument) (harvest.Content, error) {
	pageURL := doc.FinalURL
	if pageURL == "" {
		pageURL = doc.URL
	}
	parsedURL, _ := url.Parse(pageURL)

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.HTML))
	if err != nil {
		return harvest.Content{}, fmt.Errorf("parse html: %w", err)
	}
	ld := readLinkedData(page)

	var content harvest.Content
	article, err := readability.FromReader(bytes.NewReader(doc.HTML), parsedURL)
	if err == nil && article.Node != nil {
		content.Title = strings.TrimSpace(article.Title())
		var buf bytes.Buffer
		if err := article.RenderText(&buf); err == nil {
			content.Body = normalizeText(buf.String())
		}
	}
	if len(strings.Fields(content.Body)) < a.MinWords {
		if fallback := paragraphText(page); len(fallback) > len(content.Body) {
			content.Body = fallback
		}
	}
	if content.Title != "" {
		content.Title = extendTitle(content.Title,
			metaContent(page, `meta[property="og:title"]`),
			strings.TrimSpace(page.Find("title").First().Text()),
		)
	}
	if content.Title == "" {
		content.Title = firstNonEmpty(
			metaContent(page, `meta[property="og:title"]`),
			ld.Headline,
			strings.TrimSpace(page.Find("title").First().Text()),
			strings.TrimSpace(page.Find("h1").First().Text()),
		)
	}
	content.Authors = authors(page, ld)
	content.PublishedAt = publishedAt(page, ld)

	if content.Title == "" && content.Body == "" {
		return harvest.Content{}, ErrNoContent
	}
	return content, nil
}

// ParseDate parses the loose date formats found in feeds and pages. Dates
// without a zone are taken as UTC.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

type linkedData struct {
	Headline      string
	DatePublished string
	Authors       []string
}

// readLinkedData collects NewsArticle fields from JSON-LD blocks.
func readLinkedData(page *goquery.Document) linkedData {
	var out linkedData
	page.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		for _, node := range ldNodes(raw) {
			if out.Headline == "" {
				out.Headline, _ = node["headline"].(string)
			}
			if out.DatePublished == "" {
				out.DatePublished, _ = node["datePublished"].(string)
			}
			if len(out.Authors) == 0 {
				out.Authors = ldNames(node["author"])
			}
		}
	})
	return out
}

func ldNodes(raw any) []map[string]any {
	switch v := raw.(type) {
	case []any:
		var nodes []map[string]any
		for _, item := range v {
			nodes = append(nodes, ldNodes(item)...)
		}
		return nodes
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			return ldNodes(graph)
		}
		return []map[string]any{v}
	}
	return nil
}

func ldNames(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			return []string{name}
		}
	case []any:
		var names []string
		for _, item := range v {
			names = append(names, ldNames(item)...)
		}
		return names
	}
	return nil
}

func authors(page *goquery.Document, ld linkedData) []string {
	candidates := append([]string(nil), ld.Authors...)
	for _, sel := range []string{`meta[name="author"]`, `meta[property="article:author"]`, `meta[name="content_author"]`} {
		page.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr("content"); ok {
				candidates = append(candidates, v)
			}
		})
	}
	page.Find(`[rel="author"], [itemprop="author"] [itemprop="name"]`).Each(func(_ int, s *goquery.Selection) {
		candidates = append(candidates, s.Text())
	})

	seen := make(map[string]struct{})
	var out []string
	for _, c := range candidates {
		for _, name := range splitNames(c) {
			if strings.HasPrefix(name, "http") {
				continue
			}
			key := strings.ToLower(name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

var nameSeparators = strings.NewReplacer(" and ", ",", " dan ", ",", "|", ",", ";", ",")

func splitNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(nameSeparators.Replace(raw), ",") {
		part = strings.Join(strings.Fields(part), " ")
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

func publishedAt(page *goquery.Document, ld linkedData) time.Time {
	candidates := []string{
		metaContent(page, `meta[property="article:published_time"]`),
		ld.DatePublished,
		metaContent(page, `meta[itemprop="datePublished"]`),
		metaContent(page, `meta[name="pubdate"]`),
		metaContent(page, `meta[name="publishdate"]`),
		metaContent(page, `meta[name="content_PublishedDate"]`),
		metaContent(page, `meta[name="date"]`),
	}
	if v, ok := page.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, v)
	}
	for _, c := range candidates {
		if t, ok := ParseDate(c); ok {
			return t
		}
	}
	return time.Time{}
}

func paragraphText(page *goquery.Document) string {
	scope := page.Find("article").First()
	if scope.Length() == 0 {
		scope = page.Find("body")
	}
	var paragraphs []string
	scope.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n")
}

func metaContent(page *goquery.Document, selector string) string {
	v, _ := page.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

// normalizeText collapses runs of blanks inside lines and drops empty lines.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// extendTitle returns the first candidate that continues title past a word
// boundary. Readability favours JSON-LD headlines, which publishers often
// shorten relative to og:title.
func extendTitle(title string, candidates ...string) string {
	for _, c := range candidates {
		if len(c) > len(title) && strings.HasPrefix(c, title) && c[len(title)] == ' ' {
			return c
		}
	}
	return title
}

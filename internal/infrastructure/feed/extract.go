package feed

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsAnalyst/internal/ports"
)

const minArticleChars = 100

var contentSelectors = []string{
	"article",
	`[role="main"]`,
	".article-content",
	".post-content",
	".entry-content",
	".story-body",
	".article-body",
	"main",
}

var spaceExpr = regexp.MustCompile(`\s+`)

// Extractor pulls readable text out of an article page.
type Extractor struct {
	client    *http.Client
	userAgent string
}

var _ ports.PageReader = (*Extractor)(nil)

// NewExtractor wires an HTTP client; a nil client gets a 20s timeout.
func NewExtractor(client *http.Client, userAgent string) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Extractor{client: client, userAgent: userAgent}
}

// Extract downloads pageURL and returns its main text.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, error) {
	doc, err := e.fetchDocument(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return extractText(doc), nil
}

// Page is the readable content of one article page.
type Page struct {
	Title string
	Text  string
}

// ExtractPage downloads pageURL and returns its title and main text.
func (e *Extractor) ExtractPage(ctx context.Context, pageURL string) (Page, error) {
	doc, err := e.fetchDocument(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}
	title := pageTitle(doc)
	return Page{Title: title, Text: extractText(doc)}, nil
}

// ReadPage adapts ExtractPage to ports.PageReader.
func (e *Extractor) ReadPage(ctx context.Context, pageURL string) (string, string, error) {
	page, err := e.ExtractPage(ctx, pageURL)
	return page.Title, page.Text, err
}

func (e *Extractor) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// extractText tries the known content containers first and falls back to
// collecting every substantial paragraph.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, form, noscript").Remove()

	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := normalizeSpace(sel.Text())
		if len(text) >= minArticleChars {
			return text
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := normalizeSpace(p.Text())
		if len(text) > 50 {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

// pageTitle prefers the Open Graph title, then <title>, then the first h1.
func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := normalizeSpace(og); t != "" {
			return t
		}
	}
	if t := normalizeSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return normalizeSpace(doc.Find("h1").First().Text())
}

// plainText strips markup from a feed description.
func plainText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return normalizeSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeSpace(fragment)
	}
	return normalizeSpace(doc.Text())
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceExpr.ReplaceAllString(s, " "))
}

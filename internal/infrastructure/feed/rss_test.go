package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsAnalyst/internal/domain"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example</title>
  <item>
    <title>Older story</title>
    <link>%[1]s/older</link>
    <description>&lt;p&gt;Older &lt;b&gt;summary&lt;/b&gt;&lt;/p&gt;</description>
    <pubDate>Mon, 03 Mar 2025 08:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Newest story</title>
    <link>%[1]s/newest</link>
    <description>Newest summary</description>
    <pubDate>Wed, 05 Mar 2025 08:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Undated story</title>
    <link>%[1]s/undated</link>
  </item>
  <item>
    <title></title>
    <link>%[1]s/untitled</link>
  </item>
  <item>
    <title>Middle story</title>
    <link>%[1]s/middle</link>
    <pubDate>Tue, 04 Mar 2025 08:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

const articlePage = `<html><head><script>var x = 1;</script></head><body>
<nav>Home | World</nav>
<article><h1>Newest story</h1><p>` + longParagraph + `</p></article>
</body></html>`

const longParagraph = "Lawmakers in Washington agreed on a budget framework on Tuesday after weeks of negotiation, officials said, with a vote expected later this week."

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "NewsAnalyst/test" {
			http.Error(w, "bad agent "+got, http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/rss":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = fmt.Fprintf(w, sampleFeed, srv.URL)
		case "/newest":
			_, _ = w.Write([]byte(articlePage))
		case "/broken":
			http.Error(w, "nope", http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchOrdersAndCaps(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t)
	fetcher := NewRSSFetcher(srv.Client(), "NewsAnalyst/test", nil, nil)

	items, err := fetcher.Fetch(context.Background(), domain.SourceProfile{Name: "Example", Feed: srv.URL + "/rss"}, 3)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	want := []string{"Newest story", "Middle story", "Older story"}
	for i, title := range want {
		if items[i].Title != title {
			t.Fatalf("item %d: expected %q, got %q", i, title, items[i].Title)
		}
		if items[i].Source != "Example" {
			t.Fatalf("item %d: unexpected source %q", i, items[i].Source)
		}
	}
	if items[2].FullText != "Older summary" {
		t.Fatalf("expected markup stripped, got %q", items[2].FullText)
	}
	wantDate := time.Date(2025, time.March, 5, 8, 0, 0, 0, time.UTC)
	if items[0].PublishedAt == nil || !items[0].PublishedAt.Equal(wantDate) {
		t.Fatalf("unexpected published date: %v", items[0].PublishedAt)
	}
}

func TestFetchWithExtraction(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t)
	fetcher := NewRSSFetcher(srv.Client(), "NewsAnalyst/test", NewExtractor(srv.Client(), "NewsAnalyst/test"), nil)

	items, err := fetcher.Fetch(context.Background(), domain.SourceProfile{Name: "Example", Feed: srv.URL + "/rss"}, 2)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if !strings.Contains(items[0].FullText, "budget framework") {
		t.Fatalf("expected extracted body, got %q", items[0].FullText)
	}
	if items[1].FullText != "" {
		t.Fatalf("middle story has no description and no page, got %q", items[1].FullText)
	}
}

func TestFetchFailures(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t)
	fetcher := NewRSSFetcher(srv.Client(), "NewsAnalyst/test", nil, nil)

	if _, err := fetcher.Fetch(context.Background(), domain.SourceProfile{Name: "X", Feed: srv.URL + "/broken"}, 5); err == nil {
		t.Fatal("expected error for bad status")
	}
	if _, err := fetcher.Fetch(context.Background(), domain.SourceProfile{Name: "X", Feed: srv.URL + "/newest"}, 5); err == nil {
		t.Fatal("expected error for non-feed body")
	}
	if _, err := fetcher.Fetch(context.Background(), domain.SourceProfile{Name: "X"}, 5); err == nil {
		t.Fatal("expected error for missing feed url")
	}
}

func TestExtractTextFallsBackToParagraphs(t *testing.T) {
	t.Parallel()

	html := `<html><body><div class="wrapper">
	<p>short</p>
	<p>` + longParagraph + `</p>
	<p>` + longParagraph + `</p>
	</div></body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	got := extractText(doc)
	if strings.Contains(got, "short") {
		t.Fatalf("short paragraph should be skipped: %q", got)
	}
	if strings.Count(got, "budget framework") != 2 {
		t.Fatalf("expected both long paragraphs, got %q", got)
	}
}

func TestExtractPage(t *testing.T) {
	t.Parallel()

	srv := newFeedServer(t)
	extractor := NewExtractor(srv.Client(), "NewsAnalyst/test")

	page, err := extractor.ExtractPage(context.Background(), srv.URL+"/newest")
	if err != nil {
		t.Fatalf("extract page: %v", err)
	}
	if page.Title != "Newest story" {
		t.Fatalf("expected h1 title, got %q", page.Title)
	}
	if !strings.Contains(page.Text, "budget framework") {
		t.Fatalf("expected article text, got %q", page.Text)
	}
	if strings.Contains(page.Text, "var x") {
		t.Fatalf("script leaked into text: %q", page.Text)
	}

	if _, err := extractor.ExtractPage(context.Background(), srv.URL+"/broken"); err == nil {
		t.Fatal("expected error for failing page")
	}
}

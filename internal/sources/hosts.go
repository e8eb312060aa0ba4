package sources

import (
	"net/url"
	"strings"
	"unicode"
)

// hostNames maps publisher hosts to display names. Matching is by
// substring of the lowercased host, first entry wins.
var hostNames = []struct {
	host string
	name string
}{
	{"cnn.com", "CNN"},
	{"foxnews.com", "Fox News"},
	{"reuters.com", "Reuters"},
	{"bbc.co.uk", "BBC"},
	{"bbc.com", "BBC"},
	{"nytimes.com", "New York Times"},
	{"washingtonpost.com", "Washington Post"},
	{"nbcnews.com", "NBC News"},
	{"abcnews.go.com", "ABC News"},
	{"abcnews.com", "ABC News"},
	{"npr.org", "NPR"},
	{"jpost.com", "Jerusalem Post"},
	{"tehrantimes.com", "Tehran Times"},
	{"aljazeera.com", "Al Jazeera"},
	{"timesofindia.indiatimes.com", "Times of India"},
	{"scmp.com", "South China Morning Post"},
	{"rt.com", "RT News"},
	{"alarabiya.net", "Al Arabiya"},
}

// SourceForURL names the publisher of an article url. Unknown hosts yield
// the first host label, title-cased; unparseable input yields "Unknown".
func SourceForURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return "Unknown"
	}
	host := strings.ToLower(u.Hostname())

	for _, h := range hostNames {
		if host == h.host || strings.HasSuffix(host, "."+h.host) {
			return h.name
		}
	}

	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "english.")
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return "Unknown"
	}
	r := []rune(label)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

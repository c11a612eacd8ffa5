package search

import (
	"net/url"
	"strings"
)

const (
	wordsPerMinute = 100
	summaryWords   = 50
)

// ReadingTime estimates minutes to read text, never less than one.
func ReadingTime(text string) int {
	minutes := len(strings.Fields(text)) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Summary returns the first 50 words of text, followed by "..." only when
// words were cut.
func Summary(text string) string {
	words := strings.Fields(text)
	if len(words) <= summaryWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:summaryWords], " ") + "..."
}

// FaviconURL derives the conventional favicon location for a page.
func FaviconURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return "", false
	}
	host := strings.TrimSuffix(u.Host, ":"+u.Port())
	return (&url.URL{Scheme: u.Scheme, Host: host, Path: "/favicon.ico"}).String(), true
}

package search

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	resultSelector = ".result"
	linkSelector   = ".result__a"
)

// anchor is one entry of the provider's result listing.
type anchor struct {
	URL   string
	Title string
}

type listing struct {
	anchors []anchor
	err     error
}

// parseListing takes the first limit result containers in document order and
// keeps those that carry a link with an href.
func parseListing(body []byte, limit int) listing {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return listing{err: fmt.Errorf("parse listing: %w", err)}
	}

	var anchors []anchor
	doc.Find(resultSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= limit {
			return false
		}
		link := s.Find(linkSelector).First()
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		anchors = append(anchors, anchor{
			URL:   resolveHref(href),
			Title: strings.TrimSpace(link.Text()),
		})
		return true
	})
	return listing{anchors: anchors}
}

// resolveHref turns provider redirect links into the target URL and gives
// protocol-relative links a scheme.
func resolveHref(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasPrefix(u.Path, "/l/") && (u.Host == "" || strings.HasSuffix(u.Hostname(), "duckduckgo.com")) {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

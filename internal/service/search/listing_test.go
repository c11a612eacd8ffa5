package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func listingPage(entries ...string) []byte {
	page := `<html><body><div id="links">`
	for _, e := range entries {
		page += e
	}
	return []byte(page + `</div></body></html>`)
}

func entry(href, title string) string {
	return `<div class="result results_links"><h2><a class="result__a" href="` + href + `">` + title + `</a></h2><a class="result__snippet">snippet</a></div>`
}

func TestParseListingTakesFirstContainersInOrder(t *testing.T) {
	body := listingPage(
		entry("https://a.example/1", "One"),
		entry("https://a.example/2", " Two "),
		entry("https://a.example/3", "Three"),
		entry("https://a.example/4", "Four"),
		entry("https://a.example/5", "Five"),
	)

	got := parseListing(body, 3)
	require.NoError(t, got.err)
	require.Equal(t, []anchor{
		{URL: "https://a.example/1", Title: "One"},
		{URL: "https://a.example/2", Title: "Two"},
		{URL: "https://a.example/3", Title: "Three"},
	}, got.anchors)
}

func TestParseListingSkipsContainersWithoutLink(t *testing.T) {
	body := listingPage(
		`<div class="result"><span>ad</span></div>`,
		entry("https://a.example/1", "One"),
		`<div class="result"><a class="result__a">no href</a></div>`,
		entry("https://a.example/2", "Two"),
	)

	got := parseListing(body, 3)
	require.Equal(t, []anchor{{URL: "https://a.example/1", Title: "One"}}, got.anchors)

	got = parseListing(body, 10)
	require.Len(t, got.anchors, 2)
}

func TestParseListingEmptyPage(t *testing.T) {
	got := parseListing([]byte(`<html><body>No results.</body></html>`), 5)
	require.NoError(t, got.err)
	require.Empty(t, got.anchors)
}

func TestResolveHref(t *testing.T) {
	cases := map[string]string{
		"https://example.com/x": "https://example.com/x",
		"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage%3Fa%3D1&rut=abc": "https://example.com/page?a=1",
		"/l/?uddg=https%3A%2F%2Fexample.org%2F": "https://example.org/",
		"//cdn.example.net/a":                     "https://cdn.example.net/a",
		"https://other.example/l/?uddg=https%3A%2F%2Fx.y": "https://other.example/l/?uddg=https%3A%2F%2Fx.y",
	}
	for href, want := range cases {
		require.Equal(t, want, resolveHref(href), href)
	}
}

// Package content 从网页中提取正文文本并识别付费墙。
package content

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// 付费墙标记，命中任意一个即视为付费内容。
var DefaultPaywallSelectors = []string{
	".paywall",
	"#paywall",
	".subscribe-wall",
	".subscription-required",
	".paid-content",
}

// 正文容器，按顺序取第一个命中的元素。
var DefaultContentSelectors = []string{
	"article",
	".article-content",
	".post-content",
	"main",
	"[role='main']",
	".content",
}

// Extraction 是一次提取的结果。Paywalled 为 true 时 Text 为空。
type Extraction struct {
	Text      string
	Paywalled bool
}

// Extractor 持有预编译的选择器，可并发使用。
type Extractor struct {
	paywall []cascadia.Selector
	content []cascadia.Selector
}

// NewExtractor 编译给定的选择器列表。无法编译的选择器会被记录并跳过，
// 等同于永远不匹配。
func NewExtractor(paywall, content []string) *Extractor {
	return &Extractor{
		paywall: compile(paywall),
		content: compile(content),
	}
}

func DefaultExtractor() *Extractor {
	return NewExtractor(DefaultPaywallSelectors, DefaultContentSelectors)
}

func compile(selectors []string) []cascadia.Selector {
	compiled := make([]cascadia.Selector, 0, len(selectors))
	for _, raw := range selectors {
		sel, err := cascadia.Compile(raw)
		if err != nil {
			slog.Warn("ignoring selector that does not compile", "component", "content", "selector", raw, "error", err)
			continue
		}
		compiled = append(compiled, sel)
	}
	return compiled
}

// Extract 解析 HTML 并返回正文。
func (e *Extractor) Extract(body io.Reader) (Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Extraction{}, fmt.Errorf("parse html: %w", err)
	}
	return e.ExtractDocument(doc), nil
}

// ExtractDocument works on an already parsed document.
func (e *Extractor) ExtractDocument(doc *goquery.Document) Extraction {
	for _, sel := range e.paywall {
		if doc.FindMatcher(sel).Length() > 0 {
			return Extraction{Paywalled: true}
		}
	}
	return Extraction{Text: Text(e.contentRoot(doc))}
}

func (e *Extractor) contentRoot(doc *goquery.Document) *goquery.Selection {
	for _, sel := range e.content {
		if found := doc.FindMatcher(sel).First(); found.Length() > 0 {
			return found
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// Text joins the whitespace separated tokens of every text node under sel
// with single spaces. goquery's Text concatenates nodes without a separator,
// which glues words from adjacent elements together.
func Text(sel *goquery.Selection) string {
	var tokens []string
	for _, n := range sel.Nodes {
		collectTokens(n, &tokens)
	}
	return strings.Join(tokens, " ")
}

func collectTokens(n *html.Node, tokens *[]string) {
	if n.Type == html.TextNode {
		*tokens = append(*tokens, strings.Fields(n.Data)...)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectTokens(c, tokens)
	}
}

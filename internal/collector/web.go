package collector

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a web page scanned for cashtags. Selector narrows the scan to
// matching elements; empty scans the whole body.
type Page struct {
	URL      string `yaml:"url"`
	Selector string `yaml:"selector"`
}

// Web counts $SYMBOL cashtags across a fixed set of pages.
type Web struct {
	pages  []Page
	client *http.Client
}

// NewWeb builds the source over pages.
func NewWeb(pages []Page, client *http.Client) *Web {
	return &Web{pages: append([]Page(nil), pages...), client: defaultClient(client)}
}

// Name implements Source.
func (w *Web) Name() string { return SourceWeb }

// Count implements Source. Any page failing fails the whole count.
func (w *Web) Count(ctx context.Context, asset Asset) (int, error) {
	if len(w.pages) == 0 {
		return 0, fmt.Errorf("no pages configured")
	}
	tag := cashtag(asset.Symbol)
	total := 0
	for _, page := range w.pages {
		n, err := w.countPage(ctx, page, tag)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", page.URL, err)
		}
		total += n
	}
	return total, nil
}

func (w *Web) countPage(ctx context.Context, page Page, tag *regexp.Regexp) (int, error) {
	resp, err := get(ctx, w.client, page.URL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}
	selector := strings.TrimSpace(page.Selector)
	if selector == "" {
		selector = "body"
	}
	count := 0
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		count += len(tag.FindAllStringIndex(s.Text(), -1))
	})
	return count, nil
}

func cashtag(symbol string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\$` + regexp.QuoteMeta(strings.TrimSpace(symbol)) + `\b`)
}

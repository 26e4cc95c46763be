package collector

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultNewsRSSURL = "https://news.google.com/rss/search?q=%s+crypto&hl=en-US&gl=US&ceid=US:en"

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title string `xml:"title"`
		} `xml:"item"`
	} `xml:"channel"`
}

// NewsRSS counts headlines in a search feed that name the asset.
type NewsRSS struct {
	urlTemplate string
	client      *http.Client
}

// NewNewsRSS builds the source. urlTemplate holds a single %s that receives
// the escaped asset query; empty uses Google News search.
func NewNewsRSS(urlTemplate string, client *http.Client) *NewsRSS {
	if urlTemplate == "" {
		urlTemplate = defaultNewsRSSURL
	}
	return &NewsRSS{urlTemplate: urlTemplate, client: defaultClient(client)}
}

// Name implements Source.
func (n *NewsRSS) Name() string { return SourceNewsRSS }

// Count implements Source.
func (n *NewsRSS) Count(ctx context.Context, asset Asset) (int, error) {
	endpoint := n.urlTemplate
	if strings.Contains(endpoint, "%s") {
		endpoint = fmt.Sprintf(endpoint, url.QueryEscape(asset.Query))
	}
	resp, err := get(ctx, n.client, endpoint)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return 0, fmt.Errorf("parse rss: %w", err)
	}
	count := 0
	for _, item := range feed.Channel.Items {
		if mentions(item.Title, asset.Symbol) || mentions(item.Title, asset.Query) {
			count++
		}
	}
	return count, nil
}
